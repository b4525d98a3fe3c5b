// Package host drives the plugin the way a compiler host would: it parses
// each compilation unit, supplies the position map and configuration
// channel, invokes the plugin once per unit, and prints the result.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/aether/pkg/frontend"
	"github.com/Sumatoshi-tech/aether/pkg/node"
	"github.com/Sumatoshi-tech/aether/pkg/observability"
	"github.com/Sumatoshi-tech/aether/pkg/plugin"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// ErrFileTooLarge is returned for units above Options.MaxFileSize.
var ErrFileTooLarge = errors.New("file too large")

// Unit is one compilation unit handed to the runner.
type Unit struct {
	Name    string
	Content []byte
	// Config, when set, replaces Options.PluginConfig for this unit.
	Config *string
	// Language, when set, replaces Options.Language for this unit.
	Language string
	// Segments map generated ranges of Content to original positions.
	Segments []sourcemap.Segment
	// ReleaseTree recycles the tree once Output is printed; Result.Tree is nil.
	ReleaseTree bool
}

// Result is the outcome of one unit. Err is set on failure; otherwise Output
// is, and Tree too unless the tree was released.
type Result struct {
	ID       string
	Name     string
	Language string
	Source   []byte
	Tree     *node.Node
	Output   []byte
	Stats    plugin.Stats
	Duration time.Duration
	Err      error
}

// Options configure a Runner.
type Options struct {
	// Workers bounds concurrent units; zero or less means GOMAXPROCS.
	Workers int
	// MaxFileSize rejects larger units; zero disables the check.
	MaxFileSize uint64
	// PluginConfig is put on the configuration channel when HasPluginConfig is set.
	PluginConfig    string
	HasPluginConfig bool
	// Language forces a grammar instead of detecting one per unit.
	Language string
	// Op labels metrics and spans ("cli", "serve").
	Op string
	// BufferSize bounds units queued between stages.
	BufferSize int
	// ReleaseTrees sets Unit.ReleaseTree for every unit.
	ReleaseTrees bool
}

// Runner transforms units on a bounded worker pool.
type Runner struct {
	opts    Options
	parser  *frontend.Parser
	tracer  trace.Tracer
	metrics *observability.REDMetrics
	logger  *slog.Logger
}

// NewRunner builds a Runner. Telemetry instruments are created from meter.
func NewRunner(opts Options, tracer trace.Tracer, meter metric.Meter, logger *slog.Logger) (*Runner, error) {
	red, err := observability.NewREDMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("runner metrics: %w", err)
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = opts.Workers
	}

	if opts.Op == "" {
		opts.Op = string(observability.ModeCLI)
	}

	if logger == nil {
		logger = observability.DiscardLogger()
	}

	return &Runner{
		opts:    opts,
		parser:  frontend.NewParser(),
		tracer:  tracer,
		metrics: red,
		logger:  logger,
	}, nil
}

// Workers returns the effective pool size.
func (runner *Runner) Workers() int {
	return runner.opts.Workers
}

// Run transforms units and returns their results in input order.
func (runner *Runner) Run(ctx context.Context, units []Unit) []Result {
	ctx, span := runner.tracer.Start(ctx, observability.SpanRun,
		trace.WithAttributes(
			attribute.Int("runner.units", len(units)),
			attribute.Int("runner.workers", runner.opts.Workers),
		),
	)
	defer span.End()

	in := make(chan Unit)

	go func() {
		defer close(in)

		for _, unit := range units {
			select {
			case in <- unit:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(units))
	for result := range runner.Process(ctx, in) {
		results = append(results, result)
	}

	// Units never dispatched because ctx ended still get a result.
	for _, unit := range units[len(results):] {
		results = append(results, Result{Name: unit.Name, Source: unit.Content, Err: ctx.Err()})
	}

	summary := Summarize(results)
	span.SetAttributes(attribute.Int("runner.failed", summary.Failed))

	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d units failed", summary.Failed, summary.Units))
	}

	runner.logger.InfoContext(ctx, "run finished",
		"units", summary.Units,
		"failed", summary.Failed,
		"source", humanize.IBytes(summary.Bytes),
	)

	return results
}

// slot holds a unit being processed. done is closed when its result is ready.
type slot struct {
	unit   Unit
	result Result
	done   chan struct{}
}

// Process transforms units from in concurrently and emits results in input
// order. The output channel is closed after in is drained or ctx ends.
func (runner *Runner) Process(ctx context.Context, in <-chan Unit) <-chan Result {
	out := make(chan Result, runner.opts.BufferSize)
	slots := make(chan *slot, runner.opts.BufferSize)
	jobs := make(chan *slot, runner.opts.BufferSize)

	go runner.dispatch(ctx, in, slots, jobs)

	wg := runner.startWorkers(ctx, jobs)

	go runner.emit(ctx, slots, out, wg)

	return out
}

func (runner *Runner) dispatch(ctx context.Context, in <-chan Unit, slots, jobs chan<- *slot) {
	defer close(slots)
	defer close(jobs)

	for unit := range in {
		current := &slot{unit: unit, done: make(chan struct{})}

		select {
		case slots <- current:
		case <-ctx.Done():
			return
		}

		select {
		case jobs <- current:
		case <-ctx.Done():
			return
		}
	}
}

func (runner *Runner) startWorkers(ctx context.Context, jobs <-chan *slot) *sync.WaitGroup {
	var wg sync.WaitGroup

	wg.Add(runner.opts.Workers)

	for range runner.opts.Workers {
		go func() {
			defer wg.Done()

			for current := range jobs {
				current.result = runner.TransformUnit(ctx, current.unit)
				close(current.done)
			}
		}()
	}

	return &wg
}

func (runner *Runner) emit(ctx context.Context, slots <-chan *slot, out chan<- Result, wg *sync.WaitGroup) {
	defer close(out)

	for current := range slots {
		select {
		case <-current.done:
		case <-ctx.Done():
			return
		}

		select {
		case out <- current.result:
		case <-ctx.Done():
			return
		}
	}

	wg.Wait()
}

// TransformUnit parses, transforms and prints one unit.
func (runner *Runner) TransformUnit(ctx context.Context, unit Unit) Result {
	result := Result{ID: uuid.NewString(), Name: unit.Name, Source: unit.Content}

	ctx, span := runner.tracer.Start(ctx, observability.SpanTransform,
		trace.WithAttributes(
			attribute.String("aether.unit", unit.Name),
			attribute.String("aether.invocation_id", result.ID),
			attribute.Int("unit.bytes", len(unit.Content)),
		),
	)
	defer span.End()

	defer runner.metrics.TrackInflight(ctx, runner.opts.Op)()

	start := time.Now()

	var parsed *frontend.Unit

	parsed, result.Tree, result.Stats, result.Err = runner.transform(ctx, unit)
	if parsed != nil {
		result.Language = parsed.Language
	}

	if result.Err == nil {
		_, renderSpan := runner.tracer.Start(ctx, observability.SpanRender)
		result.Output = frontend.Render(result.Tree, unit.Content)
		renderSpan.End()

		if unit.ReleaseTree || runner.opts.ReleaseTrees {
			runner.parser.Release(parsed, result.Tree)
			result.Tree = nil
		}
	}

	result.Duration = time.Since(start)

	runner.record(ctx, span, &result)

	return result
}

func (runner *Runner) transform(ctx context.Context, unit Unit) (*frontend.Unit, *node.Node, plugin.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, plugin.Stats{}, err
	}

	size := uint64(len(unit.Content))
	if runner.opts.MaxFileSize > 0 && size > runner.opts.MaxFileSize {
		return nil, nil, plugin.Stats{}, fmt.Errorf("%w: %s is %s, limit %s", ErrFileTooLarge,
			unit.Name, humanize.IBytes(size), humanize.IBytes(runner.opts.MaxFileSize))
	}

	runner.metrics.RecordSourceBytes(ctx, runner.opts.Op, len(unit.Content))

	parseCtx, parseSpan := runner.tracer.Start(ctx, observability.SpanParse)

	var (
		parsed *frontend.Unit
		err    error
	)

	language := unit.Language
	if language == "" {
		language = runner.opts.Language
	}

	var mapOpts []sourcemap.Option
	if len(unit.Segments) > 0 {
		mapOpts = append(mapOpts, sourcemap.WithSegments(unit.Segments...))
	}

	if language != "" {
		parsed, err = runner.parser.ParseLanguage(parseCtx, language, unit.Name, unit.Content, mapOpts...)
	} else {
		parsed, err = runner.parser.Parse(parseCtx, unit.Name, unit.Content, mapOpts...)
	}

	parseSpan.End()

	if err != nil {
		return nil, nil, plugin.Stats{}, err
	}

	var opts []plugin.MetadataOption

	switch {
	case unit.Config != nil:
		opts = append(opts, plugin.WithPluginConfig(*unit.Config))
	case runner.opts.HasPluginConfig:
		opts = append(opts, plugin.WithPluginConfig(runner.opts.PluginConfig))
	}

	tree, stats, err := plugin.TransformWithStats(parsed.Tree, plugin.NewMetadata(parsed.Map, opts...))

	return parsed, tree, stats, err
}

func (runner *Runner) record(ctx context.Context, span trace.Span, result *Result) {
	status := observability.StatusOK

	span.SetAttributes(attribute.String("aether.language", result.Language))

	if result.Err != nil {
		status = observability.StatusError

		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())

		runner.logger.ErrorContext(ctx, "unit failed",
			"unit", result.Name,
			"invocation_id", result.ID,
			"error", result.Err,
		)
	} else {
		runner.metrics.RecordRules(ctx, result.Stats.Applied)

		runner.logger.DebugContext(ctx, "unit transformed",
			"unit", result.Name,
			"invocation_id", result.ID,
			"language", result.Language,
			"rules", result.Stats.Rules,
			"duration", result.Duration,
		)
	}

	runner.metrics.RecordTransform(ctx, runner.opts.Op, status, result.Duration)
}

// Summary aggregates a run.
type Summary struct {
	Units    int
	Failed   int
	Bytes    uint64
	Duration time.Duration
	Applied  map[string]int
}

// Summarize aggregates results.
func Summarize(results []Result) Summary {
	summary := Summary{Units: len(results), Applied: make(map[string]int)}

	for _, result := range results {
		summary.Bytes += uint64(len(result.Source))
		summary.Duration += result.Duration

		if result.Err != nil {
			summary.Failed++

			continue
		}

		for rule, count := range result.Stats.Applied {
			summary.Applied[rule] += count
		}
	}

	return summary
}

// Err joins the errors of all failed results, each prefixed with its unit name.
func Err(results []Result) error {
	var errs []error

	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", result.Name, result.Err))
		}
	}

	return errors.Join(errs...)
}
