package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names. Units are transformed compilation units, whether they
// arrive from the CLI or over HTTP.
const (
	MetricTransformsTotal    = "aether.transforms.total"
	MetricTransformDuration  = "aether.transform.duration.seconds"
	MetricErrorsTotal        = "aether.errors.total"
	MetricInflightTransforms = "aether.inflight.transforms"
	MetricRulesApplied       = "aether.rules.applied"
	MetricSourceBytes        = "aether.source.bytes"

	attrOp     = "op"
	attrStatus = "status"
	attrRule   = "rule"

	// StatusOK marks a successful unit.
	StatusOK = "ok"
	// StatusError marks a failed unit.
	StatusError = "error"
)

// durationBucketBoundaries covers 0.5ms to 10s; a single unit is parsed and
// transformed in milliseconds, large generated bundles take seconds.
var durationBucketBoundaries = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics,
// plus per-rule application counts.
type REDMetrics struct {
	transformsTotal    metric.Int64Counter
	transformDuration  metric.Float64Histogram
	errorsTotal        metric.Int64Counter
	inflightTransforms metric.Int64UpDownCounter
	rulesApplied       metric.Int64Counter
	sourceBytes        metric.Int64Counter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	total, err := mt.Int64Counter(MetricTransformsTotal,
		metric.WithDescription("Total number of transformed units"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricTransformsTotal, err)
	}

	duration, err := mt.Float64Histogram(MetricTransformDuration,
		metric.WithDescription("Unit parse and transform duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricTransformDuration, err)
	}

	errTotal, err := mt.Int64Counter(MetricErrorsTotal,
		metric.WithDescription("Total number of failed units"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(MetricInflightTransforms,
		metric.WithDescription("Number of units being transformed"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricInflightTransforms, err)
	}

	applied, err := mt.Int64Counter(MetricRulesApplied,
		metric.WithDescription("Tree changes made by each rule"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricRulesApplied, err)
	}

	bytesIn, err := mt.Int64Counter(MetricSourceBytes,
		metric.WithDescription("Source bytes read"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricSourceBytes, err)
	}

	return &REDMetrics{
		transformsTotal:    total,
		transformDuration:  duration,
		errorsTotal:        errTotal,
		inflightTransforms: inflight,
		rulesApplied:       applied,
		sourceBytes:        bytesIn,
	}, nil
}

// RecordTransform records a completed unit with its operation, status, and duration.
func (rm *REDMetrics) RecordTransform(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.transformsTotal.Add(ctx, 1, attrs)
	rm.transformDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// RecordRules adds per-rule change counts.
func (rm *REDMetrics) RecordRules(ctx context.Context, applied map[string]int) {
	for rule, count := range applied {
		rm.rulesApplied.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrRule, rule)))
	}
}

// RecordSourceBytes adds n to the source byte counter.
func (rm *REDMetrics) RecordSourceBytes(ctx context.Context, op string, n int) {
	rm.sourceBytes.Add(ctx, int64(n), metric.WithAttributes(attribute.String(attrOp, op)))
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightTransforms.Add(ctx, 1, attrs)

	return func() {
		rm.inflightTransforms.Add(ctx, -1, attrs)
	}
}
