package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/aether/internal/host"
	"github.com/Sumatoshi-tech/aether/pkg/frontend"
	"github.com/Sumatoshi-tech/aether/pkg/observability"
	"github.com/Sumatoshi-tech/aether/pkg/sourcemap"
)

// Output formats of the transform command.
const (
	formatSource = "source"
	formatJSON   = "json"
	formatYAML   = "yaml"
	formatTree   = "tree"
)

const (
	stdinArg         = "-"
	defaultStdinName = "stdin.tsx"
	payloadFilePfx   = "@"
)

// Sentinel errors for the transform command.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrWriteConflict     = errors.New("--write requires --format source, no --diff and no stdin input")
	ErrNoUnits           = errors.New("no supported source files found")
	ErrUnitsFailed       = errors.New("some units failed")
	ErrInvalidSegments   = errors.New("invalid segments")
)

type transformOptions struct {
	pluginConfig    string
	pluginConfigSet bool
	format          string
	diff            bool
	write           bool
	workers         int
	language        string
	stdinName       string
	segments        string
}

func newTransformCommand(global *globalOptions) *cobra.Command {
	opts := &transformOptions{}

	cmd := &cobra.Command{
		Use:   "transform <file|dir|->...",
		Short: "Transform source files and print the result",
		Long: `Parse each file, run the enabled rules over its syntax tree and print the result.

Directories are walked for supported files; vendored directories are skipped.
"-" reads one unit from stdin.

Examples:
  aether transform src/App.tsx
  aether transform --diff src/
  aether transform --plugin-config '{"rules":["oid"]}' --format json App.tsx
  aether transform --plugin-config @aether.json --write src/
  aether transform --segments @segments.json --format tree page.tsx
  cat App.tsx | aether transform -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.pluginConfigSet = cmd.Flags().Changed("plugin-config")

			return runTransform(cmd.Context(), global, opts, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.pluginConfig, "plugin-config", "", "plugin configuration payload, or @file")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatSource, "output format (source, json, yaml, tree)")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print a line diff between input and output")
	cmd.Flags().BoolVarP(&opts.write, "write", "w", false, "overwrite files with the transformed source")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent units (default from config, then GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.language, "language", "", "force a grammar ("+strings.Join(frontend.Languages(), ", ")+")")
	cmd.Flags().StringVar(&opts.stdinName, "stdin-name", defaultStdinName, "file name reported for stdin input")
	cmd.Flags().StringVar(&opts.segments, "segments", "",
		`generated-to-original segments per input, as {"file": [{"generated_start": 0, ...}]}, or @file`)

	return cmd
}

func runTransform(
	ctx context.Context,
	global *globalOptions,
	opts *transformOptions,
	args []string,
	stdin io.Reader,
	stdout, stderr io.Writer,
) error {
	switch opts.format {
	case formatSource, formatJSON, formatYAML, formatTree:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.format)
	}

	if opts.write && (opts.format != formatSource || opts.diff || slices.Contains(args, stdinArg)) {
		return ErrWriteConflict
	}

	sess, err := openSession(global, observability.ModeCLI, stderr)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	hostOpts, err := buildHostOptions(sess, opts)
	if err != nil {
		return err
	}

	units, err := collectUnits(args, stdin, opts.stdinName)
	if err != nil {
		return err
	}

	err = attachSegments(units, opts.segments)
	if err != nil {
		return err
	}

	runner, err := host.NewRunner(hostOpts, sess.providers.Tracer, sess.providers.Meter, sess.logger)
	if err != nil {
		return err
	}

	results := runner.Run(ctx, units)

	switch {
	case opts.write:
		err = writeBack(results)
	case opts.diff:
		err = writeDiffs(stdout, results)
	default:
		err = writeResults(stdout, opts.format, results)
	}

	if err != nil {
		return err
	}

	if failed := host.Err(results); failed != nil {
		return fmt.Errorf("%w: %w", ErrUnitsFailed, failed)
	}

	return nil
}

func buildHostOptions(sess *session, opts *transformOptions) (host.Options, error) {
	maxSize, err := sess.cfg.MaxFileSizeBytes()
	if err != nil {
		return host.Options{}, err
	}

	hostOpts := host.Options{
		Workers:     sess.cfg.Host.Workers,
		MaxFileSize: maxSize,
		Language:    sess.cfg.Plugin.Frontend,
		Op:          string(observability.ModeCLI),
	}

	// Source and diff output never look at the tree.
	hostOpts.ReleaseTrees = opts.format == formatSource || opts.diff

	if opts.workers > 0 {
		hostOpts.Workers = opts.workers
	}

	if opts.language != "" {
		hostOpts.Language = opts.language
	}

	switch {
	case opts.pluginConfigSet:
		payload, readErr := readPayload(opts.pluginConfig)
		if readErr != nil {
			return host.Options{}, readErr
		}

		hostOpts.PluginConfig, hostOpts.HasPluginConfig = payload, true
	case sess.cfg.Plugin.Config != "":
		hostOpts.PluginConfig, hostOpts.HasPluginConfig = sess.cfg.Plugin.Config, true
	}

	return hostOpts, nil
}

// readPayload returns arg itself, or the contents of the file it names when
// it starts with "@".
func readPayload(arg string) (string, error) {
	path, isFile := strings.CutPrefix(arg, payloadFilePfx)
	if !isFile {
		return arg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}

	return string(data), nil
}

// attachSegments decodes the --segments payload and hands each unit the
// segments listed under its name.
func attachSegments(units []host.Unit, arg string) error {
	if arg == "" {
		return nil
	}

	payload, err := readPayload(arg)
	if err != nil {
		return err
	}

	var byUnit map[string][]sourcemap.Segment

	err = json.Unmarshal([]byte(payload), &byUnit)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSegments, err)
	}

	for idx := range units {
		if segments, ok := byUnit[units[idx].Name]; ok {
			units[idx].Segments = segments
			delete(byUnit, units[idx].Name)
		}
	}

	if len(byUnit) > 0 {
		return fmt.Errorf("%w: not an input: %s", ErrInvalidSegments, strings.Join(slices.Sorted(maps.Keys(byUnit)), ", "))
	}

	return nil
}

func collectUnits(args []string, stdin io.Reader, stdinName string) ([]host.Unit, error) {
	var units []host.Unit

	for _, arg := range args {
		if arg == stdinArg {
			content, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}

			units = append(units, host.Unit{Name: stdinName, Content: content})

			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}

		if !info.IsDir() {
			content, readErr := os.ReadFile(arg)
			if readErr != nil {
				return nil, fmt.Errorf("read %s: %w", arg, readErr)
			}

			units = append(units, host.Unit{Name: arg, Content: content})

			continue
		}

		walked, err := walkUnits(arg)
		if err != nil {
			return nil, err
		}

		units = append(units, walked...)
	}

	if len(units) == 0 {
		return nil, ErrNoUnits
	}

	return units, nil
}

func walkUnits(root string) ([]host.Unit, error) {
	var units []host.Unit

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// Vendor patterns are matched below root only.
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}

		if entry.IsDir() {
			if path != root && frontend.IsVendorDir(rel) {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() || !frontend.IsSupported(rel) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		units = append(units, host.Unit{Name: path, Content: content})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return units, nil
}

func writeBack(results []host.Result) error {
	for _, result := range results {
		if result.Err != nil || string(result.Output) == string(result.Source) {
			continue
		}

		info, err := os.Stat(result.Name)
		if err != nil {
			return fmt.Errorf("stat %s: %w", result.Name, err)
		}

		err = os.WriteFile(result.Name, result.Output, info.Mode().Perm())
		if err != nil {
			return fmt.Errorf("write %s: %w", result.Name, err)
		}
	}

	return nil
}
