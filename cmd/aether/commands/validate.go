package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/aether/pkg/aether"
	"github.com/Sumatoshi-tech/aether/pkg/plugin"
)

// ErrInvalidPayload is returned when a payload fails schema or decode checks.
var ErrInvalidPayload = errors.New("invalid plugin configuration")

func newValidateConfigCommand() *cobra.Command {
	var nocolor bool

	cmd := &cobra.Command{
		Use:   "validate-config <payload|@file>",
		Short: "Check a plugin configuration payload",
		Long: `Check a plugin configuration payload against the configuration schema and
resolve it the way the plugin would, printing the effective configuration.

Examples:
  aether validate-config '{"all":false}'
  aether validate-config '{"rules":["oid","strip-comments"]}'
  aether validate-config @aether.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nocolor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}

			payload, err := readPayload(args[0])
			if err != nil {
				return err
			}

			return validatePayload(cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

func validatePayload(out io.Writer, payload string) error {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	hint := color.New(color.FgCyan)

	if plugin.IsEmptyPayload(payload) {
		ok.Fprintf(out, "payload is empty, default applies: %s\n", aether.DefaultConfig())

		return nil
	}

	cfg, resolveErr := plugin.ResolveConfig(payload, true)

	violations, schemaErr := aether.ValidateSchema([]byte(payload))

	switch {
	case schemaErr != nil:
		bad.Fprintf(out, "payload is not JSON: %v\n", schemaErr)
	case len(violations) > 0:
		bad.Fprintln(out, "payload violates the configuration schema:")

		for _, violation := range violations {
			bad.Fprintf(out, "  - %s: %s\n", violation.Field, violation.Description)
		}
	}

	if resolveErr != nil {
		bad.Fprintf(out, "resolve failed: %v\n", resolveErr)
		hint.Fprintln(out, `  - use {"all": true|false} or {"rules": ["name", ...]}; see "aether rules"`)

		return fmt.Errorf("%w: %w", ErrInvalidPayload, resolveErr)
	}

	if unknown := unknownRules(cfg); len(unknown) > 0 {
		bad.Fprintf(out, "unknown rules: %v\n", unknown)

		for _, name := range unknown {
			if suggestion, found := aether.SuggestRule(name); found {
				hint.Fprintf(out, "  - %s: did you mean %q?\n", name, suggestion)
			}
		}

		hint.Fprintln(out, `  - run "aether rules" to list registered rules`)

		return fmt.Errorf("%w: %w: %v", ErrInvalidPayload, aether.ErrUnknownRule, unknown)
	}

	if schemaErr != nil || len(violations) > 0 {
		return ErrInvalidPayload
	}

	ok.Fprintf(out, "payload is valid: %s\n", cfg)

	return nil
}

func unknownRules(cfg aether.Config) []string {
	var unknown []string

	for _, name := range cfg.Rules {
		if _, found := aether.LookupRule(name); !found {
			unknown = append(unknown, name)
		}
	}

	return unknown
}

func newSchemaCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin configuration JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				_, err := cmd.OutOrStdout().Write(aether.ConfigSchema)

				return err
			}

			err := os.WriteFile(output, aether.ConfigSchema, 0o600)
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "schema written to %s\n", output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the schema to a file instead of stdout")

	return cmd
}
