// Package commands implements the aether CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/aether/pkg/config"
	"github.com/Sumatoshi-tech/aether/pkg/observability"
	"github.com/Sumatoshi-tech/aether/pkg/version"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
	quiet      bool
}

// NewRootCommand builds the aether command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "aether",
		Short: "aether - JSX/TSX transform plugin and host",
		Long: `aether runs a configurable set of rewrite rules over JavaScript and TypeScript
syntax trees, the way a compiler host invokes a transform plugin.

Commands:
  transform        Transform source files and print the result
  rules            List registered rules
  validate-config  Check a plugin configuration payload
  serve            Run the HTTP transform service`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is ./.aether.yaml or $HOME/.aether.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(newTransformCommand(opts))
	rootCmd.AddCommand(newRulesCommand())
	rootCmd.AddCommand(newValidateConfigCommand())
	rootCmd.AddCommand(newSchemaCommand())
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// session is the loaded configuration plus initialized telemetry for one command run.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
}

func openSession(opts *globalOptions, mode observability.AppMode, logOutput io.Writer) (*session, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch {
	case opts.quiet:
		level = slog.LevelError
	case opts.verbose:
		level = slog.LevelDebug
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = cfg.Observability.OTLPHeaders
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.LogJSON = cfg.Observability.LogJSON
	obsCfg.LogLevel = level
	obsCfg.LogOutput = logOutput
	obsCfg.Prometheus = mode == observability.ModeServe

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &session{cfg: cfg, providers: providers, logger: providers.Logger}, nil
}

func (sess *session) close(ctx context.Context) {
	err := sess.providers.Shutdown(ctx)
	if err != nil {
		sess.logger.WarnContext(ctx, "observability shutdown failed", "error", err)
	}
}
