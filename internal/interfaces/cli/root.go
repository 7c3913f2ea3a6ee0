// Package cli defines the regioflow command tree.  The root command owns
// the global flags and the config/logger initialization chain; subcommands
// pull the initialized context back out of cobra's command context.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/regioflow/internal/config"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Verbose    bool
}

// CLIContext carries the initialized dependencies through the command
// tree.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
}

// NewRootCommand builds the root command with global flags and all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "regioflow",
		Short: "Trade-data-driven regionalization of process inventory graphs",
		Long: "regioflow derives national production and consumption estimates from\n" +
			"bilateral trade statistics and uses them to clone global inventory\n" +
			"processes into country-specific processes and markets.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment and built-in defaults)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "shorthand for --log-level debug with console output")

	cmd.AddCommand(
		NewRunCommand(),
		NewMigrateCommand(),
	)
	return cmd
}

// persistentPreRun loads config, builds the logger and stores both in the
// command context for subcommands.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logCfg := logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	}
	if opts.LogLevel != "" {
		logCfg.Level = strings.ToLower(opts.LogLevel)
	}
	if opts.Verbose {
		logCfg.Level = "debug"
		logCfg.Format = "console"
		logCfg.OutputPaths = []string{"stderr"}
	}

	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logging.SetDefault(logger)

	// The log level follows config file edits at runtime.  An explicit
	// --log-level or --verbose pins it for the whole invocation.
	if opts.ConfigPath != "" && opts.LogLevel == "" && !opts.Verbose {
		watchErr := config.Watch(opts.ConfigPath, func(next *config.Config) {
			logging.SetLevel(next.Log.Level)
			logger.Info("log level reloaded", logging.String("level", next.Log.Level))
		}, func(err error) {
			logger.Warn("config reload rejected", logging.Err(err))
		})
		if watchErr != nil {
			logger.Warn("config watch unavailable", logging.Err(watchErr))
		}
	}

	ctx := context.WithValue(cmd.Context(), cliContextKey{}, &CLIContext{
		Config: cfg,
		Logger: logger,
	})
	cmd.SetContext(ctx)
	return nil
}

// GetCLIContext extracts the initialized CLIContext from a command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, fmt.Errorf("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, fmt.Errorf("command context was not initialized")
	}
	return cliCtx, nil
}

// Execute runs the CLI and writes any terminal error to stderr.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %s\n", err.Error())
		return err
	}
	return nil
}
