package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"claimforge/compliance/pkg/cli"
	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/telemetry/logging"
	"claimforge/compliance/pkg/telemetry/tracing"
)

var (
	// Global flags
	cfgFile      string
	envFile      string
	logLevel     string
	outputFormat string

	// Set by PersistentPreRunE.
	cfg    *config.Config
	logger *logging.Logger
	tracer *tracing.Tracer
	format cli.OutputFormat
)

var rootCmd = &cobra.Command{
	Use:   "claimforge",
	Short: "Claimforge - NCCI edit rules engine and claim validator",
	Long: `Claimforge builds a local rule store from the CMS National Correct Coding
Initiative distributions and validates claims against it.

It checks:
  - Procedure-to-Procedure bundling edits and their modifier indicators
  - Medically Unlikely Edit unit limits
  - Add-On Code primary requirements
  - ICD-10-CM diagnosis code format`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracer != nil {
			if err := tracer.Shutdown(context.Background()); err != nil {
				slog.Warn("flushing traces failed", "error", err)
			}
		}
		if logger != nil {
			_ = logger.Shutdown()
		}
	},
}

// Execute runs the root command.
func Execute() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	if err == nil {
		return cli.ExitOK
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return cli.ExitFailure
}

// setup loads the environment file, the configuration and the logger for
// every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	var err error
	format, err = cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return cli.NewConfigError("--output", err.Error())
	}

	optional := !cmd.Flags().Changed("config")
	cfg, err = config.LoadConfigWithEnvOverrides(cfgFile, optional)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}

	logger, err = logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger.SetDefault()

	tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}

	slog.Debug("configuration loaded",
		"config", cfgFile,
		"store_driver", cfg.Store.Driver,
		"metrics_enabled", cfg.Telemetry.Metrics.Enabled,
	)
	return nil
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "claimforge.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override telemetry.logging.level")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, csv)")
}
