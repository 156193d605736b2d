package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/ruledesk/internal/core/config"
	"github.com/solatis/ruledesk/internal/logging"
)

// Version is the CLI version.
const Version = "0.1.0"

var (
	configFile  string
	dbURL       string
	catalogPath string
	logLevel    string
	logFormat   string
)

// Resolved in PersistentPreRunE for every subcommand.
var (
	cfg    *config.AdminAPIConfig
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:     "ruledesk",
	Short:   "RuleDesk metadata rule administration",
	Long:    `RuleDesk authors, validates and tests metadata rules organised by category and destination.`,
	Version: Version,

	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...); selects the sql store")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file path (overrides admin_api.catalog_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// setup loads configuration, applies persistent flags and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if dbURL != "" {
		loaded.DatabaseURL = dbURL
		loaded.Store = config.StoreSQL
	}
	if catalogPath != "" {
		loaded.CatalogPath = catalogPath
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		loaded.LogFormat = logFormat
	}
	if err := config.Validate(loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logging.New(loaded.LogLevel, loaded.LogFormat)
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
