package cmd

import (
	"github.com/mbolis/quick-forms/config"
	"github.com/mbolis/quick-forms/log"
	"github.com/spf13/cobra"
)

const Version = "1.0.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "quick-forms",
	Short:         "Quick Forms form builder API",
	Long:          `Quick Forms serves a REST API to build forms with conditional questions, collect public submissions and export them as CSV.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path (yaml, json or toml)")
	flags.String("db-url", "sqlite://quickforms.sqlite", "database connection URL (sqlite://path or postgres://...)")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-file", "", "write logs to this file, rotated, instead of standard error")
}

// loadConfig reads the configuration for cmd and sets up logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return cfg, err
	}

	err = log.Configure(log.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	return cfg, err
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error(err)
	}
	return err
}
