package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/logging"
)

var (
	configPath string
	configOnly bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Orchestrator for remote specialist agents",
	Long: `Switchboard answers user requests by consulting remote specialist agents.

Specialists are registered as endpoints. For each request a planner decides
which specialists to ask, the answers are gathered over the agent protocol,
and a synthesis reports what each specialist found, the likely root cause,
and what to do next.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.config/switchboard/config.yaml and .switchboard.yaml)")
	rootCmd.PersistentFlags().BoolVar(&configOnly, "config-only", false, "Read only --config, skipping user and project config files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(specialistCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(endpointsCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates configuration, applying global flag overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configOnly {
		if configPath == "" {
			return nil, fmt.Errorf("--config-only requires --config")
		}
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, component string) (*logging.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		File:      cfg.Log.File,
		Component: component,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
