package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/app"
	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/state"
)

var (
	serveAddr    string
	servePlanner string
	servePersist bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator HTTP API",
	Long: `Run the orchestrator as an HTTP service.

The service accepts user messages on /v1/conversations/{id}/messages,
manages capabilities on /v1/capabilities, and speaks the agent protocol
at / so it can be registered as a specialist of another orchestrator.

When endpoints_file is configured, edits to that file are applied to the
registry while the server runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyServeFlags(cfg)
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Override server.addr")
	serveCmd.Flags().StringVar(&servePlanner, "planner", "", "Override orchestrator.planner (anthropic, openai, broadcast)")
	serveCmd.Flags().BoolVar(&servePersist, "persist", false, "Journal conversations to the default state database when context.persist_path is unset")
}

func applyServeFlags(cfg *config.Config) {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if servePlanner != "" {
		cfg.Orchestrator.Planner = servePlanner
	}
	if servePersist && cfg.Context.PersistPath == "" {
		cfg.Context.PersistPath = state.DefaultDBPath()
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := newLogger(cfg, "serve")
	if err != nil {
		return err
	}
	defer logger.Close()

	a, err := app.New(cfg, app.WithLogger(logger.Logger))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("planner", cfg.Orchestrator.Planner).
		Int("capabilities", a.Registry.Len()).
		Msg("starting orchestrator")

	err = a.Serve(ctx)

	in, out, cost := a.Tokens()
	logger.Info().Int64("input_tokens", in).Int64("output_tokens", out).Float64("cost_usd", cost).Msg("stopped")
	return err
}
