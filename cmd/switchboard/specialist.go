package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/api"
	"github.com/ShayCichocki/switchboard/internal/app"
	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/internal/server"
	"github.com/ShayCichocki/switchboard/internal/version"
)

var (
	specialistRole      string
	specialistAddr      string
	specialistBackend   string
	specialistPublicURL string
)

var specialistCmd = &cobra.Command{
	Use:   "specialist",
	Short: "Run an LLM-backed specialist agent",
	Long: `Run a specialist agent that answers questions over the agent protocol.

The specialist is backed by a language model instructed for one role.
Available roles: ` + strings.Join(api.RoleIDs(), ", ") + `.

Example:
  switchboard specialist --role inventory --addr 127.0.0.1:8102`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSpecialist(cmd, cfg)
	},
}

func init() {
	specialistCmd.Flags().StringVar(&specialistRole, "role", "", "Specialist role (required)")
	specialistCmd.Flags().StringVar(&specialistAddr, "addr", "127.0.0.1:8101", "Listen address")
	specialistCmd.Flags().StringVar(&specialistBackend, "backend", string(config.ProviderAnthropic), "Model backend (anthropic or openai)")
	specialistCmd.Flags().StringVar(&specialistPublicURL, "public-url", "", "URL advertised in the agent card (default: http://<addr>)")
	_ = specialistCmd.MarkFlagRequired("role")
}

func runSpecialist(cmd *cobra.Command, cfg *config.Config) error {
	role, err := api.LookupRole(specialistRole)
	if err != nil {
		return err
	}
	provider := config.Provider(strings.ToLower(specialistBackend))
	if provider != config.ProviderAnthropic && provider != config.ProviderOpenAI {
		return fmt.Errorf("unknown backend %q (want anthropic or openai)", specialistBackend)
	}

	logger, err := newLogger(cfg, "specialist."+role.ID)
	if err != nil {
		return err
	}
	defer logger.Close()

	completer, err := app.NewCompleter(cfg, provider)
	if err != nil {
		return err
	}

	url := specialistPublicURL
	if url == "" {
		url = "http://" + specialistAddr
	}
	spec := api.NewSpecialist(completer, role, logger.Logger)
	handler := protocol.NewHandler(spec.Card(url, version.Get()), spec, logger.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("role", role.ID).Str("backend", string(provider)).Str("url", url).Msg("starting specialist")
	return server.Serve(ctx, specialistAddr, server.Middleware(handler, logger.Logger), cfg.Server.ReadTimeout, logger.Logger)
}
