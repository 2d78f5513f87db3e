package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the configuration switchboard would run with.

Configuration is read from ~/.config/switchboard/config.yaml, then
.switchboard.yaml in the current directory or a parent, then --config.
SWITCHBOARD_* environment variables override file values. API keys are
masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		displayConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// displayConfig prints all configuration values.
func displayConfig(w io.Writer, cfg *config.Config) {
	anthropicKey, _ := config.GetAPIKey(cfg, config.ProviderAnthropic)
	openaiKey, _ := config.GetAPIKey(cfg, config.ProviderOpenAI)

	fmt.Fprintf(w, "anthropic.api_key: %s (%s)%s\n", config.MaskAPIKey(anthropicKey), config.GetAPIKeySource(cfg, config.ProviderAnthropic), keyWarning(config.ProviderAnthropic, anthropicKey))
	fmt.Fprintf(w, "anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Fprintf(w, "anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Fprintf(w, "openai.api_key: %s (%s)%s\n", config.MaskAPIKey(openaiKey), config.GetAPIKeySource(cfg, config.ProviderOpenAI), keyWarning(config.ProviderOpenAI, openaiKey))
	fmt.Fprintf(w, "openai.model: %s\n", cfg.OpenAI.Model)
	if cfg.OpenAI.AzureEndpoint != "" {
		fmt.Fprintf(w, "openai.azure_endpoint: %s\n", cfg.OpenAI.AzureEndpoint)
	}
	fmt.Fprintf(w, "orchestrator.planner: %s\n", cfg.Orchestrator.Planner)
	fmt.Fprintf(w, "orchestrator.max_iterations: %d\n", cfg.Orchestrator.MaxIterations)
	fmt.Fprintf(w, "orchestrator.parallel: %t\n", cfg.Orchestrator.Parallel)
	fmt.Fprintf(w, "orchestrator.max_parallel: %d\n", cfg.Orchestrator.MaxParallel)
	fmt.Fprintf(w, "remote.timeout: %s\n", cfg.Remote.Timeout)
	fmt.Fprintf(w, "remote.window: %d\n", cfg.Remote.Window)
	fmt.Fprintf(w, "remote.stream: %t\n", cfg.Remote.Stream)
	fmt.Fprintf(w, "context.max_turns: %d\n", cfg.Context.MaxTurns)
	fmt.Fprintf(w, "context.persist_path: %s\n", orNone(cfg.Context.PersistPath))
	fmt.Fprintf(w, "synthesis.root_cause_precedence: %s\n", orNone(strings.Join(cfg.Synthesis.RootCausePrecedence, ", ")))
	fmt.Fprintf(w, "synthesis.draft_customer_message: %t\n", cfg.Synthesis.DraftCustomerMessage)
	fmt.Fprintf(w, "synthesis.drafter: %s\n", cfg.Synthesis.Drafter)
	fmt.Fprintf(w, "server.addr: %s\n", cfg.Server.Addr)
	fmt.Fprintf(w, "log.level: %s\n", cfg.Log.Level)
	fmt.Fprintf(w, "log.format: %s\n", cfg.Log.Format)
	fmt.Fprintf(w, "endpoints: %d\n", len(cfg.Endpoints))
	fmt.Fprintf(w, "endpoints_file: %s\n", orNone(cfg.EndpointsFile))
}

// keyWarning flags a set key that does not look valid.
func keyWarning(p config.Provider, key string) string {
	if key == "" {
		return ""
	}
	if err := config.ValidateAPIKey(p, key); err != nil {
		return " [" + err.Error() + "]"
	}
	return ""
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
