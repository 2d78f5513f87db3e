// Package config handles configuration loading for switchboard.
// It supports XDG config paths, project-level overrides, an explicit file,
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Planner names accepted by orchestrator.planner.
const (
	PlannerAnthropic = "anthropic"
	PlannerOpenAI    = "openai"
	PlannerBroadcast = "broadcast"
)

// Config holds all configuration for switchboard.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Context      ContextConfig      `mapstructure:"context"`
	Synthesis    SynthesisConfig    `mapstructure:"synthesis"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	// Endpoints are registered at startup, in order.
	Endpoints []models.Endpoint `mapstructure:"endpoints"`
	// EndpointsFile is a YAML file of endpoints watched for changes.
	EndpointsFile string `mapstructure:"endpoints_file"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// OpenAIConfig holds OpenAI and Azure OpenAI settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model is the model name, or the deployment name on Azure.
	Model           string `mapstructure:"model"`
	BaseURL         string `mapstructure:"base_url"`
	AzureEndpoint   string `mapstructure:"azure_endpoint"`
	AzureAPIVersion string `mapstructure:"azure_api_version"`
	MaxTokens       int    `mapstructure:"max_tokens"`
}

// OrchestratorConfig holds reasoning loop settings.
type OrchestratorConfig struct {
	// Planner is one of anthropic, openai or broadcast.
	Planner       string `mapstructure:"planner"`
	MaxIterations int    `mapstructure:"max_iterations"`
	Parallel      bool   `mapstructure:"parallel"`
	// MaxParallel caps concurrent calls per deliberation; 0 means no cap.
	MaxParallel  int    `mapstructure:"max_parallel"`
	SystemPrompt string `mapstructure:"system_prompt"`
	// History limits the turns shown to an LLM planner; 0 shows all.
	History int `mapstructure:"history"`
}

// RemoteConfig holds remote invocation settings.
type RemoteConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// Window is how many recent turns travel with each call.
	Window int  `mapstructure:"window"`
	Stream bool `mapstructure:"stream"`
}

// ContextConfig holds conversation store settings.
type ContextConfig struct {
	// MaxTurns caps turns kept per conversation; 0 keeps everything.
	MaxTurns int `mapstructure:"max_turns"`
	// PersistPath is the SQLite journal path; empty keeps conversations in memory.
	PersistPath string `mapstructure:"persist_path"`
	// Retention purges journaled conversations idle longer than this at
	// startup; 0 keeps them forever.
	Retention time.Duration `mapstructure:"retention"`
}

// SynthesisConfig holds synthesis settings.
type SynthesisConfig struct {
	// RootCausePrecedence breaks ties between equally strong root-cause
	// categories, first wins. Empty means consultation order.
	RootCausePrecedence  []string `mapstructure:"root_cause_precedence"`
	DraftCustomerMessage bool     `mapstructure:"draft_customer_message"`
	// Drafter is template or llm.
	Drafter          string `mapstructure:"drafter"`
	ReferencePattern string `mapstructure:"reference_pattern"`
	Signature        string `mapstructure:"signature"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// PublicURL is advertised in the agent card; defaults to http://<addr>.
	PublicURL   string        `mapstructure:"public_url"`
	Name        string        `mapstructure:"name"`
	Description string        `mapstructure:"description"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is console or json.
	Format string `mapstructure:"format"`
	// File, when set, receives logs instead of stderr.
	File string `mapstructure:"file"`
}

// Load loads configuration.
// Precedence (highest to lowest):
// 1. Environment variables (SWITCHBOARD_*, ANTHROPIC_API_KEY, OPENAI_API_KEY, AZURE_OPENAI_API_KEY)
// 2. The explicit path, when given
// 3. Project config (.switchboard.yaml in current directory or parent)
// 4. User config (~/.config/switchboard/config.yaml)
// 5. Built-in defaults
func Load(path string) (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	for _, p := range []string{findProjectConfig(), path} {
		if p == "" {
			continue
		}
		override := viper.New()
		override.SetConfigFile(p)
		if err := override.ReadInConfig(); err != nil {
			if p == path {
				return nil, fmt.Errorf("reading config from %s: %w", p, err)
			}
			continue
		}
		if err := v.MergeConfigMap(override.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging config %s: %w", p, err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path only, plus defaults
// and environment.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWITCHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("anthropic.api_key", "SWITCHBOARD_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai.api_key", "SWITCHBOARD_OPENAI_API_KEY", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY")
	_ = v.BindEnv("openai.azure_endpoint", "SWITCHBOARD_OPENAI_AZURE_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Context.PersistPath = expandEnv(cfg.Context.PersistPath)
	cfg.EndpointsFile = expandEnv(cfg.EndpointsFile)
	for i := range cfg.Endpoints {
		cfg.Endpoints[i] = cfg.Endpoints[i].Normalize()
	}

	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Orchestrator.Planner {
	case PlannerAnthropic, PlannerOpenAI, PlannerBroadcast:
	default:
		return fmt.Errorf("orchestrator.planner: unknown planner %q (want anthropic, openai or broadcast)", c.Orchestrator.Planner)
	}
	if c.Orchestrator.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator.max_iterations must be positive, got %d", c.Orchestrator.MaxIterations)
	}
	if c.Orchestrator.MaxParallel < 0 {
		return fmt.Errorf("orchestrator.max_parallel must not be negative, got %d", c.Orchestrator.MaxParallel)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive, got %s", c.Remote.Timeout)
	}
	if c.Remote.Window < 0 {
		return fmt.Errorf("remote.window must not be negative, got %d", c.Remote.Window)
	}
	if c.Context.MaxTurns < 0 {
		return fmt.Errorf("context.max_turns must not be negative, got %d", c.Context.MaxTurns)
	}
	if c.Context.Retention < 0 {
		return fmt.Errorf("context.retention must not be negative, got %s", c.Context.Retention)
	}
	switch c.Synthesis.Drafter {
	case "template", "llm":
	default:
		return fmt.Errorf("synthesis.drafter: unknown drafter %q (want template or llm)", c.Synthesis.Drafter)
	}
	if c.Synthesis.ReferencePattern != "" {
		if _, err := regexp.Compile(c.Synthesis.ReferencePattern); err != nil {
			return fmt.Errorf("synthesis.reference_pattern: %w", err)
		}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (want console or json)", c.Log.Format)
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.CapabilityID == "" || ep.URL == "" {
			return fmt.Errorf("endpoints[%d]: url and capability_id are required", i)
		}
		if seen[ep.CapabilityID] {
			return fmt.Errorf("endpoints[%d]: duplicate capability_id %q", i, ep.CapabilityID)
		}
		seen[ep.CapabilityID] = true
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.azure_endpoint", "")
	v.SetDefault("openai.azure_api_version", "")
	v.SetDefault("openai.max_tokens", 0)

	v.SetDefault("orchestrator.planner", d.Orchestrator.Planner)
	v.SetDefault("orchestrator.max_iterations", d.Orchestrator.MaxIterations)
	v.SetDefault("orchestrator.parallel", d.Orchestrator.Parallel)
	v.SetDefault("orchestrator.max_parallel", d.Orchestrator.MaxParallel)
	v.SetDefault("orchestrator.system_prompt", "")
	v.SetDefault("orchestrator.history", d.Orchestrator.History)

	v.SetDefault("remote.timeout", d.Remote.Timeout.String())
	v.SetDefault("remote.window", d.Remote.Window)
	v.SetDefault("remote.stream", d.Remote.Stream)

	v.SetDefault("context.max_turns", d.Context.MaxTurns)
	v.SetDefault("context.persist_path", "")
	v.SetDefault("context.retention", "0s")

	v.SetDefault("synthesis.root_cause_precedence", []string{})
	v.SetDefault("synthesis.draft_customer_message", d.Synthesis.DraftCustomerMessage)
	v.SetDefault("synthesis.drafter", d.Synthesis.Drafter)
	v.SetDefault("synthesis.reference_pattern", "")
	v.SetDefault("synthesis.signature", d.Synthesis.Signature)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.name", d.Server.Name)
	v.SetDefault("server.description", d.Server.Description)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout.String())

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")

	v.SetDefault("endpoints_file", "")
}

// getUserConfigDir returns the XDG config directory for switchboard.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "switchboard")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "switchboard")
	}
	return filepath.Join(home, ".config", "switchboard")
}

// findProjectConfig searches for .switchboard.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".switchboard.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		Orchestrator: OrchestratorConfig{
			Planner:       PlannerAnthropic,
			MaxIterations: 6,
			Parallel:      true,
			MaxParallel:   4,
			History:       40,
		},
		Remote: RemoteConfig{
			Timeout: 30 * time.Second,
			Window:  6,
			Stream:  false,
		},
		Context: ContextConfig{
			MaxTurns: 0,
		},
		Synthesis: SynthesisConfig{
			DraftCustomerMessage: true,
			Drafter:              "template",
			Signature:            "Customer Service Team",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8100",
			Name:        "Switchboard Orchestrator",
			Description: "Answers requests by consulting registered specialist agents",
			ReadTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
