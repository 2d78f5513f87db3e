package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, PlannerAnthropic, cfg.Orchestrator.Planner)
	assert.Equal(t, 6, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 6, cfg.Remote.Window)
	assert.Zero(t, cfg.Context.MaxTurns, "context should be unbounded")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	for _, name := range []string{"ANTHROPIC_API_KEY", "SWITCHBOARD_ANTHROPIC_API_KEY", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY"} {
		t.Setenv(name, "")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
orchestrator:
  planner: broadcast
  max_iterations: 3
  parallel: false
remote:
  timeout: 5s
  window: 2
context:
  max_turns: 50
  persist_path: ${SWITCHBOARD_TEST_DIR}/state.db
synthesis:
  root_cause_precedence: [fraud, payment]
  signature: XYZ Company Customer Service Team
endpoints:
  - url: " http://localhost:8101 "
    name: Order Agent
    capability_id: order
    description: Manages order lifecycle
  - url: http://localhost:8102
    name: Inventory Agent
    capability_id: inventory
    description: Checks stock levels
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))
	t.Setenv("SWITCHBOARD_TEST_DIR", tmpDir)

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Anthropic.APIKey)
	assert.Equal(t, PlannerBroadcast, cfg.Orchestrator.Planner)
	assert.Equal(t, 3, cfg.Orchestrator.MaxIterations)
	assert.False(t, cfg.Orchestrator.Parallel)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 2, cfg.Remote.Window)
	assert.Equal(t, filepath.Join(tmpDir, "state.db"), cfg.Context.PersistPath)
	assert.Equal(t, []string{"fraud", "payment"}, cfg.Synthesis.RootCausePrecedence)
	assert.Equal(t, "template", cfg.Synthesis.Drafter, "default drafter should survive a partial file")

	require.Len(t, cfg.Endpoints, 2)
	assert.Equal(t, "http://localhost:8101", cfg.Endpoints[0].URL, "endpoint url not normalized")
	assert.Equal(t, "inventory", cfg.Endpoints[1].CapabilityID, "endpoint order not kept")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("remote:\n  window: 2\n"), 0644))

	t.Setenv("SWITCHBOARD_REMOTE_WINDOW", "9")
	t.Setenv("SWITCHBOARD_ORCHESTRATOR_PLANNER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := LoadFromPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Remote.Window)
	assert.Equal(t, PlannerOpenAI, cfg.Orchestrator.Planner)
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown planner", func(c *Config) { c.Orchestrator.Planner = "magic" }, "orchestrator.planner"},
		{"zero iterations", func(c *Config) { c.Orchestrator.MaxIterations = 0 }, "max_iterations"},
		{"negative parallel", func(c *Config) { c.Orchestrator.MaxParallel = -1 }, "max_parallel"},
		{"zero timeout", func(c *Config) { c.Remote.Timeout = 0 }, "remote.timeout"},
		{"negative window", func(c *Config) { c.Remote.Window = -1 }, "remote.window"},
		{"negative max turns", func(c *Config) { c.Context.MaxTurns = -1 }, "context.max_turns"},
		{"negative retention", func(c *Config) { c.Context.Retention = -time.Hour }, "context.retention"},
		{"bad drafter", func(c *Config) { c.Synthesis.Drafter = "poet" }, "synthesis.drafter"},
		{"bad pattern", func(c *Config) { c.Synthesis.ReferencePattern = "([" }, "reference_pattern"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"endpoint without url", func(c *Config) {
			c.Endpoints = append(c.Endpoints, endpoint("order", ""))
		}, "endpoints[0]"},
		{"duplicate endpoint", func(c *Config) {
			c.Endpoints = append(c.Endpoints, endpoint("order", "http://a"), endpoint("order", "http://b"))
		}, "duplicate capability_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")
	assert.Equal(t, "prefix-expanded-value-suffix", expandEnv("prefix-${TEST_VAR}-suffix"))
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	assert.Equal(t, "/custom/config/switchboard", getUserConfigDir())
	assert.Equal(t, filepath.Join("/custom/config/switchboard", "config.yaml"), GetUserConfigPath())
}

func endpoint(id, url string) models.Endpoint {
	return models.Endpoint{CapabilityID: id, URL: url, Name: id}
}
