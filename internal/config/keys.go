package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Provider names an LLM backend that needs an API key.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

func envVars(p Provider) []string {
	if p == ProviderOpenAI {
		return []string{"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY"}
	}
	return []string{"ANTHROPIC_API_KEY"}
}

func configuredKey(cfg *Config, p Provider) string {
	if cfg == nil {
		return ""
	}
	key := cfg.Anthropic.APIKey
	if p == ProviderOpenAI {
		key = cfg.OpenAI.APIKey
	}
	key = os.ExpandEnv(key)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// GetAPIKey returns the provider's API key.
// It checks in order: environment variables, config file.
func GetAPIKey(cfg *Config, p Provider) (string, error) {
	for _, name := range envVars(p) {
		if key := os.Getenv(name); key != "" {
			return key, nil
		}
	}
	if key := configuredKey(cfg, p); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%s: %w", p, ErrNoAPIKey)
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with the provider.
func ValidateAPIKey(p Provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	// Anthropic API keys start with "sk-ant-"
	if p == ProviderAnthropic && !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's API key was sourced from.
func GetAPIKeySource(cfg *Config, p Provider) KeySource {
	for _, name := range envVars(p) {
		if os.Getenv(name) != "" {
			return KeySourceEnv
		}
	}
	if configuredKey(cfg, p) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
