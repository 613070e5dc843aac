package config

import (
	"fmt"
	"os"
	"time"
)

// ModelConfig describes an OpenAI-compatible model endpoint.
type ModelConfig struct {
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	APIKeyEnv   string        `mapstructure:"api_key_env"` // env var holding the key
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Size        string        `mapstructure:"size"` // images only
}

// ResolveEnvVars fills APIKey from APIKeyEnv when no key was set directly.
func (c *ModelConfig) ResolveEnvVars() {
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

// Enabled reports whether the endpoint can be called at all.
func (c *ModelConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// Validate checks the fields needed to call the endpoint.
func (c *ModelConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model config: model is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("model %q: api_key is required (set directly or via %s)", c.Model, c.APIKeyEnv)
	}
	return nil
}
