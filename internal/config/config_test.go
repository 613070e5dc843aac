package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("worker:\n  id: w-test\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Worker.ID != "w-test" {
		t.Errorf("worker.id = %q, want w-test", cfg.Worker.ID)
	}
	if cfg.Worker.ErrorBackoff != 5*time.Second {
		t.Errorf("worker.error_backoff = %v, want 5s", cfg.Worker.ErrorBackoff)
	}
	if cfg.Generation.MaxAttempts != 3 {
		t.Errorf("generation.max_attempts = %d, want 3", cfg.Generation.MaxAttempts)
	}
	if cfg.Generation.MaxSections != 8 {
		t.Errorf("generation.max_sections = %d, want 8", cfg.Generation.MaxSections)
	}
	if cfg.Figures.MaxImages != 2 {
		t.Errorf("figures.max_images = %d, want 2", cfg.Figures.MaxImages)
	}
	if cfg.Store.Backend != "sql" || cfg.Store.SQL.Driver != "sqlite" {
		t.Errorf("store = %q/%q, want sql/sqlite", cfg.Store.Backend, cfg.Store.SQL.Driver)
	}
	if got := cfg.Store.SQL.ConnString(); got != "./data/coursegen.db?_busy_timeout=5000" {
		t.Errorf("sqlite ConnString() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "cassandra" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.Generation.MaxAttempts = 0 }, wantErr: true},
		{name: "min above max sections", mutate: func(c *Config) { c.Generation.MinSections = 9 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{
				Store:      StoreConfig{Backend: "memory"},
				Generation: GenerationConfig{MaxAttempts: 3, MinSections: 4, MaxSections: 8},
			}
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelConfig_ResolveEnvVars(t *testing.T) {
	t.Setenv("COURSEGEN_TEST_KEY", "sk-from-env")

	c := &ModelConfig{Model: "gpt-4o-mini", APIKeyEnv: "COURSEGEN_TEST_KEY"}
	c.ResolveEnvVars()
	if c.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", c.APIKey)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	direct := &ModelConfig{Model: "m", APIKey: "direct", APIKeyEnv: "COURSEGEN_TEST_KEY"}
	direct.ResolveEnvVars()
	if direct.APIKey != "direct" {
		t.Errorf("direct key overwritten: %q", direct.APIKey)
	}
}
