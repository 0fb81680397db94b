package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dpolishuk/docweave/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DOCWEAVE_MODEL", "")
	os.Unsetenv("DOCWEAVE_MODEL")
	t.Setenv("PYTHONPATH", "/opt/lib"+string(os.PathListSeparator)+"/srv/lib")

	cfg := Load()

	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, llm.DefaultBaseURL, cfg.APIBaseURL)
	assert.Equal(t, "truncate", cfg.RefDoc)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.InDelta(t, 0.8, cfg.Temperature, 1e-6)
	assert.Equal(t, []string{"/opt/lib", "/srv/lib"}, cfg.PythonPath)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DOCWEAVE_MAX_RETRIES", "5")
	t.Setenv("DOCWEAVE_TEMPERATURE", "0.25")
	t.Setenv("DOCWEAVE_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.InDelta(t, 0.25, cfg.Temperature, 1e-6)
	assert.Equal(t, 0, cfg.Port)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docweave.yaml")
	content := "model: local-llama\nport: 8080\nref_doc: full\nref_tables:\n  - numpy.yaml\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := Load()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "local-llama", cfg.Model)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "full", cfg.RefDoc)
	assert.Equal(t, []string{"numpy.yaml"}, cfg.RefTables)
	assert.Equal(t, 3, cfg.MaxRetries, "keys absent from the file keep their value")

	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MY_KEY", "sk-from-env")

	// keyed gives the config a usable backend before applying f.
	keyed := func(f func(c *Config)) func(c *Config) {
		return func(c *Config) {
			c.APIKey = "sk-direct"
			f(c)
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"local port", func(c *Config) { c.Port = 8080 }, false},
		{"direct key", func(c *Config) { c.APIKey = "sk-direct" }, false},
		{"key from named env", func(c *Config) { c.APIKeyEnv = "MY_KEY" }, false},
		{"no backend", func(c *Config) {}, true},
		{"zero retries", keyed(func(c *Config) { c.MaxRetries = 0 }), true},
		{"temperature too high", keyed(func(c *Config) { c.Temperature = 2.5 }), true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"bad base url", keyed(func(c *Config) { c.APIBaseURL = "not a url" }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cfg := Load()
	assert.True(t, errors.Is(cfg.Validate(), ErrNoBackend))
}

func TestBackend(t *testing.T) {
	cfg := Load()
	cfg.APIKey = "sk-test"
	cfg.APIBaseURL = "https://example.test/v1"

	remote := cfg.Backend()
	assert.Equal(t, llm.ModeRemote, remote.Mode)
	assert.Equal(t, "https://example.test/v1", remote.BaseURLFor())
	assert.Equal(t, "sk-test", remote.APIKey)

	cfg.Port = 9000
	local := cfg.Backend()
	assert.Equal(t, llm.ModeLocal, local.Mode)
	assert.Equal(t, "http://localhost:9000/v1", local.BaseURLFor())
}
