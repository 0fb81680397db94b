// Package config resolves docweave settings from defaults, the environment,
// an optional YAML file and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dpolishuk/docweave/internal/llm"
	"github.com/dpolishuk/docweave/internal/shorten"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultAPIKeyEnv = "OPENAI_API_KEY"

var ErrNoBackend = errors.New("use --port for a local backend or --api-key/--api-key-env for a remote one")

type Config struct {
	Verbose     bool    `yaml:"verbose"`
	APIKey      string  `yaml:"api_key"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	APIBaseURL  string  `yaml:"api_base_url" validate:"required,url"`
	Model       string  `yaml:"model" validate:"required"`
	Port        int     `yaml:"port" validate:"gte=0,lte=65535"`
	RefDoc      string  `yaml:"ref_doc"`
	MaxRetries  int     `yaml:"max_retries" validate:"gte=1"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=1"`
	// BackendRetries bounds transport retries of a single backend call.
	BackendRetries int      `yaml:"backend_retries" validate:"gte=1"`
	Report         string   `yaml:"report"`
	PythonPath     []string `yaml:"python_path"`
	RefTables      []string `yaml:"ref_tables"`
	MetricsFile    string   `yaml:"metrics_file"`
	Neo4jURI       string   `yaml:"neo4j_uri"`
	Neo4jUser      string   `yaml:"neo4j_user"`
	Neo4jPassword  string   `yaml:"neo4j_password"`
	DryRun         bool     `yaml:"dry_run"`
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	return &Config{
		APIKeyEnv:      getEnv("DOCWEAVE_API_KEY_ENV", ""),
		APIBaseURL:     getEnv("DOCWEAVE_API_BASE_URL", llm.DefaultBaseURL),
		Model:          getEnv("DOCWEAVE_MODEL", "gpt-4o-mini"),
		Port:           getEnvInt("DOCWEAVE_PORT", 0),
		RefDoc:         getEnv("DOCWEAVE_REF_DOC", string(shorten.Truncate)),
		MaxRetries:     getEnvInt("DOCWEAVE_MAX_RETRIES", 3),
		Temperature:    getEnvFloat("DOCWEAVE_TEMPERATURE", 0.8),
		MaxTokens:      getEnvInt("DOCWEAVE_MAX_TOKENS", 2048),
		BackendRetries: getEnvInt("DOCWEAVE_BACKEND_RETRIES", 3),
		PythonPath:     splitPathList(getEnv("PYTHONPATH", "")),
		Neo4jURI:       getEnv("NEO4J_URI", ""),
		Neo4jUser:      getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:  getEnv("NEO4J_PASSWORD", ""),
	}
}

// LoadFile merges the YAML file at path into c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks field ranges and that some backend is usable.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Port == 0 && c.ResolvedAPIKey() == "" {
		return ErrNoBackend
	}
	return nil
}

// ResolvedAPIKey returns the key given directly, else the one held by the
// configured environment variable.
func (c *Config) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	env := c.APIKeyEnv
	if env == "" {
		env = DefaultAPIKeyEnv
	}
	return os.Getenv(env)
}

// Backend returns the options for the chat backend. A port selects a local
// OpenAI-compatible server.
func (c *Config) Backend() llm.Options {
	opts := llm.Options{
		Mode:        llm.ModeRemote,
		BaseURL:     c.APIBaseURL,
		APIKey:      c.ResolvedAPIKey(),
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Retries:     c.BackendRetries,
	}
	if c.Port > 0 {
		opts.Mode = llm.ModeLocal
		opts.Port = c.Port
		opts.BaseURL = ""
	}
	return opts
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getEnvFloat(key string, fallback float32) float32 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 32); err == nil {
		return float32(f)
	}
	return fallback
}

func splitPathList(list string) []string {
	var out []string
	for _, p := range filepath.SplitList(list) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
