package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dpolishuk/docweave/internal/config"
	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/spf13/cobra"
)

// flagValues holds raw flag input; only flags the user set override the
// environment and the config file.
type flagValues struct {
	configFile    string
	verbose       bool
	apiKey        string
	apiKeyEnv     string
	apiBaseURL    string
	model         string
	port          int
	refDoc        string
	maxRetries    int
	temperature   float32
	maxTokens     int
	report        string
	pythonPath    []string
	refTables     []string
	metricsFile   string
	neo4jURI      string
	neo4jUser     string
	neo4jPassword string
	dryRun        bool
}

func newRootCommand() *cobra.Command {
	defaults := config.Load()
	fv := &flagValues{}

	cmd := &cobra.Command{
		Use:   "docweave <path>",
		Short: "Generate verified docstrings for a Python file or project",
		Long: `docweave documents every function, method and class of a Python project in
dependency order. Callees are documented first so their short docs can be
given as context to callers. A generated docstring is only kept when the
documented code is structurally identical to the original.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := resolveConfig(cmd, fv)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Verbose)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, args[0], log); err != nil {
				log.Error("Run failed", "error", err)
				return err
			}
			return nil
		},
	}
	bindFlags(cmd, fv, defaults)
	return cmd
}

// bindFlags registers every flag on cmd, showing env-derived defaults.
func bindFlags(cmd *cobra.Command, fv *flagValues, defaults *config.Config) {
	f := cmd.Flags()
	f.StringVar(&fv.configFile, "config", "", "YAML configuration file")
	f.BoolVarP(&fv.verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVar(&fv.apiKey, "api-key", "", "API key for the remote backend")
	f.StringVar(&fv.apiKeyEnv, "api-key-env", defaults.APIKeyEnv, "Environment variable holding the API key (default OPENAI_API_KEY)")
	f.StringVar(&fv.apiBaseURL, "api-base-url", defaults.APIBaseURL, "Base URL of the OpenAI-compatible API")
	f.StringVar(&fv.model, "model", defaults.Model, "Model used for generation")
	f.IntVarP(&fv.port, "port", "p", defaults.Port, "Port of a local OpenAI-compatible server; selects local mode")
	f.StringVar(&fv.refDoc, "ref-doc", defaults.RefDoc, "How dependency docs are shortened: truncate, summarize or full")
	f.IntVar(&fv.maxRetries, "max-retries", defaults.MaxRetries, "Generation attempts per entity")
	f.Float32Var(&fv.temperature, "temperature", defaults.Temperature, "Sampling temperature")
	f.IntVar(&fv.maxTokens, "max-tokens", defaults.MaxTokens, "Maximum tokens generated per call")
	f.StringVar(&fv.report, "report", "", "Write a CSV report to this path")
	f.StringSliceVar(&fv.pythonPath, "python-path", defaults.PythonPath, "Directories searched for imported modules (default $PYTHONPATH)")
	f.StringSliceVar(&fv.refTables, "ref-table", nil, "YAML files mapping dotted names to reference docs")
	f.StringVar(&fv.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	f.StringVar(&fv.neo4jURI, "neo4j-uri", defaults.Neo4jURI, "Export the call graph to this Neo4j instance")
	f.StringVar(&fv.neo4jUser, "neo4j-user", defaults.Neo4jUser, "Neo4j user")
	f.StringVar(&fv.neo4jPassword, "neo4j-password", "", "Neo4j password (default $NEO4J_PASSWORD)")
	f.BoolVar(&fv.dryRun, "dry-run", false, "Do everything except writing source files")
}

// resolveConfig layers defaults and environment, the config file, then the
// flags the user actually set.
func resolveConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg := config.Load()
	if fv.configFile != "" {
		if err := cfg.LoadFile(fv.configFile); err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("verbose") {
		cfg.Verbose = fv.verbose
	}
	if changed("api-key") {
		cfg.APIKey = fv.apiKey
	}
	if changed("api-key-env") {
		cfg.APIKeyEnv = fv.apiKeyEnv
	}
	if changed("api-base-url") {
		cfg.APIBaseURL = fv.apiBaseURL
	}
	if changed("model") {
		cfg.Model = fv.model
	}
	if changed("port") {
		cfg.Port = fv.port
	}
	if changed("ref-doc") {
		cfg.RefDoc = fv.refDoc
	}
	if changed("max-retries") {
		cfg.MaxRetries = fv.maxRetries
	}
	if changed("temperature") {
		cfg.Temperature = fv.temperature
	}
	if changed("max-tokens") {
		cfg.MaxTokens = fv.maxTokens
	}
	if changed("report") {
		cfg.Report = fv.report
	}
	if changed("python-path") {
		cfg.PythonPath = fv.pythonPath
	}
	if changed("ref-table") {
		cfg.RefTables = append(cfg.RefTables, fv.refTables...)
	}
	if changed("metrics-file") {
		cfg.MetricsFile = fv.metricsFile
	}
	if changed("neo4j-uri") {
		cfg.Neo4jURI = fv.neo4jURI
	}
	if changed("neo4j-user") {
		cfg.Neo4jUser = fv.neo4jUser
	}
	if changed("neo4j-password") {
		cfg.Neo4jPassword = fv.neo4jPassword
	}
	if changed("dry-run") {
		cfg.DryRun = fv.dryRun
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
