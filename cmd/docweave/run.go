package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dpolishuk/docweave/internal/config"
	"github.com/dpolishuk/docweave/internal/db"
	"github.com/dpolishuk/docweave/internal/docgen"
	"github.com/dpolishuk/docweave/internal/indexer"
	"github.com/dpolishuk/docweave/internal/llm"
	"github.com/dpolishuk/docweave/internal/logger"
	"github.com/dpolishuk/docweave/internal/metrics"
	"github.com/dpolishuk/docweave/internal/refdoc"
	"github.com/dpolishuk/docweave/internal/report"
	"github.com/dpolishuk/docweave/internal/rewriter"
	"github.com/dpolishuk/docweave/internal/shorten"
	"github.com/dpolishuk/docweave/internal/store"
	"github.com/google/uuid"
)

// run executes the whole pipeline on target: extraction, reference docs,
// generation, rewriting, then the optional outputs.
func run(ctx context.Context, cfg *config.Config, target string, log *logger.Logger) error {
	runID := uuid.New().String()
	log = log.With("run_id", runID)

	pipeline := indexer.NewPipeline(log)
	defer pipeline.Close()

	idx, err := pipeline.Collect(ctx, target)
	if err != nil {
		return err
	}

	refs := refdoc.NewBuilder(searchPaths(target, cfg.PythonPath), log)
	defer refs.Close()
	if err := refs.Builtins(); err != nil {
		return err
	}
	for _, path := range cfg.RefTables {
		if err := refs.LoadFile(path); err != nil {
			return err
		}
	}
	table := refs.Build(ctx, idx.Imports)

	backend := llm.NewClient(cfg.Backend(), log)
	rec := metrics.New()
	shortener := shorten.New(shorten.Policy(cfg.RefDoc), backend, docgen.SystemPrompt, docgen.SummarizationPrompt, log)

	engine := docgen.NewEngine(idx.Store, backend, table, shortener, rec, cfg.MaxRetries, log)
	defer engine.Close()

	summary, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("generation stopped: %w", err)
	}

	res, err := rewriter.New(log, cfg.DryRun).Rewrite(idx.Files, idx.Store)
	if err != nil {
		return err
	}
	log.Info("Rewrote sources", "files", len(res.FilesChanged), "replacements", res.Replacements, "skipped", len(res.Skipped), "dry_run", cfg.DryRun)

	if cfg.Report != "" {
		if err := report.WriteFile(cfg.Report, idx.Store); err != nil {
			return err
		}
		log.Info("Wrote report", "path", cfg.Report)
	}
	if cfg.MetricsFile != "" {
		if err := rec.WriteFile(cfg.MetricsFile); err != nil {
			return err
		}
		log.Info("Wrote metrics", "path", cfg.MetricsFile)
	}
	if cfg.Neo4jURI != "" {
		if err := exportGraph(ctx, cfg, runID, target, idx.Store, summary); err != nil {
			return fmt.Errorf("call graph export failed: %w", err)
		}
		log.Info("Exported call graph", "uri", cfg.Neo4jURI)
	}
	return nil
}

// searchPaths puts the project root ahead of the configured Python path.
func searchPaths(target string, pythonPath []string) []string {
	root := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		root = filepath.Dir(target)
	}
	return append([]string{root}, pythonPath...)
}

func exportGraph(ctx context.Context, cfg *config.Config, runID, target string, st *store.Store, summary *docgen.Summary) error {
	client, err := db.NewNeo4jClient(ctx, db.Neo4jConfig{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
	})
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	r, err := db.CreateRun(ctx, client, &db.Run{ID: runID, Path: target, Model: cfg.Model})
	if err != nil {
		return err
	}
	if err := db.NewGraphWriter(client).WriteStore(ctx, r.ID, st); err != nil {
		return err
	}
	return db.FinishRun(ctx, client, r.ID, summary.Total, summary.Documented)
}
