package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/store"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Node labels, one per entity type. Every entity node also carries Entity.
var entityLabels = map[models.EntityType]string{
	models.EntityFunction: "Function",
	models.EntityMethod:   "Method",
	models.EntityClass:    "Class",
	models.EntityUnknown:  "Reference",
}

type GraphWriter struct {
	client *Neo4jClient
}

func NewGraphWriter(client *Neo4jClient) *GraphWriter {
	return &GraphWriter{client: client}
}

// callGraph is a store flattened into query parameters.
type callGraph struct {
	Files    []string
	Entities map[string][]map[string]any
	Calls    []map[string]any
}

func buildCallGraph(st *store.Store) callGraph {
	g := callGraph{Entities: make(map[string][]map[string]any)}
	files := make(map[string]bool)
	calls := make(map[[2]string]int)
	var order [][2]string

	for _, name := range st.Names() {
		e := st.Get(name)
		label, ok := entityLabels[e.Type]
		if !ok || !e.IsCustom {
			label = entityLabels[models.EntityUnknown]
		}
		if e.IsCustom && e.SourcePath != models.None {
			files[e.SourcePath] = true
		}
		g.Entities[label] = append(g.Entities[label], map[string]any{
			"name":               e.Name,
			"custom":             e.IsCustom,
			"documented":         e.Documented(),
			"documentation":      e.Documentation,
			"documentationShort": e.DocumentationShort,
			"filePath":           e.SourcePath,
		})
		for _, dep := range e.Dependencies {
			key := [2]string{e.Name, dep}
			if calls[key] == 0 {
				order = append(order, key)
			}
			calls[key]++
		}
	}

	for path := range files {
		g.Files = append(g.Files, path)
	}
	sort.Strings(g.Files)
	for _, key := range order {
		g.Calls = append(g.Calls, map[string]any{"caller": key[0], "callee": key[1], "count": calls[key]})
	}
	return g
}

// WriteStore exports every entity of st and its CALLS edges under the run
// runID in a single transaction.
func (w *GraphWriter) WriteStore(ctx context.Context, runID string, st *store.Store) error {
	g := buildCallGraph(st)

	labels := make([]string, 0, len(g.Entities))
	for label := range g.Entities {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	_, err := w.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (r:Run {id: $runId})
			UNWIND $files AS path
			MERGE (f:File {runId: $runId, path: path})
			MERGE (r)-[:CONTAINS]->(f)
		`
		if _, err := tx.Run(ctx, query, map[string]any{"runId": runID, "files": g.Files}); err != nil {
			return nil, fmt.Errorf("failed to write files: %w", err)
		}

		for _, label := range labels {
			// label comes from entityLabels, never from input
			query := fmt.Sprintf(`
				UNWIND $rows AS row
				CREATE (e:Entity:%s {
					runId: $runId,
					name: row.name,
					custom: row.custom,
					documented: row.documented,
					documentation: row.documentation,
					documentationShort: row.documentationShort,
					filePath: row.filePath
				})
				WITH e, row
				OPTIONAL MATCH (f:File {runId: $runId, path: row.filePath})
				FOREACH (_ IN CASE WHEN f IS NULL THEN [] ELSE [1] END | CREATE (f)-[:DECLARES]->(e))
			`, label)
			if _, err := tx.Run(ctx, query, map[string]any{"runId": runID, "rows": g.Entities[label]}); err != nil {
				return nil, fmt.Errorf("failed to write %s entities: %w", label, err)
			}
		}

		query = `
			UNWIND $calls AS c
			MATCH (caller:Entity {runId: $runId, name: c.caller})
			MATCH (callee:Entity {runId: $runId, name: c.callee})
			MERGE (caller)-[rel:CALLS]->(callee)
			SET rel.count = c.count
		`
		if _, err := tx.Run(ctx, query, map[string]any{"runId": runID, "calls": g.Calls}); err != nil {
			return nil, fmt.Errorf("failed to write calls: %w", err)
		}
		return nil, nil
	})

	return err
}
