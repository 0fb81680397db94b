package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
)

// Run is one docweave invocation recorded in the graph.
type Run struct {
	ID         string
	Path       string
	Model      string
	Status     string
	StartedAt  time.Time
	Entities   int
	Documented int
}

// CreateRun records a new run node, assigning an ID when run has none.
func CreateRun(ctx context.Context, client *Neo4jClient, run *Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Status = RunStatusRunning
	run.StartedAt = time.Now().UTC()

	_, err := client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CREATE (r:Run {
				id: $id,
				path: $path,
				model: $model,
				status: $status,
				startedAt: $startedAt,
				entities: 0,
				documented: 0
			})
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":        run.ID,
			"path":      run.Path,
			"model":     run.Model,
			"status":    run.Status,
			"startedAt": run.StartedAt,
		})
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counts of a run.
func FinishRun(ctx context.Context, client *Neo4jClient, id string, entities, documented int) error {
	_, err := client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (r:Run {id: $id})
			SET r.status = $status,
			    r.entities = $entities,
			    r.documented = $documented,
			    r.finishedAt = $finishedAt
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":         id,
			"status":     RunStatusFinished,
			"entities":   entities,
			"documented": documented,
			"finishedAt": time.Now().UTC(),
		})
		return nil, err
	})
	return err
}

// GetRun returns the run with the given ID, or nil when there is none.
func GetRun(ctx context.Context, client *Neo4jClient, id string) (*Run, error) {
	result, err := client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (r:Run {id: $id})
			RETURN r.id AS id, r.path AS path, r.model AS model, r.status AS status,
			       r.startedAt AS startedAt, r.entities AS entities, r.documented AS documented
		`
		result, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			return recordToRun(result.Record()), nil
		}
		return nil, result.Err()
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*Run), nil
}

// DeleteRun removes a run and everything exported under it.
func DeleteRun(ctx context.Context, client *Neo4jClient, id string) error {
	_, err := client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (r:Run {id: $id})
			OPTIONAL MATCH (n {runId: $id})
			DETACH DELETE n, r
		`
		_, err := tx.Run(ctx, query, map[string]any{"id": id})
		return nil, err
	})
	return err
}

func recordToRun(record *neo4j.Record) *Run {
	run := &Run{}

	if id, ok := record.Get("id"); ok && id != nil {
		run.ID = id.(string)
	}
	if path, ok := record.Get("path"); ok && path != nil {
		run.Path = path.(string)
	}
	if model, ok := record.Get("model"); ok && model != nil {
		run.Model = model.(string)
	}
	if status, ok := record.Get("status"); ok && status != nil {
		run.Status = status.(string)
	}
	if startedAt, ok := record.Get("startedAt"); ok && startedAt != nil {
		if t, ok := startedAt.(time.Time); ok {
			run.StartedAt = t
		}
	}
	if entities, ok := record.Get("entities"); ok && entities != nil {
		run.Entities = int(entities.(int64))
	}
	if documented, ok := record.Get("documented"); ok && documented != nil {
		run.Documented = int(documented.(int64))
	}

	return run
}
