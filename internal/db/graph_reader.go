package db

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphReader struct {
	client *Neo4jClient
}

func NewGraphReader(client *Neo4jClient) *GraphReader {
	return &GraphReader{client: client}
}

// CallEdge is one CALLS relationship of an exported run.
type CallEdge struct {
	Caller string
	Callee string
	Count  int
}

// GetCalls returns the call edges exported for a run, ordered by caller
// then callee.
func (r *GraphReader) GetCalls(ctx context.Context, runID string) ([]CallEdge, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:Entity {runId: $runId})-[c:CALLS]->(b:Entity)
			RETURN a.name AS caller, b.name AS callee, c.count AS count
			ORDER BY caller, callee
		`
		records, err := tx.Run(ctx, query, map[string]any{"runId": runID})
		if err != nil {
			return nil, err
		}

		var edges []CallEdge
		for records.Next(ctx) {
			rec := records.Record()
			caller, _ := rec.Get("caller")
			callee, _ := rec.Get("callee")
			count, _ := rec.Get("count")

			edge := CallEdge{Caller: caller.(string), Callee: callee.(string)}
			if n, ok := count.(int64); ok {
				edge.Count = int(n)
			}
			edges = append(edges, edge)
		}
		return edges, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]CallEdge), nil
}

// GetUndocumented lists the custom entities of a run left without
// documentation.
func (r *GraphReader) GetUndocumented(ctx context.Context, runID string) ([]string, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (e:Entity {runId: $runId, custom: true, documented: false})
			RETURN e.name AS name
			ORDER BY name
		`
		records, err := tx.Run(ctx, query, map[string]any{"runId": runID})
		if err != nil {
			return nil, err
		}

		var names []string
		for records.Next(ctx) {
			name, _ := records.Record().Get("name")
			names = append(names, name.(string))
		}
		return names, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}
