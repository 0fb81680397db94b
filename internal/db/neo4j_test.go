package db

import (
	"context"
	"os"
	"testing"

	"github.com/dpolishuk/docweave/internal/models"
	"github.com/dpolishuk/docweave/internal/store"
)

func testClient(t *testing.T) *Neo4jClient {
	t.Helper()
	// This test requires Neo4j running
	// Skip in CI without Neo4j
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "docweave_password"
	}
	cfg := Neo4jConfig{
		URI:      uri,
		Username: "neo4j",
		Password: password,
	}

	client, err := NewNeo4jClient(context.Background(), cfg)
	if err != nil {
		t.Skipf("Neo4j not available: %v", err)
	}
	t.Cleanup(func() { client.Close(context.Background()) })
	return client
}

func sampleStore() *store.Store {
	st := store.New()
	st.Add("b", "a", "a", "print")
	st.Update("b", func(e *models.Entity) {
		e.IsCustom = true
		e.SourcePath = "pkg/mod.py"
		e.Type = models.EntityFunction
	})
	st.Update("a", func(e *models.Entity) {
		e.IsCustom = true
		e.SourcePath = "pkg/mod.py"
		e.Type = models.EntityFunction
		e.Documentation = "Return one."
	})
	st.Add("C", "C.m")
	st.Update("C", func(e *models.Entity) {
		e.IsCustom = true
		e.SourcePath = "pkg/other.py"
		e.Type = models.EntityClass
	})
	st.Update("C.m", func(e *models.Entity) {
		e.IsCustom = true
		e.SourcePath = "pkg/other.py"
		e.Type = models.EntityMethod
	})
	return st
}

func TestBuildCallGraph(t *testing.T) {
	g := buildCallGraph(sampleStore())

	if len(g.Files) != 2 || g.Files[0] != "pkg/mod.py" || g.Files[1] != "pkg/other.py" {
		t.Errorf("Unexpected files %v", g.Files)
	}
	if n := len(g.Entities["Function"]); n != 2 {
		t.Errorf("Expected 2 functions, got %d", n)
	}
	if n := len(g.Entities["Class"]); n != 1 {
		t.Errorf("Expected 1 class, got %d", n)
	}
	if n := len(g.Entities["Method"]); n != 1 {
		t.Errorf("Expected 1 method, got %d", n)
	}
	refs := g.Entities["Reference"]
	if len(refs) != 1 || refs[0]["name"] != "print" || refs[0]["custom"] != false {
		t.Errorf("Expected print as the only reference, got %v", refs)
	}

	if len(g.Calls) != 3 {
		t.Fatalf("Expected 3 distinct calls, got %d: %v", len(g.Calls), g.Calls)
	}
	first := g.Calls[0]
	if first["caller"] != "b" || first["callee"] != "a" || first["count"] != 2 {
		t.Errorf("Expected repeated call b->a counted twice, got %v", first)
	}
}

func TestNewNeo4jClient(t *testing.T) {
	client := testClient(t)

	// Verify connection
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Failed to ping: %v", err)
	}
}

func TestWriteStore(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	run, err := CreateRun(ctx, client, &Run{Path: "pkg", Model: "test-model"})
	if err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	defer DeleteRun(ctx, client, run.ID)

	if err := NewGraphWriter(client).WriteStore(ctx, run.ID, sampleStore()); err != nil {
		t.Fatalf("Failed to write store: %v", err)
	}
	if err := FinishRun(ctx, client, run.ID, 4, 1); err != nil {
		t.Fatalf("Failed to finish run: %v", err)
	}

	reader := NewGraphReader(client)
	calls, err := reader.GetCalls(ctx, run.ID)
	if err != nil {
		t.Fatalf("Failed to read calls: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("Expected 3 call edges, got %v", calls)
	}
	if calls[0].Caller != "C" || calls[0].Callee != "C.m" {
		t.Errorf("Unexpected first edge %+v", calls[0])
	}

	undocumented, err := reader.GetUndocumented(ctx, run.ID)
	if err != nil {
		t.Fatalf("Failed to read undocumented: %v", err)
	}
	if len(undocumented) != 3 {
		t.Errorf("Expected C, C.m and b undocumented, got %v", undocumented)
	}

	got, err := GetRun(ctx, client, run.ID)
	if err != nil || got == nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if got.Status != RunStatusFinished || got.Documented != 1 || got.Entities != 4 {
		t.Errorf("Unexpected run %+v", got)
	}
}
