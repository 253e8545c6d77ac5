//go:build integration

package graph

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	url := os.Getenv("NEO4J_URL")
	if url == "" {
		url = "neo4j://localhost:7687"
	}
	driver, err := neo4j.NewDriverWithContext(url, neo4j.NoAuth())
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("neo4j verify: %v", err)
	}
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func TestNeo4j_ApplyBatchAndGetNode(t *testing.T) {
	driver := testDriver(t)
	store := New(driver)
	ctx := context.Background()

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	batch := Batch{
		Seq: 0,
		Nodes: []NodeRecord{
			{StableID: "it-comp-1", Label: LabelComponent, Props: map[string]any{"name": "bracket"}},
			{StableID: "it-feat-1", Label: LabelFeature, Props: map[string]any{
				"name": "Extrude1", "component_id": "it-comp-1", "timeline_index": int64(0),
			}},
		},
		Relationships: []RelationshipRecord{
			{SourceID: "it-comp-1", TargetID: "it-feat-1", Type: RelContains},
		},
	}
	lr, err := store.ApplyBatch(ctx, batch)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if lr.NodesCreated != 2 {
		t.Fatalf("expected 2 nodes created, got %d", lr.NodesCreated)
	}
	if lr.RelationshipsCreated != 1 {
		t.Fatalf("expected 1 relationship created, got %d", lr.RelationshipsCreated)
	}

	got, err := store.GetNode(ctx, "it-feat-1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Label != LabelFeature {
		t.Fatalf("expected label %s, got %s", LabelFeature, got.Label)
	}
	if got.Props["name"] != "Extrude1" {
		t.Fatalf("unexpected props: %v", got.Props)
	}
}

func TestNeo4j_ApplyBatchIdempotent(t *testing.T) {
	driver := testDriver(t)
	store := New(driver)
	ctx := context.Background()

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	batch := Batch{
		Nodes: []NodeRecord{
			{StableID: "it-sk-1", Label: LabelSketch, Props: map[string]any{"name": "Sketch1"}},
		},
	}
	if _, err := store.ApplyBatch(ctx, batch); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	lr, err := store.ApplyBatch(ctx, batch)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if lr.NodesCreated != 0 || lr.NodesMerged != 1 {
		t.Fatalf("expected merge on re-apply, got %+v", lr)
	}
}

func TestNeo4j_NodeCountsExcludeBaseLabel(t *testing.T) {
	driver := testDriver(t)
	store := New(driver)
	ctx := context.Background()

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	batch := Batch{
		Nodes: []NodeRecord{
			{StableID: "it-p-1", Label: LabelSketchPoint},
			{StableID: "it-p-2", Label: LabelSketchPoint},
		},
	}
	if _, err := store.ApplyBatch(ctx, batch); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	counts, err := store.NodeCounts(ctx)
	if err != nil {
		t.Fatalf("NodeCounts: %v", err)
	}
	if counts[LabelSketchPoint] != 2 {
		t.Fatalf("expected 2 points, got %v", counts)
	}
	if _, ok := counts["Entity"]; ok {
		t.Fatalf("base label should not be counted: %v", counts)
	}
}
