package graph

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestTopComponents(t *testing.T) {
	res := newMockResult(
		&neo4j.Record{
			Keys:   []string{"component", "features", "bodies", "sketches"},
			Values: []any{"chassis", int64(5), int64(2), int64(3)},
		},
		&neo4j.Record{
			Keys:   []string{"component", "features", "bodies", "sketches"},
			Values: []any{"bracket", int64(1), int64(1), int64(1)},
		},
	)
	sess := &mockSession{runResult: res}
	gs := NewWithOpener(&mockOpener{session: sess})

	stats, err := gs.TopComponents(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopComponents: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 components, got %d", len(stats))
	}
	if stats[0].Component != "chassis" || stats[0].Features != 5 || stats[0].Bodies != 2 || stats[0].Sketches != 3 {
		t.Fatalf("unexpected stats: %+v", stats[0])
	}
	if len(sess.params) == 0 || sess.params[0]["limit"] != int64(10) {
		t.Fatalf("expected limit param, got %v", sess.params)
	}
}

func TestTimelineOrdered(t *testing.T) {
	res := newMockResult(
		&neo4j.Record{
			Keys:   []string{"name", "operation", "timeline_index"},
			Values: []any{"Extrude1", "NewBody", int64(1)},
		},
		&neo4j.Record{
			Keys:   []string{"name", "operation", "timeline_index"},
			Values: []any{"Extrude2", "Join", int64(2)},
		},
	)
	sess := &mockSession{runResult: res}
	gs := NewWithOpener(&mockOpener{session: sess})

	feats, err := gs.Timeline(context.Background(), "comp-1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("expected 2 features, got %d", len(feats))
	}
	if feats[0].Name != "Extrude1" || feats[0].TimelineIndex != 1 {
		t.Fatalf("unexpected first feature: %+v", feats[0])
	}
	if feats[1].Operation != "Join" {
		t.Fatalf("unexpected second feature: %+v", feats[1])
	}
}
