package graph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

func TestFeatureToMap(t *testing.T) {
	f := FeatureNode{
		StableID:      "feat-1",
		Name:          "Extrude1",
		ComponentID:   "comp-1",
		TimelineIndex: 3,
		Operation:     "Join",
		Distance:      2.5,
	}
	m := featureToMap(f)
	if m["stable_id"] != "feat-1" || m["timeline_index"] != int64(3) || m["distance"] != 2.5 {
		t.Fatalf("unexpected map: %v", m)
	}
}

func TestFeatureFromRecord(t *testing.T) {
	rec := &neo4j.Record{
		Keys: []string{"n"},
		Values: []any{dbtype.Node{
			Labels: []string{"Entity", LabelFeature},
			Props: map[string]any{
				"stable_id":      "feat-1",
				"name":           "Extrude1",
				"component_id":   "comp-1",
				"timeline_index": int64(1),
				"operation":      "NewBody",
				"distance":       4.0,
			},
		}},
	}
	f, err := featureFromRecord(rec)
	if err != nil {
		t.Fatalf("featureFromRecord: %v", err)
	}
	if f.StableID != "feat-1" || f.Name != "Extrude1" || f.TimelineIndex != 1 {
		t.Fatalf("unexpected feature: %+v", f)
	}
	if f.Operation != "NewBody" || f.Distance != 4.0 {
		t.Fatalf("unexpected feature: %+v", f)
	}
}

func TestFeatureFromRecordMissingProps(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{dbtype.Node{Props: map[string]any{"stable_id": "feat-2"}}},
	}
	f, err := featureFromRecord(rec)
	if err != nil {
		t.Fatalf("featureFromRecord: %v", err)
	}
	if f.StableID != "feat-2" || f.TimelineIndex != 0 || f.Operation != "" {
		t.Fatalf("unexpected feature: %+v", f)
	}
}

func TestNewFeatureRepoIDKey(t *testing.T) {
	r := NewFeatureRepo(nil)
	if r == nil {
		t.Fatal("expected repo")
	}
}
