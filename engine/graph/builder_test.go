package graph

import (
	"errors"
	"testing"
)

func collectBatches(batchSize int) (*Builder, *[]Batch) {
	var got []Batch
	b := NewBuilder(batchSize, func(batch Batch) error {
		got = append(got, batch)
		return nil
	})
	return b, &got
}

func TestBuilderDedupsNodesLastWriteWins(t *testing.T) {
	b, got := collectBatches(100)

	if err := b.AddNode(NodeRecord{StableID: "a", Label: LabelSketch, Props: map[string]any{"name": "old"}}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddNode(NodeRecord{StableID: "a", Label: LabelSketch, Props: map[string]any{"name": "new"}}); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(*got) != 1 || len((*got)[0].Nodes) != 1 {
		t.Fatalf("expected 1 batch with 1 node, got %+v", *got)
	}
	if (*got)[0].Nodes[0].Props["name"] != "new" {
		t.Fatalf("expected last write to win, got %+v", (*got)[0].Nodes[0])
	}
	if b.Stats().NodesDeduped != 1 {
		t.Fatalf("stats: %+v", b.Stats())
	}
}

func TestBuilderDropsNodesAcrossFlushes(t *testing.T) {
	b, got := collectBatches(100)

	_ = b.AddNode(NodeRecord{StableID: "a", Label: LabelSketch})
	_ = b.Flush()
	_ = b.AddNode(NodeRecord{StableID: "a", Label: LabelSketch})
	_ = b.Flush()

	if len(*got) != 1 {
		t.Fatalf("re-emitted node produced a second batch: %+v", *got)
	}
}

func TestBuilderDedupsRelationshipsRunWide(t *testing.T) {
	b, got := collectBatches(100)

	r := RelationshipRecord{SourceID: "a", TargetID: "b", Type: RelContains}
	_ = b.AddRelationship(r)
	_ = b.Flush()
	_ = b.AddRelationship(r)
	// Same endpoints, different type: distinct edge.
	_ = b.AddRelationship(RelationshipRecord{SourceID: "a", TargetID: "b", Type: RelReferences})
	_ = b.Flush()

	if len(*got) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(*got))
	}
	if len((*got)[1].Relationships) != 1 || (*got)[1].Relationships[0].Type != RelReferences {
		t.Fatalf("unexpected second batch: %+v", (*got)[1])
	}
	if b.Stats().RelationshipsDeduped != 1 {
		t.Fatalf("stats: %+v", b.Stats())
	}
}

func TestBuilderFlushesAtBatchSize(t *testing.T) {
	b, got := collectBatches(3)

	_ = b.AddNode(NodeRecord{StableID: "a", Label: LabelSketch})
	_ = b.AddNode(NodeRecord{StableID: "b", Label: LabelSketch})
	if len(*got) != 0 {
		t.Fatal("flushed early")
	}
	_ = b.AddRelationship(RelationshipRecord{SourceID: "a", TargetID: "b", Type: RelContains})
	if len(*got) != 1 {
		t.Fatalf("expected auto-flush at size 3, got %d batches", len(*got))
	}
	if (*got)[0].Size() != 3 {
		t.Fatalf("batch size = %d, want 3", (*got)[0].Size())
	}

	// Sequence numbers increase across flushes.
	_ = b.AddNode(NodeRecord{StableID: "c", Label: LabelSketch})
	_ = b.Flush()
	if (*got)[1].Seq != 1 {
		t.Fatalf("seq = %d, want 1", (*got)[1].Seq)
	}
}

func TestBuilderRejectsInvalidRecords(t *testing.T) {
	b, _ := collectBatches(10)

	if err := b.AddNode(NodeRecord{Label: LabelSketch}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("missing stable_id: got %v", err)
	}
	if err := b.AddNode(NodeRecord{StableID: "a"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("missing label: got %v", err)
	}
	if err := b.AddRelationship(RelationshipRecord{SourceID: "a", TargetID: "b"}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("missing type: got %v", err)
	}
}

func TestBuilderFlushEmptyIsNoop(t *testing.T) {
	b, got := collectBatches(10)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(*got) != 0 {
		t.Fatal("empty flush emitted a batch")
	}
}

func TestBuilderPropagatesSinkError(t *testing.T) {
	want := errors.New("sink down")
	b := NewBuilder(10, func(Batch) error { return want })
	_ = b.AddNode(NodeRecord{StableID: "a", Label: LabelSketch})
	if err := b.Flush(); !errors.Is(err, want) {
		t.Fatalf("got %v", err)
	}
}
