package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord reports a record missing its identity fields.
var ErrInvalidRecord = errors.New("graph: invalid record")

// DefaultBatchSize bounds one transactional unit.
const DefaultBatchSize = 1000

type relKey struct {
	source, target, typ string
}

// Builder accumulates node and relationship records, deduplicates them, and
// emits size-bounded batches to a sink. Within the pending batch a node
// written twice keeps the last write's properties; a node already flushed is
// not re-emitted. Relationships are deduplicated on (source, target, type)
// for the whole run.
type Builder struct {
	sink      func(Batch) error
	batchSize int

	seq     int
	nodes   []NodeRecord
	rels    []RelationshipRecord
	pending map[string]int // stable_id -> index into nodes

	flushedNodes map[string]struct{}
	seenRels     map[relKey]struct{}

	stats BuildStats
}

// BuildStats counts what the builder saw and what it dropped.
type BuildStats struct {
	NodesEmitted         int
	RelationshipsEmitted int
	NodesDeduped         int
	RelationshipsDeduped int
	BatchesFlushed       int
}

// NewBuilder creates a Builder emitting batches of at most batchSize records
// to sink. A batchSize of zero or less uses DefaultBatchSize.
func NewBuilder(batchSize int, sink func(Batch) error) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		sink:         sink,
		batchSize:    batchSize,
		pending:      make(map[string]int),
		flushedNodes: make(map[string]struct{}),
		seenRels:     make(map[relKey]struct{}),
	}
}

// AddNode queues a node for upsert.
func (b *Builder) AddNode(n NodeRecord) error {
	if n.StableID == "" || n.Label == "" {
		return fmt.Errorf("%w: node needs stable_id and label", ErrInvalidRecord)
	}
	if i, ok := b.pending[n.StableID]; ok {
		b.nodes[i] = n
		b.stats.NodesDeduped++
		return nil
	}
	if _, ok := b.flushedNodes[n.StableID]; ok {
		b.stats.NodesDeduped++
		return nil
	}
	b.pending[n.StableID] = len(b.nodes)
	b.nodes = append(b.nodes, n)
	b.stats.NodesEmitted++
	return b.flushIfFull()
}

// AddRelationship queues a relationship for upsert.
func (b *Builder) AddRelationship(r RelationshipRecord) error {
	if r.SourceID == "" || r.TargetID == "" || r.Type == "" {
		return fmt.Errorf("%w: relationship needs source, target and type", ErrInvalidRecord)
	}
	key := relKey{r.SourceID, r.TargetID, r.Type}
	if _, ok := b.seenRels[key]; ok {
		b.stats.RelationshipsDeduped++
		return nil
	}
	b.seenRels[key] = struct{}{}
	b.rels = append(b.rels, r)
	b.stats.RelationshipsEmitted++
	return b.flushIfFull()
}

func (b *Builder) flushIfFull() error {
	if len(b.nodes)+len(b.rels) >= b.batchSize {
		return b.Flush()
	}
	return nil
}

// Flush emits the pending records as one batch. A no-op when empty.
func (b *Builder) Flush() error {
	if len(b.nodes) == 0 && len(b.rels) == 0 {
		return nil
	}
	batch := Batch{Seq: b.seq, Nodes: b.nodes, Relationships: b.rels}
	b.seq++
	for id := range b.pending {
		b.flushedNodes[id] = struct{}{}
	}
	b.nodes = nil
	b.rels = nil
	b.pending = make(map[string]int)
	b.stats.BatchesFlushed++
	return b.sink(batch)
}

// Stats returns what the builder has processed so far.
func (b *Builder) Stats() BuildStats { return b.stats }
