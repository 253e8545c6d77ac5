package graph

// Node labels, one per extracted entity kind. Every node additionally
// carries the Entity label, which backs the stable_id constraint.
const (
	LabelComponent       = "Component"
	LabelSketch          = "Sketch"
	LabelSketchPoint     = "SketchPoint"
	LabelSketchLine      = "SketchLine"
	LabelSketchArc       = "SketchArc"
	LabelSketchCircle    = "SketchCircle"
	LabelSketchSpline    = "SketchFittedSpline"
	LabelSketchDimension = "SketchDimension"
	LabelProfile         = "Profile"
	LabelFeature         = "Feature"
	LabelBRepBody        = "BRepBody"
	LabelBRepFace        = "BRepFace"
	LabelBRepEdge        = "BRepEdge"
	LabelBRepVertex      = "BRepVertex"
)

// Relationship types. The first group is written during extraction, the
// second is derived by the transformer after load.
const (
	RelContains   = "CONTAINS"
	RelBoundedBy  = "BOUNDED_BY"
	RelReferences = "REFERENCES"
	RelProducedBy = "PRODUCED_BY"
	RelConsumes   = "CONSUMES"
	RelSharesEdge = "SHARES_EDGE"

	RelNextInTimeline = "NEXT_IN_TIMELINE"
	RelAdjacentTo     = "ADJACENT_TO"
)

// NodeRecord is one node to upsert, keyed by StableID.
type NodeRecord struct {
	StableID string         `json:"stable_id"`
	Label    string         `json:"label"`
	Props    map[string]any `json:"props"`
}

// RelationshipRecord is one directional relationship to upsert. A given
// (source, target, type) triple is written at most once per run.
type RelationshipRecord struct {
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Type     string         `json:"type"`
	Props    map[string]any `json:"props,omitempty"`
}

// Batch is one transactional unit handed to the loader.
type Batch struct {
	Seq           int
	Nodes         []NodeRecord
	Relationships []RelationshipRecord
}

// Size returns the number of records in the batch.
func (b Batch) Size() int { return len(b.Nodes) + len(b.Relationships) }

// NodeIDs returns the stable IDs of the batch's nodes, for error reporting.
func (b Batch) NodeIDs() []string {
	ids := make([]string, 0, len(b.Nodes))
	for _, n := range b.Nodes {
		ids = append(ids, n.StableID)
	}
	return ids
}

// LoadResult accumulates upsert counters across one or more batches.
type LoadResult struct {
	NodesCreated         int
	NodesMerged          int
	RelationshipsCreated int
	RelationshipsMerged  int
	Batches              int
}

func (r *LoadResult) add(other LoadResult) {
	r.NodesCreated += other.NodesCreated
	r.NodesMerged += other.NodesMerged
	r.RelationshipsCreated += other.RelationshipsCreated
	r.RelationshipsMerged += other.RelationshipsMerged
}

// sanitizeLabel strips everything that is not a valid label character,
// preserving case.
func sanitizeLabel(l string) string {
	safe := make([]byte, 0, len(l))
	for i := range l {
		c := l[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "Entity"
	}
	return string(safe)
}

// sanitizeRelType ensures the relationship type is a valid Cypher identifier.
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t))
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	// Uppercase for Neo4j convention
	for i := range safe {
		if safe[i] >= 'a' && safe[i] <= 'z' {
			safe[i] -= 32
		}
	}
	return string(safe)
}
