// Package graph persists extracted CAD records as a Neo4j property graph and
// derives structural relationships from what was loaded.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/formalab/cadgraph/pkg/fn"
)

// Counters exposes the write counters of a consumed result. The driver's
// summary counters satisfy it.
type Counters interface {
	NodesCreated() int
	RelationshipsCreated() int
}

// CypherResult is the subset of a driver result the store needs.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
	Consume(ctx context.Context) (Counters, error)
}

// CypherRunner executes a single cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is a session that can run statements and managed writes.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions; it is the seam tests mock.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// --- driver adapters ---

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &driverSession{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := s.sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return driverResult{res: res}, nil
}

func (s *driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(txRunner{tx: tx, ctx: ctx})
	})
}

func (s *driverSession) Close(ctx context.Context) error { return s.sess.Close(ctx) }

type txRunner struct {
	tx  neo4j.ManagedTransaction
	ctx context.Context
}

func (r txRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return driverResult{res: res}, nil
}

type driverResult struct {
	res neo4j.ResultWithContext
}

func (r driverResult) Next(ctx context.Context) bool { return r.res.Next(ctx) }
func (r driverResult) Record() *neo4j.Record         { return r.res.Record() }
func (r driverResult) Err() error                    { return r.res.Err() }
func (r driverResult) Consume(ctx context.Context) (Counters, error) {
	sum, err := r.res.Consume(ctx)
	if err != nil {
		return nil, err
	}
	return sum.Counters(), nil
}

// GraphStore provides graph operations keyed on stable_id.
type GraphStore struct {
	opener SessionOpener
}

// New creates a GraphStore backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithOpener(driverOpener{driver: driver})
}

// NewWithOpener creates a GraphStore over any session opener.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{opener: opener}
}

// EnsureSchema creates the uniqueness constraint every upsert relies on.
func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `CREATE CONSTRAINT entity_stable_id IF NOT EXISTS
	           FOR (n:Entity) REQUIRE n.stable_id IS UNIQUE`
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return fmt.Errorf("graph: ensure schema: %w", err)
	}
	_, err = res.Consume(ctx)
	return err
}

// Clear removes every node and relationship. Used before a full re-extract.
func (g *GraphStore) Clear(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
	if err != nil {
		return fmt.Errorf("graph: clear: %w", err)
	}
	_, err = res.Consume(ctx)
	return err
}

// ApplyBatch upserts a batch's nodes and relationships in one transaction.
// Nodes are merged on stable_id alone so a relationship may arrive before the
// node it points at; the later node upsert fills in the label and properties.
func (g *GraphStore) ApplyBatch(ctx context.Context, b Batch) (LoadResult, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	var lr LoadResult
	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for label, rows := range groupNodes(b.Nodes) {
			cypher := fmt.Sprintf(
				`UNWIND $rows AS row
				 MERGE (n:Entity {stable_id: row.stable_id})
				 SET n:%s, n += row.props`,
				sanitizeLabel(label),
			)
			res, err := tx.Run(ctx, cypher, map[string]any{"rows": rows})
			if err != nil {
				return nil, err
			}
			c, err := res.Consume(ctx)
			if err != nil {
				return nil, err
			}
			lr.NodesCreated += c.NodesCreated()
			lr.NodesMerged += len(rows) - c.NodesCreated()
		}
		for relType, rows := range groupRels(b.Relationships) {
			cypher := fmt.Sprintf(
				`UNWIND $rows AS row
				 MERGE (a:Entity {stable_id: row.from})
				 MERGE (b:Entity {stable_id: row.to})
				 MERGE (a)-[r:%s]->(b)
				 SET r += row.props`,
				sanitizeRelType(relType),
			)
			res, err := tx.Run(ctx, cypher, map[string]any{"rows": rows})
			if err != nil {
				return nil, err
			}
			c, err := res.Consume(ctx)
			if err != nil {
				return nil, err
			}
			lr.RelationshipsCreated += c.RelationshipsCreated()
			lr.RelationshipsMerged += len(rows) - c.RelationshipsCreated()
		}
		return nil, nil
	})
	if err != nil {
		return LoadResult{}, err
	}
	return lr, nil
}

func groupNodes(nodes []NodeRecord) map[string][]map[string]any {
	grouped := make(map[string][]map[string]any)
	for label, group := range fn.GroupBy(nodes, func(n NodeRecord) string { return n.Label }) {
		grouped[label] = fn.Map(group, func(n NodeRecord) map[string]any {
			return map[string]any{
				"stable_id": n.StableID,
				"props":     n.Props,
			}
		})
	}
	return grouped
}

func groupRels(rels []RelationshipRecord) map[string][]map[string]any {
	grouped := make(map[string][]map[string]any)
	for relType, group := range fn.GroupBy(rels, func(r RelationshipRecord) string { return r.Type }) {
		grouped[relType] = fn.Map(group, func(r RelationshipRecord) map[string]any {
			props := r.Props
			if props == nil {
				props = map[string]any{}
			}
			return map[string]any{
				"from":  r.SourceID,
				"to":    r.TargetID,
				"props": props,
			}
		})
	}
	return grouped
}

// GetNode returns a node's properties by stable ID.
func (g *GraphStore) GetNode(ctx context.Context, stableID string) (NodeRecord, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Entity {stable_id: $id}) RETURN n`
	res, err := sess.Run(ctx, cypher, map[string]any{"id": stableID})
	if err != nil {
		return NodeRecord{}, err
	}
	if !res.Next(ctx) {
		if err := res.Err(); err != nil {
			return NodeRecord{}, err
		}
		return NodeRecord{}, fmt.Errorf("graph: node %s not found", stableID)
	}
	raw, ok := res.Record().Get("n")
	if !ok {
		return NodeRecord{}, fmt.Errorf("graph: no n field in result")
	}
	node, ok := raw.(dbtype.Node)
	if !ok {
		return NodeRecord{}, fmt.Errorf("graph: unexpected result type %T", raw)
	}
	return nodeFromDB(node), nil
}

func nodeFromDB(node dbtype.Node) NodeRecord {
	rec := NodeRecord{Props: make(map[string]any, len(node.Props))}
	for k, v := range node.Props {
		if k == "stable_id" {
			rec.StableID, _ = v.(string)
			continue
		}
		rec.Props[k] = v
	}
	for _, l := range node.Labels {
		if l != "Entity" {
			rec.Label = l
			break
		}
	}
	return rec
}

// NodeCounts returns node totals grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n) UNWIND labels(n) AS label
	           WITH label WHERE label <> 'Entity'
	           RETURN label, count(*) AS count`
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for res.Next(ctx) {
		rec := res.Record()
		label, _ := rec.Get("label")
		count, _ := rec.Get("count")
		if l, ok := label.(string); ok {
			if c, ok := count.(int64); ok {
				counts[l] = c
			}
		}
	}
	return counts, res.Err()
}

// RelationshipCounts returns relationship totals grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for res.Next(ctx) {
		rec := res.Record()
		typ, _ := rec.Get("type")
		count, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := count.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, res.Err()
}
