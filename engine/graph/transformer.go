package graph

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/formalab/cadgraph/pkg/resilience"
)

// TransformerOpts configures the post-load passes.
type TransformerOpts struct {
	// PairLimit bounds how many derived relationships a single transaction
	// creates before the pass commits and goes around again.
	PairLimit int
	// Limiter throttles successive transactions; nil means unthrottled.
	Limiter *resilience.Limiter
}

// DefaultPairLimit keeps each derived-relationship transaction bounded.
const DefaultPairLimit = 500

// TransformResult reports what the transformer derived.
type TransformResult struct {
	TimelineEdges  int
	AdjacencyEdges int
	Components     int
	Passes         int
}

// Transformer derives relationships from the persisted structural graph:
// construction-order chains between features, and adjacency between nodes
// sharing a boundary. All passes are idempotent upserts; re-running changes
// nothing once the graph is converged.
type Transformer struct {
	opener SessionOpener
	opts   TransformerOpts
	log    *slog.Logger
}

// NewTransformer creates a Transformer over the store's session opener.
func NewTransformer(store *GraphStore, opts TransformerOpts, log *slog.Logger) *Transformer {
	if opts.PairLimit <= 0 {
		opts.PairLimit = DefaultPairLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transformer{opener: store.opener, opts: opts, log: log}
}

// Run executes the timeline and adjacency passes. The passes touch disjoint
// relationship types, so they run concurrently.
func (t *Transformer) Run(ctx context.Context) (TransformResult, error) {
	var result TransformResult

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		edges, comps, err := t.timelinePass(ctx)
		if err != nil {
			return fmt.Errorf("transform: timeline: %w", err)
		}
		result.TimelineEdges = edges
		result.Components = comps
		return nil
	})
	g.Go(func() error {
		var total, passes int
		for _, label := range []string{LabelProfile, LabelBRepFace} {
			edges, p, err := t.adjacencyPass(ctx, label)
			if err != nil {
				return fmt.Errorf("transform: adjacency %s: %w", label, err)
			}
			total += edges
			passes += p
		}
		result.AdjacencyEdges = total
		result.Passes = passes
		return nil
	})
	if err := g.Wait(); err != nil {
		return TransformResult{}, err
	}
	return result, nil
}

// timelinePass chains each component's features in construction order. The
// chain is rebuilt from timeline_index, so re-running after new features
// arrive extends it without duplicating edges.
func (t *Transformer) timelinePass(ctx context.Context) (edges, comps int, err error) {
	componentIDs, err := t.featureComponents(ctx)
	if err != nil {
		return 0, 0, err
	}

	sess := t.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (f:%s {component_id: $component_id})
		 WITH f ORDER BY f.timeline_index ASC
		 WITH collect(f) AS feats
		 UNWIND range(0, size(feats) - 2) AS i
		 WITH feats[i] AS a, feats[i+1] AS b
		 MERGE (a)-[:%s]->(b)`,
		LabelFeature, RelNextInTimeline,
	)
	for _, id := range componentIDs {
		if err := t.throttle(ctx); err != nil {
			return edges, comps, err
		}
		created, err := t.write(ctx, sess, cypher, map[string]any{"component_id": id})
		if err != nil {
			return edges, comps, err
		}
		edges += created
		comps++
	}
	return edges, comps, nil
}

// featureComponents lists the components that own features.
func (t *Transformer) featureComponents(ctx context.Context) ([]string, error) {
	sess := t.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (f:%s) WHERE f.component_id IS NOT NULL
		 RETURN DISTINCT f.component_id AS component_id`,
		LabelFeature,
	)
	res, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	for res.Next(ctx) {
		if raw, ok := res.Record().Get("component_id"); ok {
			if id, ok := raw.(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, res.Err()
}

// adjacencyPass links same-label nodes that are bounded by a common node.
// Pairs are ordered by stable_id so the edge is created once per unordered
// pair. Work proceeds in bounded transactions until a round creates nothing.
func (t *Transformer) adjacencyPass(ctx context.Context, label string) (edges, passes int, err error) {
	sess := t.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (a:%[1]s)-[:%[2]s]->(s)<-[:%[2]s]-(b:%[1]s)
		 WHERE a.stable_id < b.stable_id
		   AND NOT (a)-[:%[3]s]-(b)
		 WITH DISTINCT a, b LIMIT $limit
		 MERGE (a)-[:%[3]s]->(b)`,
		sanitizeLabel(label), RelBoundedBy, RelAdjacentTo,
	)
	for {
		if err := t.throttle(ctx); err != nil {
			return edges, passes, err
		}
		created, err := t.write(ctx, sess, cypher, map[string]any{"limit": t.opts.PairLimit})
		if err != nil {
			return edges, passes, err
		}
		passes++
		edges += created
		t.log.Debug("adjacency round", "label", label, "created", created)
		if created == 0 {
			return edges, passes, nil
		}
	}
}

func (t *Transformer) throttle(ctx context.Context) error {
	if t.opts.Limiter == nil {
		return nil
	}
	return t.opts.Limiter.Wait(ctx)
}

// write runs one statement in a managed transaction and returns how many
// relationships it created.
func (t *Transformer) write(ctx context.Context, sess CypherSession, cypher string, params map[string]any) (int, error) {
	created, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		c, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return c.RelationshipsCreated(), nil
	})
	if err != nil {
		return 0, err
	}
	n, _ := created.(int)
	return n, nil
}
