package graph

import (
	"context"
)

// ComponentStats holds per-component counts of what the load produced.
type ComponentStats struct {
	Component string `json:"component"`
	Features  int64  `json:"features,omitempty"`
	Bodies    int64  `json:"bodies,omitempty"`
	Sketches  int64  `json:"sketches,omitempty"`
}

// FeatureStats describes a feature's position in its component timeline.
type FeatureStats struct {
	Name          string `json:"name"`
	Operation     string `json:"operation,omitempty"`
	TimelineIndex int64  `json:"timeline_index"`
}

// TopComponents returns the components with the most modeling history.
func (g *GraphStore) TopComponents(ctx context.Context, limit int) ([]ComponentStats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (c:Component)
		OPTIONAL MATCH (c)-[:CONTAINS]->(f:Feature)
		OPTIONAL MATCH (c)-[:CONTAINS]->(b:BRepBody)
		OPTIONAL MATCH (c)-[:CONTAINS]->(s:Sketch)
		RETURN c.name AS component,
		       count(DISTINCT f) AS features,
		       count(DISTINCT b) AS bodies,
		       count(DISTINCT s) AS sketches
		ORDER BY features DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var stats []ComponentStats
	for result.Next(ctx) {
		rec := result.Record()
		s := ComponentStats{}
		if v, ok := recString(rec.Get("component")); ok {
			s.Component = v
		}
		if v, ok := recInt(rec.Get("features")); ok {
			s.Features = v
		}
		if v, ok := recInt(rec.Get("bodies")); ok {
			s.Bodies = v
		}
		if v, ok := recInt(rec.Get("sketches")); ok {
			s.Sketches = v
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// Timeline returns a component's features in modeling order.
func (g *GraphStore) Timeline(ctx context.Context, componentID string) ([]FeatureStats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (f:Feature {component_id: $component_id})
		RETURN f.name AS name, f.operation AS operation, f.timeline_index AS timeline_index
		ORDER BY f.timeline_index ASC`
	result, err := sess.Run(ctx, cypher, map[string]any{"component_id": componentID})
	if err != nil {
		return nil, err
	}
	var stats []FeatureStats
	for result.Next(ctx) {
		rec := result.Record()
		s := FeatureStats{}
		if v, ok := recString(rec.Get("name")); ok {
			s.Name = v
		}
		if v, ok := recString(rec.Get("operation")); ok {
			s.Operation = v
		}
		if v, ok := recInt(rec.Get("timeline_index")); ok {
			s.TimelineIndex = v
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func recString(v any, _ bool) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func recInt(v any, _ bool) (int64, bool) {
	i, ok := v.(int64)
	return i, ok
}
