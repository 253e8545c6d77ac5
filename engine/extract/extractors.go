package extract

import (
	"fmt"
	"strings"

	"github.com/formalab/cadgraph/engine/cad"
	"github.com/formalab/cadgraph/engine/graph"
	"github.com/formalab/cadgraph/engine/identity"
)

func extractGeneric(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	node, err := baseNode(ids, e)
	return node, nil, err
}

func extractComponent(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	node, err := baseNode(ids, e)
	return node, nil, err
}

func extractSketch(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	s, ok := e.(cad.Sketch)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a sketch", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	node.Props["timeline_index"] = s.TimelineIndex()
	return node, nil, nil
}

func extractSketchPoint(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	p, ok := e.(cad.SketchPoint)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a sketch point", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	pos := p.Position()
	node.Props["x"] = pos.X
	node.Props["y"] = pos.Y
	node.Props["z"] = pos.Z
	return node, nil, nil
}

func extractSketchLine(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	l, ok := e.(cad.SketchLine)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a sketch line", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	rels := pointRefs(ids, &node, map[string]cad.SketchPoint{
		"start": l.StartPoint(),
		"end":   l.EndPoint(),
	})
	return node, rels, nil
}

func extractSketchArc(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	a, ok := e.(cad.SketchArc)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a sketch arc", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	node.Props["radius"] = a.Radius()
	rels := pointRefs(ids, &node, map[string]cad.SketchPoint{
		"center": a.CenterPoint(),
		"start":  a.StartPoint(),
		"end":    a.EndPoint(),
	})
	return node, rels, nil
}

func extractSketchCircle(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	c, ok := e.(cad.SketchCircle)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a sketch circle", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	node.Props["radius"] = c.Radius()
	rels := pointRefs(ids, &node, map[string]cad.SketchPoint{
		"center": c.CenterPoint(),
	})
	return node, rels, nil
}

func extractSketchSpline(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	s, ok := e.(cad.SketchFittedSpline)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a fitted spline", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	var rels []graph.RelationshipRecord
	var fitIDs []string
	for i, p := range s.FitPoints() {
		if target, ok := refID(ids, p); ok {
			fitIDs = append(fitIDs, target)
			rels = append(rels, graph.RelationshipRecord{
				SourceID: node.StableID,
				TargetID: target,
				Type:     graph.RelReferences,
				Props:    map[string]any{"sequence_index": i},
			})
		}
	}
	if len(fitIDs) > 0 {
		node.Props["fit_point_ids"] = fitIDs
	}
	return node, rels, nil
}

func extractSketchDimension(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	d, ok := e.(cad.SketchDimension)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a sketch dimension", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	node.Props["value"] = d.Value()
	var rels []graph.RelationshipRecord
	for _, attached := range d.Attached() {
		if target, ok := refID(ids, attached); ok {
			rels = append(rels, graph.RelationshipRecord{
				SourceID: node.StableID,
				TargetID: target,
				Type:     graph.RelReferences,
			})
		}
	}
	return node, rels, nil
}

// extractProfile preserves the host's boundary order as sequence_index; the
// adjacency pass depends on it.
func extractProfile(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	p, ok := e.(cad.Profile)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a profile", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	node.Props["area"] = p.Area()
	var rels []graph.RelationshipRecord
	for i, curve := range p.Boundary() {
		if target, ok := refID(ids, curve); ok {
			rels = append(rels, graph.RelationshipRecord{
				SourceID: node.StableID,
				TargetID: target,
				Type:     graph.RelBoundedBy,
				Props:    map[string]any{"sequence_index": i},
			})
		}
	}
	return node, rels, nil
}

func extractExtrude(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	f, ok := e.(cad.ExtrudeFeature)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not an extrude feature", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	node.Props["feature_type"] = strings.TrimSuffix(string(f.Kind()), "Feature")
	node.Props["timeline_index"] = f.TimelineIndex()
	node.Props["operation"] = f.Operation()
	node.Props["distance"] = f.Distance()
	if componentID, ok := refID(ids, f.Parent()); ok {
		node.Props["component_id"] = componentID
	}

	var rels []graph.RelationshipRecord
	for _, p := range f.Profiles() {
		if target, ok := refID(ids, p); ok {
			rels = append(rels, graph.RelationshipRecord{
				SourceID: node.StableID,
				TargetID: target,
				Type:     graph.RelConsumes,
			})
		}
	}
	for _, b := range f.ProducedBodies() {
		if bodyID, ok := refID(ids, b); ok {
			rels = append(rels, graph.RelationshipRecord{
				SourceID: bodyID,
				TargetID: node.StableID,
				Type:     graph.RelProducedBy,
			})
		}
	}
	return node, rels, nil
}

func extractBody(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	b, ok := e.(cad.BRepBody)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a body", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	node.Props["face_count"] = len(b.Faces())
	node.Props["edge_count"] = len(b.Edges())
	node.Props["vertex_count"] = len(b.Vertices())
	return node, nil, nil
}

func extractFace(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	f, ok := e.(cad.BRepFace)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a face", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	if st := f.SurfaceType(); st != "" {
		node.Props["surface_type"] = st
	}
	var rels []graph.RelationshipRecord
	for _, edge := range f.Edges() {
		if target, ok := refID(ids, edge); ok {
			rels = append(rels, graph.RelationshipRecord{
				SourceID: node.StableID,
				TargetID: target,
				Type:     graph.RelBoundedBy,
			})
		}
	}
	return node, rels, nil
}

// extractEdge mirrors the host's topology: bounding vertices, and a
// shares_edge link between the two faces this edge separates.
func extractEdge(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	edge, ok := e.(cad.BRepEdge)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not an edge", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	var rels []graph.RelationshipRecord
	for role, v := range map[string]cad.BRepVertex{
		"start": edge.StartVertex(),
		"end":   edge.EndVertex(),
	} {
		if target, ok := refID(ids, v); ok {
			rels = append(rels, graph.RelationshipRecord{
				SourceID: node.StableID,
				TargetID: target,
				Type:     graph.RelBoundedBy,
				Props:    map[string]any{"position": role},
			})
		}
	}

	faces := edge.Faces()
	for i := 0; i < len(faces); i++ {
		for j := i + 1; j < len(faces); j++ {
			a, okA := refID(ids, faces[i])
			b, okB := refID(ids, faces[j])
			if !okA || !okB {
				continue
			}
			if b < a {
				a, b = b, a
			}
			rels = append(rels, graph.RelationshipRecord{
				SourceID: a,
				TargetID: b,
				Type:     graph.RelSharesEdge,
				Props:    map[string]any{"edge_id": node.StableID},
			})
		}
	}
	return node, rels, nil
}

func extractVertex(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	v, ok := e.(cad.BRepVertex)
	if !ok {
		return graph.NodeRecord{}, nil, fmt.Errorf("extract: %s is not a vertex", e.Kind())
	}
	node, err := baseNode(ids, e)
	if err != nil {
		return graph.NodeRecord{}, nil, err
	}
	pos := v.Position()
	node.Props["x"] = pos.X
	node.Props["y"] = pos.Y
	node.Props["z"] = pos.Z
	return node, nil, nil
}

// pointRefs emits role-tagged references to the given sketch points and
// mirrors the resolved ids onto the curve node itself.
func pointRefs(ids *identity.Service, node *graph.NodeRecord, points map[string]cad.SketchPoint) []graph.RelationshipRecord {
	var rels []graph.RelationshipRecord
	for _, role := range []string{"center", "start", "end"} {
		p, ok := points[role]
		if !ok {
			continue
		}
		if target, ok := refID(ids, p); ok {
			node.Props[role+"_point_id"] = target
			rels = append(rels, graph.RelationshipRecord{
				SourceID: node.StableID,
				TargetID: target,
				Type:     graph.RelReferences,
				Props:    map[string]any{"role": role},
			})
		}
	}
	return rels
}
