// Package extract turns host CAD entities into graph records. One extractor
// per entity kind builds the node and its reference relationships; the
// walker drives traversal and containment.
package extract

import (
	"github.com/formalab/cadgraph/engine/cad"
	"github.com/formalab/cadgraph/engine/graph"
	"github.com/formalab/cadgraph/engine/identity"
)

// Extractor builds the node record and outgoing reference relationships for
// one entity. Relationships whose target cannot supply an identity are
// dropped, not fatal.
type Extractor func(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error)

// Registry dispatches entities to extractors by kind. Unknown kinds route to
// a fallback that emits a bare node, so new host entity types degrade to
// minimally-labeled nodes instead of aborting the run.
type Registry struct {
	byKind   map[cad.Kind]Extractor
	fallback Extractor
}

// NewRegistry returns a registry with every built-in extractor installed.
func NewRegistry() *Registry {
	r := &Registry{byKind: make(map[cad.Kind]Extractor), fallback: extractGeneric}
	r.Register(cad.KindComponent, extractComponent)
	r.Register(cad.KindSketch, extractSketch)
	r.Register(cad.KindSketchPoint, extractSketchPoint)
	r.Register(cad.KindSketchLine, extractSketchLine)
	r.Register(cad.KindSketchArc, extractSketchArc)
	r.Register(cad.KindSketchCircle, extractSketchCircle)
	r.Register(cad.KindSketchFittedSpline, extractSketchSpline)
	r.Register(cad.KindSketchDimension, extractSketchDimension)
	r.Register(cad.KindProfile, extractProfile)
	r.Register(cad.KindExtrudeFeature, extractExtrude)
	r.Register(cad.KindBRepBody, extractBody)
	r.Register(cad.KindBRepFace, extractFace)
	r.Register(cad.KindBRepEdge, extractEdge)
	r.Register(cad.KindBRepVertex, extractVertex)
	return r
}

// Register installs or replaces the extractor for a kind.
func (r *Registry) Register(kind cad.Kind, ex Extractor) {
	r.byKind[kind] = ex
}

// Extract dispatches by the entity's kind.
func (r *Registry) Extract(ids *identity.Service, e cad.Entity) (graph.NodeRecord, []graph.RelationshipRecord, error) {
	if ex, ok := r.byKind[e.Kind()]; ok {
		return ex(ids, e)
	}
	return r.fallback(ids, e)
}

// kindLabels maps entity kinds to node labels.
var kindLabels = map[cad.Kind]string{
	cad.KindComponent:          graph.LabelComponent,
	cad.KindSketch:             graph.LabelSketch,
	cad.KindSketchPoint:        graph.LabelSketchPoint,
	cad.KindSketchLine:         graph.LabelSketchLine,
	cad.KindSketchArc:          graph.LabelSketchArc,
	cad.KindSketchCircle:       graph.LabelSketchCircle,
	cad.KindSketchFittedSpline: graph.LabelSketchSpline,
	cad.KindSketchDimension:    graph.LabelSketchDimension,
	cad.KindProfile:            graph.LabelProfile,
	cad.KindExtrudeFeature:     graph.LabelFeature,
	cad.KindBRepBody:           graph.LabelBRepBody,
	cad.KindBRepFace:           graph.LabelBRepFace,
	cad.KindBRepEdge:           graph.LabelBRepEdge,
	cad.KindBRepVertex:         graph.LabelBRepVertex,
}

func labelFor(kind cad.Kind) string {
	if l, ok := kindLabels[kind]; ok {
		return l
	}
	if kind == "" {
		return "Entity"
	}
	return string(kind)
}

// baseNode builds the record every extractor starts from.
func baseNode(ids *identity.Service, e cad.Entity) (graph.NodeRecord, error) {
	id, err := ids.IDFor(e)
	if err != nil {
		return graph.NodeRecord{}, err
	}
	props := map[string]any{"kind": string(e.Kind())}
	if name := e.Name(); name != "" {
		props["name"] = name
	}
	return graph.NodeRecord{StableID: id, Label: labelFor(e.Kind()), Props: props}, nil
}

// refID resolves a related entity's ID; a missing token drops the reference.
func refID(ids *identity.Service, e cad.Entity) (string, bool) {
	if e == nil {
		return "", false
	}
	id, err := ids.IDFor(e)
	if err != nil {
		return "", false
	}
	return id, true
}
