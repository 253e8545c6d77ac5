package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/formalab/cadgraph/engine/cad"
	"github.com/formalab/cadgraph/engine/graph"
	"github.com/formalab/cadgraph/engine/identity"
)

// WalkStats reports what one traversal produced.
type WalkStats struct {
	Visited int
	Skipped int
}

// Walker traverses a document's component tree top-down and feeds extracted
// records to a builder. The host object model is not safe for concurrent
// access, so the whole traversal runs on the calling goroutine.
type Walker struct {
	reg     *Registry
	ids     *identity.Service
	builder *graph.Builder
	log     *slog.Logger

	doc     cad.Document
	visited map[string]struct{}
	stats   WalkStats
}

// NewWalker creates a Walker.
func NewWalker(reg *Registry, ids *identity.Service, builder *graph.Builder, log *slog.Logger) *Walker {
	if log == nil {
		log = slog.Default()
	}
	return &Walker{reg: reg, ids: ids, builder: builder, log: log}
}

// Walk extracts the whole document. On host loss it stops where it is and
// returns cad.ErrHostUnavailable; everything extracted so far is already in
// the builder, so the caller can still flush and load a partial model.
func (w *Walker) Walk(doc cad.Document) (WalkStats, error) {
	w.doc = doc
	w.visited = make(map[string]struct{})
	w.stats = WalkStats{}

	if err := w.component(doc.Root()); err != nil {
		return w.stats, err
	}
	return w.stats, nil
}

// checkHost polls document liveness between entities.
func (w *Walker) checkHost() error {
	if err := w.doc.Err(); err != nil {
		return fmt.Errorf("extract: host lost: %w", err)
	}
	return nil
}

// visit extracts one entity unless it was already seen. It returns the
// entity's stable ID ("" when the entity is skipped).
func (w *Walker) visit(e cad.Entity) (string, error) {
	if err := w.checkHost(); err != nil {
		return "", err
	}
	id, err := w.ids.IDFor(e)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			w.stats.Skipped++
			w.log.Warn("skipping entity without stable token", "kind", string(e.Kind()), "name", e.Name())
			return "", nil
		}
		return "", err
	}
	if _, seen := w.visited[id]; seen {
		return id, nil
	}
	w.visited[id] = struct{}{}

	node, rels, err := w.reg.Extract(w.ids, e)
	if err != nil {
		return "", fmt.Errorf("extract: %s: %w", e.Kind(), err)
	}
	if err := w.builder.AddNode(node); err != nil {
		return "", err
	}
	for _, r := range rels {
		if err := w.builder.AddRelationship(r); err != nil {
			return "", err
		}
	}
	w.stats.Visited++
	return id, nil
}

// contain visits a child and links it under its parent.
func (w *Walker) contain(parentID string, child cad.Entity) (string, error) {
	id, err := w.visit(child)
	if err != nil || id == "" {
		return "", err
	}
	return id, w.builder.AddRelationship(graph.RelationshipRecord{
		SourceID: parentID,
		TargetID: id,
		Type:     graph.RelContains,
	})
}

func (w *Walker) component(c cad.Component) error {
	id, err := w.visit(c)
	if err != nil || id == "" {
		return err
	}

	// Sketches and features interleave on the construction timeline; visit
	// them in that order.
	for _, s := range timelineOrder(c) {
		switch e := s.(type) {
		case cad.Sketch:
			if err := w.sketch(id, e); err != nil {
				return err
			}
		case cad.Feature:
			if _, err := w.contain(id, e); err != nil {
				return err
			}
		}
	}
	for _, b := range c.Bodies() {
		if err := w.body(id, b); err != nil {
			return err
		}
	}
	for _, child := range c.Children() {
		childID, err := w.visit(child)
		if err != nil {
			return err
		}
		if childID != "" {
			if err := w.builder.AddRelationship(graph.RelationshipRecord{
				SourceID: id, TargetID: childID, Type: graph.RelContains,
			}); err != nil {
				return err
			}
		}
		if err := w.component(child); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) sketch(componentID string, s cad.Sketch) error {
	id, err := w.contain(componentID, s)
	if err != nil || id == "" {
		return err
	}
	for _, p := range s.Points() {
		if _, err := w.contain(id, p); err != nil {
			return err
		}
	}
	for _, c := range s.Curves() {
		if _, err := w.contain(id, c); err != nil {
			return err
		}
	}
	for _, d := range s.Dimensions() {
		if _, err := w.contain(id, d); err != nil {
			return err
		}
	}
	for _, p := range s.Profiles() {
		if _, err := w.contain(id, p); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) body(componentID string, b cad.BRepBody) error {
	id, err := w.contain(componentID, b)
	if err != nil || id == "" {
		return err
	}
	for _, v := range b.Vertices() {
		if _, err := w.contain(id, v); err != nil {
			return err
		}
	}
	for _, f := range b.Faces() {
		if _, err := w.contain(id, f); err != nil {
			return err
		}
	}
	for _, e := range b.Edges() {
		if _, err := w.contain(id, e); err != nil {
			return err
		}
	}
	return nil
}

// timelineEntity is anything positioned on the construction timeline.
type timelineEntity interface {
	cad.Entity
	TimelineIndex() int
}

// timelineOrder merges a component's sketches and features sorted by
// construction position.
func timelineOrder(c cad.Component) []timelineEntity {
	var entries []timelineEntity
	for _, s := range c.Sketches() {
		entries = append(entries, s)
	}
	for _, f := range c.Features() {
		entries = append(entries, f)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TimelineIndex() < entries[j].TimelineIndex()
	})
	return entries
}
