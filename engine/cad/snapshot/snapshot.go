// Package snapshot implements the cad interfaces over a JSON capture of a
// host CAD session. The host application exports one document as a snapshot
// file; this package rebuilds the (cyclic, shared-reference) entity graph in
// memory so the pipeline can run without the host being present.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/formalab/cadgraph/engine/cad"
)

// DocSpec is the root of the snapshot wire format.
type DocSpec struct {
	Name string        `json:"name"`
	Root ComponentSpec `json:"root"`
}

// ComponentSpec describes one component and everything it owns.
type ComponentSpec struct {
	Token    string          `json:"token"`
	Name     string          `json:"name,omitempty"`
	Sketches []SketchSpec    `json:"sketches,omitempty"`
	Features []FeatureSpec   `json:"features,omitempty"`
	Bodies   []BodySpec      `json:"bodies,omitempty"`
	Children []ComponentSpec `json:"children,omitempty"`
}

// SketchSpec describes a sketch with its geometry and profiles.
type SketchSpec struct {
	Token         string          `json:"token"`
	Name          string          `json:"name,omitempty"`
	TimelineIndex int             `json:"timeline_index"`
	Points        []PointSpec     `json:"points,omitempty"`
	Curves        []CurveSpec     `json:"curves,omitempty"`
	Dimensions    []DimensionSpec `json:"dimensions,omitempty"`
	Profiles      []ProfileSpec   `json:"profiles,omitempty"`
}

// PointSpec is a sketch point.
type PointSpec struct {
	Token string  `json:"token"`
	Name  string  `json:"name,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// CurveSpec is a sketch curve of any kind. Which reference fields apply
// depends on Kind; unknown kinds are preserved and routed to the pipeline's
// fallback extractor.
type CurveSpec struct {
	Token     string   `json:"token"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name,omitempty"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
	Center    string   `json:"center,omitempty"`
	Radius    float64  `json:"radius,omitempty"`
	FitPoints []string `json:"fit_points,omitempty"`
}

// DimensionSpec is a sketch dimension attached to other sketch entities.
type DimensionSpec struct {
	Token    string   `json:"token"`
	Name     string   `json:"name,omitempty"`
	Value    float64  `json:"value"`
	Attached []string `json:"attached,omitempty"`
}

// ProfileSpec is a closed region; Boundary lists curve tokens in host order.
type ProfileSpec struct {
	Token    string   `json:"token"`
	Area     float64  `json:"area,omitempty"`
	Boundary []string `json:"boundary"`
}

// FeatureSpec is a timeline feature. Only extrudes carry profile/body refs.
type FeatureSpec struct {
	Token         string   `json:"token"`
	Name          string   `json:"name,omitempty"`
	TimelineIndex int      `json:"timeline_index"`
	Operation     string   `json:"operation,omitempty"`
	Distance      float64  `json:"distance,omitempty"`
	Profiles      []string `json:"profiles,omitempty"`
	Bodies        []string `json:"bodies,omitempty"`
}

// BodySpec is a BRep body with its full topology.
type BodySpec struct {
	Token    string       `json:"token"`
	Name     string       `json:"name,omitempty"`
	Faces    []FaceSpec   `json:"faces,omitempty"`
	Edges    []EdgeSpec   `json:"edges,omitempty"`
	Vertices []VertexSpec `json:"vertices,omitempty"`
}

// FaceSpec is a face bounded by edges.
type FaceSpec struct {
	Token   string   `json:"token"`
	Surface string   `json:"surface,omitempty"`
	Edges   []string `json:"edges"`
}

// EdgeSpec is an edge between two vertices, bounding the listed faces.
type EdgeSpec struct {
	Token string   `json:"token"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Faces []string `json:"faces"`
}

// VertexSpec is a topological vertex.
type VertexSpec struct {
	Token string  `json:"token"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// --- in-memory entity graph ---

type entity struct {
	kind  cad.Kind
	token string
	name  string
}

func (e *entity) Kind() cad.Kind { return e.kind }
func (e *entity) Name() string   { return e.name }
func (e *entity) Token() (string, error) {
	if e.token == "" {
		return "", cad.ErrNoToken
	}
	return e.token, nil
}

// Document is a snapshot-backed cad.Document.
type Document struct {
	name   string
	root   *Component
	closed atomic.Bool
}

func (d *Document) Name() string        { return d.name }
func (d *Document) Root() cad.Component { return d.root }

// Err reports cad.ErrHostUnavailable after Close.
func (d *Document) Err() error {
	if d.closed.Load() {
		return cad.ErrHostUnavailable
	}
	return nil
}

// Close marks the backing snapshot as no longer readable. Traversals in
// flight observe it through Err and abort.
func (d *Document) Close() { d.closed.Store(true) }

// Component implements cad.Component.
type Component struct {
	entity
	sketches []cad.Sketch
	features []cad.Feature
	bodies   []cad.BRepBody
	children []cad.Component
}

func (c *Component) Sketches() []cad.Sketch    { return c.sketches }
func (c *Component) Features() []cad.Feature   { return c.features }
func (c *Component) Bodies() []cad.BRepBody    { return c.bodies }
func (c *Component) Children() []cad.Component { return c.children }

type sketch struct {
	entity
	timelineIndex int
	points        []cad.SketchPoint
	curves        []cad.SketchCurve
	profiles      []cad.Profile
	dimensions    []cad.SketchDimension
}

func (s *sketch) TimelineIndex() int                { return s.timelineIndex }
func (s *sketch) Points() []cad.SketchPoint         { return s.points }
func (s *sketch) Curves() []cad.SketchCurve         { return s.curves }
func (s *sketch) Profiles() []cad.Profile           { return s.profiles }
func (s *sketch) Dimensions() []cad.SketchDimension { return s.dimensions }

type sketchPoint struct {
	entity
	pos cad.Point
}

func (p *sketchPoint) Position() cad.Point { return p.pos }

type sketchLine struct {
	entity
	start, end cad.SketchPoint
}

func (l *sketchLine) StartPoint() cad.SketchPoint { return l.start }
func (l *sketchLine) EndPoint() cad.SketchPoint   { return l.end }

type sketchArc struct {
	entity
	center, start, end cad.SketchPoint
	radius             float64
}

func (a *sketchArc) CenterPoint() cad.SketchPoint { return a.center }
func (a *sketchArc) StartPoint() cad.SketchPoint  { return a.start }
func (a *sketchArc) EndPoint() cad.SketchPoint    { return a.end }
func (a *sketchArc) Radius() float64              { return a.radius }

type sketchCircle struct {
	entity
	center cad.SketchPoint
	radius float64
}

func (c *sketchCircle) CenterPoint() cad.SketchPoint { return c.center }
func (c *sketchCircle) Radius() float64              { return c.radius }

type sketchSpline struct {
	entity
	fit []cad.SketchPoint
}

func (s *sketchSpline) FitPoints() []cad.SketchPoint { return s.fit }

// genericCurve carries curves of kinds this package does not model; the
// pipeline's fallback extractor still produces a node for them.
type genericCurve struct {
	entity
}

type dimension struct {
	entity
	value    float64
	attached []cad.Entity
}

func (d *dimension) Value() float64        { return d.value }
func (d *dimension) Attached() []cad.Entity { return d.attached }

type profile struct {
	entity
	owner    cad.Sketch
	boundary []cad.SketchCurve
	area     float64
}

func (p *profile) Sketch() cad.Sketch          { return p.owner }
func (p *profile) Boundary() []cad.SketchCurve { return p.boundary }
func (p *profile) Area() float64               { return p.area }

type extrudeFeature struct {
	entity
	timelineIndex int
	parent        cad.Component
	profiles      []cad.Profile
	bodies        []cad.BRepBody
	operation     string
	distance      float64
}

func (f *extrudeFeature) TimelineIndex() int             { return f.timelineIndex }
func (f *extrudeFeature) Parent() cad.Component          { return f.parent }
func (f *extrudeFeature) Profiles() []cad.Profile        { return f.profiles }
func (f *extrudeFeature) ProducedBodies() []cad.BRepBody { return f.bodies }
func (f *extrudeFeature) Operation() string              { return f.operation }
func (f *extrudeFeature) Distance() float64              { return f.distance }

type body struct {
	entity
	faces    []cad.BRepFace
	edges    []cad.BRepEdge
	vertices []cad.BRepVertex
}

func (b *body) Faces() []cad.BRepFace       { return b.faces }
func (b *body) Edges() []cad.BRepEdge       { return b.edges }
func (b *body) Vertices() []cad.BRepVertex  { return b.vertices }

type face struct {
	entity
	surface string
	edges   []cad.BRepEdge
}

func (f *face) SurfaceType() string    { return f.surface }
func (f *face) Edges() []cad.BRepEdge  { return f.edges }

type edge struct {
	entity
	start, end cad.BRepVertex
	faces      []cad.BRepFace
}

func (e *edge) StartVertex() cad.BRepVertex { return e.start }
func (e *edge) EndVertex() cad.BRepVertex   { return e.end }
func (e *edge) Faces() []cad.BRepFace       { return e.faces }

type vertex struct {
	entity
	pos cad.Point
}

func (v *vertex) Position() cad.Point { return v.pos }

// --- building ---

// Decode reads a JSON snapshot and resolves it into a document.
func Decode(r io.Reader) (*Document, error) {
	var spec DocSpec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return Build(&spec)
}

// Build resolves a DocSpec's token references into a linked entity graph.
// References may point at entities defined anywhere in the document, which
// is how the snapshot reproduces the host model's shared references and
// cycles.
func Build(spec *DocSpec) (*Document, error) {
	b := &builder{byToken: make(map[string]cad.Entity)}
	root, err := b.component(&spec.Root)
	if err != nil {
		return nil, err
	}
	// Second pass: wire everything that references by token.
	if err := b.link(); err != nil {
		return nil, err
	}
	return &Document{name: spec.Name, root: root}, nil
}

type builder struct {
	byToken map[string]cad.Entity
	links   []func() error
}

func (b *builder) register(token string, e cad.Entity) {
	if token != "" {
		b.byToken[token] = e
	}
}

func (b *builder) resolve(token string) (cad.Entity, error) {
	e, ok := b.byToken[token]
	if !ok {
		return nil, fmt.Errorf("snapshot: unresolved token %q", token)
	}
	return e, nil
}

func (b *builder) link() error {
	for _, f := range b.links {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) component(spec *ComponentSpec) (*Component, error) {
	c := &Component{entity: entity{kind: cad.KindComponent, token: spec.Token, name: spec.Name}}
	b.register(spec.Token, c)

	for i := range spec.Sketches {
		s, err := b.sketch(&spec.Sketches[i])
		if err != nil {
			return nil, err
		}
		c.sketches = append(c.sketches, s)
	}
	for i := range spec.Bodies {
		bd, err := b.body(&spec.Bodies[i])
		if err != nil {
			return nil, err
		}
		c.bodies = append(c.bodies, bd)
	}
	for i := range spec.Features {
		f := b.feature(&spec.Features[i], c)
		c.features = append(c.features, f)
	}
	for i := range spec.Children {
		child, err := b.component(&spec.Children[i])
		if err != nil {
			return nil, err
		}
		c.children = append(c.children, child)
	}
	return c, nil
}

func (b *builder) sketch(spec *SketchSpec) (*sketch, error) {
	s := &sketch{
		entity:        entity{kind: cad.KindSketch, token: spec.Token, name: spec.Name},
		timelineIndex: spec.TimelineIndex,
	}
	b.register(spec.Token, s)

	for _, ps := range spec.Points {
		p := &sketchPoint{
			entity: entity{kind: cad.KindSketchPoint, token: ps.Token, name: ps.Name},
			pos:    cad.Point{X: ps.X, Y: ps.Y, Z: ps.Z},
		}
		b.register(ps.Token, p)
		s.points = append(s.points, p)
	}
	for i := range spec.Curves {
		c := b.curve(&spec.Curves[i])
		s.curves = append(s.curves, c)
	}
	for _, ds := range spec.Dimensions {
		d := &dimension{
			entity: entity{kind: cad.KindSketchDimension, token: ds.Token, name: ds.Name},
			value:  ds.Value,
		}
		b.register(ds.Token, d)
		s.dimensions = append(s.dimensions, d)
		b.defer1(ds.Attached, func(e cad.Entity) { d.attached = append(d.attached, e) })
	}
	for _, ps := range spec.Profiles {
		p := &profile{
			entity: entity{kind: cad.KindProfile, token: ps.Token},
			owner:  s,
			area:   ps.Area,
		}
		b.register(ps.Token, p)
		s.profiles = append(s.profiles, p)
		b.defer1(ps.Boundary, func(e cad.Entity) {
			if c, ok := e.(cad.SketchCurve); ok {
				p.boundary = append(p.boundary, c)
			}
		})
	}
	return s, nil
}

func (b *builder) curve(spec *CurveSpec) cad.SketchCurve {
	ent := entity{kind: cad.Kind(spec.Kind), token: spec.Token, name: spec.Name}
	var c cad.SketchCurve
	switch cad.Kind(spec.Kind) {
	case cad.KindSketchLine:
		l := &sketchLine{entity: ent}
		b.deferPoint(spec.Start, func(p cad.SketchPoint) { l.start = p })
		b.deferPoint(spec.End, func(p cad.SketchPoint) { l.end = p })
		c = l
	case cad.KindSketchArc:
		a := &sketchArc{entity: ent, radius: spec.Radius}
		b.deferPoint(spec.Center, func(p cad.SketchPoint) { a.center = p })
		b.deferPoint(spec.Start, func(p cad.SketchPoint) { a.start = p })
		b.deferPoint(spec.End, func(p cad.SketchPoint) { a.end = p })
		c = a
	case cad.KindSketchCircle:
		ci := &sketchCircle{entity: ent, radius: spec.Radius}
		b.deferPoint(spec.Center, func(p cad.SketchPoint) { ci.center = p })
		c = ci
	case cad.KindSketchFittedSpline:
		sp := &sketchSpline{entity: ent}
		b.defer1(spec.FitPoints, func(e cad.Entity) {
			if p, ok := e.(cad.SketchPoint); ok {
				sp.fit = append(sp.fit, p)
			}
		})
		c = sp
	default:
		c = &genericCurve{entity: ent}
	}
	b.register(spec.Token, c)
	return c
}

func (b *builder) feature(spec *FeatureSpec, parent cad.Component) cad.Feature {
	f := &extrudeFeature{
		entity:        entity{kind: cad.KindExtrudeFeature, token: spec.Token, name: spec.Name},
		timelineIndex: spec.TimelineIndex,
		parent:        parent,
		operation:     spec.Operation,
		distance:      spec.Distance,
	}
	b.register(spec.Token, f)
	b.defer1(spec.Profiles, func(e cad.Entity) {
		if p, ok := e.(cad.Profile); ok {
			f.profiles = append(f.profiles, p)
		}
	})
	b.defer1(spec.Bodies, func(e cad.Entity) {
		if bd, ok := e.(cad.BRepBody); ok {
			f.bodies = append(f.bodies, bd)
		}
	})
	return f
}

func (b *builder) body(spec *BodySpec) (*body, error) {
	bd := &body{entity: entity{kind: cad.KindBRepBody, token: spec.Token, name: spec.Name}}
	b.register(spec.Token, bd)

	for _, vs := range spec.Vertices {
		v := &vertex{
			entity: entity{kind: cad.KindBRepVertex, token: vs.Token},
			pos:    cad.Point{X: vs.X, Y: vs.Y, Z: vs.Z},
		}
		b.register(vs.Token, v)
		bd.vertices = append(bd.vertices, v)
	}
	for _, fs := range spec.Faces {
		f := &face{
			entity:  entity{kind: cad.KindBRepFace, token: fs.Token},
			surface: fs.Surface,
		}
		b.register(fs.Token, f)
		bd.faces = append(bd.faces, f)
		b.defer1(fs.Edges, func(e cad.Entity) {
			if ed, ok := e.(cad.BRepEdge); ok {
				f.edges = append(f.edges, ed)
			}
		})
	}
	for _, es := range spec.Edges {
		e := &edge{entity: entity{kind: cad.KindBRepEdge, token: es.Token}}
		b.register(es.Token, e)
		bd.edges = append(bd.edges, e)
		b.deferVertex(es.Start, func(v cad.BRepVertex) { e.start = v })
		b.deferVertex(es.End, func(v cad.BRepVertex) { e.end = v })
		b.defer1(es.Faces, func(fe cad.Entity) {
			if f, ok := fe.(cad.BRepFace); ok {
				e.faces = append(e.faces, f)
			}
		})
	}
	return bd, nil
}

// defer1 schedules resolution of a token list for the second pass.
func (b *builder) defer1(tokens []string, set func(cad.Entity)) {
	b.links = append(b.links, func() error {
		for _, tok := range tokens {
			e, err := b.resolve(tok)
			if err != nil {
				return err
			}
			set(e)
		}
		return nil
	})
}

func (b *builder) deferPoint(token string, set func(cad.SketchPoint)) {
	if token == "" {
		return
	}
	b.links = append(b.links, func() error {
		e, err := b.resolve(token)
		if err != nil {
			return err
		}
		p, ok := e.(cad.SketchPoint)
		if !ok {
			return fmt.Errorf("snapshot: token %q is not a sketch point", token)
		}
		set(p)
		return nil
	})
}

func (b *builder) deferVertex(token string, set func(cad.BRepVertex)) {
	if token == "" {
		return
	}
	b.links = append(b.links, func() error {
		e, err := b.resolve(token)
		if err != nil {
			return err
		}
		v, ok := e.(cad.BRepVertex)
		if !ok {
			return fmt.Errorf("snapshot: token %q is not a vertex", token)
		}
		set(v)
		return nil
	})
}
