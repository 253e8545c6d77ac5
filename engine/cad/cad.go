// Package cad defines the read-only boundary to a host CAD application's
// object model. The pipeline never holds live host references beyond the
// current traversal step; everything it learns from these interfaces is
// converted immediately into flat graph records keyed by stable identity.
package cad

import "errors"

// ErrNoToken is returned by Token when the host cannot supply a persistent
// token for an entity (observed for transient and virtual entities).
var ErrNoToken = errors.New("cad: entity has no stable token")

// ErrHostUnavailable is reported by Document.Err once the host document
// becomes inaccessible mid-run (for example the user closed it).
var ErrHostUnavailable = errors.New("cad: host document unavailable")

// Kind discriminates entity categories as reported by the host.
type Kind string

const (
	KindComponent          Kind = "Component"
	KindSketch             Kind = "Sketch"
	KindSketchPoint        Kind = "SketchPoint"
	KindSketchLine         Kind = "SketchLine"
	KindSketchArc          Kind = "SketchArc"
	KindSketchCircle       Kind = "SketchCircle"
	KindSketchFittedSpline Kind = "SketchFittedSpline"
	KindSketchDimension    Kind = "SketchDimension"
	KindProfile            Kind = "Profile"
	KindExtrudeFeature     Kind = "ExtrudeFeature"
	KindBRepBody           Kind = "BRepBody"
	KindBRepFace           Kind = "BRepFace"
	KindBRepEdge           Kind = "BRepEdge"
	KindBRepVertex         Kind = "BRepVertex"
)

// Point is a position in model space, in the host's unit system.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Entity is the least common denominator of every host object.
type Entity interface {
	// Kind reports the host's type discrimination for this entity.
	Kind() Kind
	// Token returns the host's persistent per-session token, the input to
	// stable identity derivation. Fails with ErrNoToken for entities the
	// host cannot track.
	Token() (string, error)
	// Name is the user-visible name, possibly empty.
	Name() string
}

// Document is the root handle for one open CAD document snapshot.
type Document interface {
	Name() string
	Root() Component
	// Err reports host availability. A non-nil value (ErrHostUnavailable)
	// means the document can no longer be read and extraction must abort.
	Err() error
}

// Component is a node in the design's component tree.
type Component interface {
	Entity
	Sketches() []Sketch
	Features() []Feature // construction-timeline order
	Bodies() []BRepBody
	Children() []Component
}

// Sketch owns 2D geometry, profiles and dimensions.
type Sketch interface {
	Entity
	TimelineIndex() int
	Points() []SketchPoint
	Curves() []SketchCurve
	Profiles() []Profile
	Dimensions() []SketchDimension
}

// SketchPoint is a 2D sketch point lifted into model space.
type SketchPoint interface {
	Entity
	Position() Point
}

// SketchCurve is any curve owned by a sketch. Concrete categories are
// discriminated by Kind and the typed interfaces below; curves of unknown
// kinds still satisfy this interface and route to the fallback extractor.
type SketchCurve interface {
	Entity
}

// SketchLine is a straight segment between two sketch points.
type SketchLine interface {
	SketchCurve
	StartPoint() SketchPoint
	EndPoint() SketchPoint
}

// SketchArc is a circular arc.
type SketchArc interface {
	SketchCurve
	CenterPoint() SketchPoint
	StartPoint() SketchPoint
	EndPoint() SketchPoint
	Radius() float64
}

// SketchCircle is a full circle.
type SketchCircle interface {
	SketchCurve
	CenterPoint() SketchPoint
	Radius() float64
}

// SketchFittedSpline is a spline through a sequence of fit points.
type SketchFittedSpline interface {
	SketchCurve
	FitPoints() []SketchPoint
}

// SketchDimension annotates one or more sketch entities with a value.
type SketchDimension interface {
	Entity
	Value() float64
	Attached() []Entity
}

// Profile is a closed region bounded by sketch curves. Boundary order as
// reported by the host is semantically meaningful and must be preserved.
type Profile interface {
	Entity
	Sketch() Sketch
	Boundary() []SketchCurve
	// Area is the enclosed area, or 0 if the host does not report one.
	Area() float64
}

// Feature is a timeline operation on the design.
type Feature interface {
	Entity
	TimelineIndex() int
	Parent() Component
}

// ExtrudeFeature consumes profiles and produces solid bodies.
type ExtrudeFeature interface {
	Feature
	Profiles() []Profile
	ProducedBodies() []BRepBody
	Operation() string
	Distance() float64
}

// BRepBody is a boundary-representation solid or surface body.
type BRepBody interface {
	Entity
	Faces() []BRepFace
	Edges() []BRepEdge
	Vertices() []BRepVertex
}

// BRepFace is a bounded surface patch of a body.
type BRepFace interface {
	Entity
	SurfaceType() string
	Edges() []BRepEdge
}

// BRepEdge bounds one or more faces; in a manifold body exactly two.
type BRepEdge interface {
	Entity
	Faces() []BRepFace
	StartVertex() BRepVertex
	EndVertex() BRepVertex
}

// BRepVertex is a topological corner point.
type BRepVertex interface {
	Entity
	Position() Point
}
