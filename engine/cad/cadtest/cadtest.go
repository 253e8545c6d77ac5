// Package cadtest provides canned snapshot documents for tests.
package cadtest

import (
	"fmt"

	"github.com/formalab/cadgraph/engine/cad"
	"github.com/formalab/cadgraph/engine/cad/snapshot"
)

// SquareCubeSpec returns a document with one component holding a square
// sketch (four points, four lines, one profile) extruded into a cube body
// with eight vertices, twelve edges and six faces. Tests that need to poke
// at the raw spec (blank a token, drop a reference) mutate the returned
// value before building it.
func SquareCubeSpec() *snapshot.DocSpec {
	sk := snapshot.SketchSpec{
		Token:         "sk0",
		Name:          "Sketch1",
		TimelineIndex: 0,
		Points: []snapshot.PointSpec{
			{Token: "p0", X: 0, Y: 0},
			{Token: "p1", X: 4, Y: 0},
			{Token: "p2", X: 4, Y: 4},
			{Token: "p3", X: 0, Y: 4},
		},
		Curves: []snapshot.CurveSpec{
			{Token: "l0", Kind: string(cad.KindSketchLine), Start: "p0", End: "p1"},
			{Token: "l1", Kind: string(cad.KindSketchLine), Start: "p1", End: "p2"},
			{Token: "l2", Kind: string(cad.KindSketchLine), Start: "p2", End: "p3"},
			{Token: "l3", Kind: string(cad.KindSketchLine), Start: "p3", End: "p0"},
		},
		Profiles: []snapshot.ProfileSpec{
			{Token: "pr0", Area: 16, Boundary: []string{"l0", "l1", "l2", "l3"}},
		},
	}

	// Cube topology: b(ottom), t(op), s0..s3 sides. Every edge bounds
	// exactly two faces, so the adjacency pass derives 12 face pairs.
	bd := snapshot.BodySpec{
		Token: "b0",
		Name:  "Body1",
		Vertices: []snapshot.VertexSpec{
			{Token: "v0", X: 0, Y: 0, Z: 0},
			{Token: "v1", X: 4, Y: 0, Z: 0},
			{Token: "v2", X: 4, Y: 4, Z: 0},
			{Token: "v3", X: 0, Y: 4, Z: 0},
			{Token: "v4", X: 0, Y: 0, Z: 4},
			{Token: "v5", X: 4, Y: 0, Z: 4},
			{Token: "v6", X: 4, Y: 4, Z: 4},
			{Token: "v7", X: 0, Y: 4, Z: 4},
		},
		Faces: []snapshot.FaceSpec{
			{Token: "fb", Surface: "plane", Edges: []string{"e0", "e1", "e2", "e3"}},
			{Token: "ft", Surface: "plane", Edges: []string{"e4", "e5", "e6", "e7"}},
			{Token: "fs0", Surface: "plane", Edges: []string{"e0", "e9", "e4", "e8"}},
			{Token: "fs1", Surface: "plane", Edges: []string{"e1", "e10", "e5", "e9"}},
			{Token: "fs2", Surface: "plane", Edges: []string{"e2", "e11", "e6", "e10"}},
			{Token: "fs3", Surface: "plane", Edges: []string{"e3", "e8", "e7", "e11"}},
		},
		Edges: []snapshot.EdgeSpec{
			{Token: "e0", Start: "v0", End: "v1", Faces: []string{"fb", "fs0"}},
			{Token: "e1", Start: "v1", End: "v2", Faces: []string{"fb", "fs1"}},
			{Token: "e2", Start: "v2", End: "v3", Faces: []string{"fb", "fs2"}},
			{Token: "e3", Start: "v3", End: "v0", Faces: []string{"fb", "fs3"}},
			{Token: "e4", Start: "v4", End: "v5", Faces: []string{"ft", "fs0"}},
			{Token: "e5", Start: "v5", End: "v6", Faces: []string{"ft", "fs1"}},
			{Token: "e6", Start: "v6", End: "v7", Faces: []string{"ft", "fs2"}},
			{Token: "e7", Start: "v7", End: "v4", Faces: []string{"ft", "fs3"}},
			{Token: "e8", Start: "v0", End: "v4", Faces: []string{"fs3", "fs0"}},
			{Token: "e9", Start: "v1", End: "v5", Faces: []string{"fs0", "fs1"}},
			{Token: "e10", Start: "v2", End: "v6", Faces: []string{"fs1", "fs2"}},
			{Token: "e11", Start: "v3", End: "v7", Faces: []string{"fs2", "fs3"}},
		},
	}

	return &snapshot.DocSpec{
		Name: "square-cube",
		Root: snapshot.ComponentSpec{
			Token:    "comp0",
			Name:     "Root",
			Sketches: []snapshot.SketchSpec{sk},
			Features: []snapshot.FeatureSpec{{
				Token:         "ext0",
				Name:          "Extrude1",
				TimelineIndex: 1,
				Operation:     "NewBody",
				Distance:      4,
				Profiles:      []string{"pr0"},
				Bodies:        []string{"b0"},
			}},
			Bodies: []snapshot.BodySpec{bd},
		},
	}
}

// SquareCube builds the square-extruded-to-cube document, panicking on a
// malformed fixture.
func SquareCube() *snapshot.Document {
	doc, err := snapshot.Build(SquareCubeSpec())
	if err != nil {
		panic(fmt.Sprintf("cadtest: %v", err))
	}
	return doc
}

// FailingDoc wraps a document and reports ErrFn's error from Err, letting
// tests simulate the host going away partway through a traversal.
type FailingDoc struct {
	cad.Document
	ErrFn func() error
}

func (d *FailingDoc) Err() error {
	if d.ErrFn != nil {
		if err := d.ErrFn(); err != nil {
			return err
		}
	}
	return d.Document.Err()
}
