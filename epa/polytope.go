package epa

import (
	"fmt"
	"math"
	"sync"

	"github.com/akmonengine/impulse/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Face is a triangle of the polytope. Indices are counter-clockwise seen from
// outside, so that the normal points away from the origin.
type Face struct {
	Indices  [3]int
	Normal   mgl64.Vec3
	Distance float64
}

// EdgeEntry is a directed edge of the horizon, kept with the winding of the removed face.
type EdgeEntry struct {
	A, B int
}

// PolytopeBuilder manages polytope expansion with dynamic buffers.
type PolytopeBuilder struct {
	vertices []gjk.Vertex
	faces    []Face

	// Edge tracking for boundary detection
	edges []EdgeEntry

	// Visible face tracking
	visible []bool
}

// polytopeBuilderPool is the single sync.Pool for PolytopeBuilder instances.
// This eliminates allocation of builder structures during EPA iterations.
var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			vertices: make([]gjk.Vertex, 0, polytopeInitialCapacity),
			faces:    make([]Face, 0, polytopeInitialCapacity),
			edges:    make([]EdgeEntry, 0, polytopeInitialCapacity),
			visible:  make([]bool, 0, polytopeInitialCapacity),
		}
	},
}

// Reset prepares the builder for reuse by clearing all slices.
func (b *PolytopeBuilder) Reset() {
	b.vertices = b.vertices[:0]
	b.faces = b.faces[:0]
	b.edges = b.edges[:0]
	b.visible = b.visible[:0]
}

// BuildInitialFaces creates the initial polytope from a tetrahedron simplex.
// Every face is wound so that its normal points away from the opposite vertex.
func (b *PolytopeBuilder) BuildInitialFaces(simplex *gjk.Simplex) error {
	if simplex.Count != 4 {
		return fmt.Errorf("%w: %d points (expected 4)", ErrDegenerateSimplex, simplex.Count)
	}

	b.vertices = append(b.vertices, simplex.Points[:]...)

	p0, p1, p2, p3 := b.vertices[0].Point, b.vertices[1].Point, b.vertices[2].Point, b.vertices[3].Point
	if p1.Sub(p0).Cross(p2.Sub(p0)).Dot(p3.Sub(p0)) > 0 {
		// p3 is above triangle 0-1-2: swap to get the opposite orientation
		b.vertices[1], b.vertices[2] = b.vertices[2], b.vertices[1]
	}

	b.addFace(0, 1, 2)
	b.addFace(0, 3, 1)
	b.addFace(0, 2, 3)
	b.addFace(1, 3, 2)

	return nil
}

// addFace appends the triangle a-b-c. Degenerate triangles keep the polytope
// closed but are never selected nor seen from a new point.
func (b *PolytopeBuilder) addFace(a, c, d int) {
	pa := b.vertices[a].Point
	normal := b.vertices[c].Point.Sub(pa).Cross(b.vertices[d].Point.Sub(pa))

	face := Face{Indices: [3]int{a, c, d}}
	length := normal.Len()
	if length < 1e-12 {
		face.Distance = math.MaxFloat64
		b.faces = append(b.faces, face)
		return
	}

	face.Normal = normal.Mul(1 / length)
	face.Distance = face.Normal.Dot(pa)
	b.faces = append(b.faces, face)
}

// FindClosestFaceIndex returns the index of the face closest to the origin.
// Returns -1 if no usable face exists.
func (b *PolytopeBuilder) FindClosestFaceIndex() int {
	closestIndex := -1
	minDistance := math.MaxFloat64

	for i := range b.faces {
		if b.faces[i].Distance < minDistance {
			closestIndex = i
			minDistance = b.faces[i].Distance
		}
	}

	return closestIndex
}

// findVisibleFaces marks faces visible from the support point.
// A face is visible if the vector from the face to the support point points in the
// same direction as the face normal.
func (b *PolytopeBuilder) findVisibleFaces(support mgl64.Vec3) int {
	b.visible = b.visible[:0]
	count := 0

	for i := range b.faces {
		face := &b.faces[i]
		isVisible := support.Sub(b.vertices[face.Indices[0]].Point).Dot(face.Normal) > 0
		b.visible = append(b.visible, isVisible)
		if isVisible {
			count++
		}
	}

	return count
}

// findBoundaryEdges collects the horizon: edges of visible faces that are not
// shared with another visible face. A shared edge shows up once in each winding.
func (b *PolytopeBuilder) findBoundaryEdges() {
	b.edges = b.edges[:0]

	for i := range b.faces {
		if !b.visible[i] {
			continue
		}

		idx := b.faces[i].Indices
		for j := 0; j < 3; j++ {
			edge := EdgeEntry{A: idx[j], B: idx[(j+1)%3]}

			if k := b.findEdgeIndex(edge.B, edge.A); k >= 0 {
				b.edges[k] = b.edges[len(b.edges)-1]
				b.edges = b.edges[:len(b.edges)-1]
				continue
			}
			b.edges = append(b.edges, edge)
		}
	}
}

// findEdgeIndex performs linear search for an edge in the edges buffer.
// Linear search is efficient for small edge counts (typically < 30).
func (b *PolytopeBuilder) findEdgeIndex(from, to int) int {
	for i := range b.edges {
		if b.edges[i].A == from && b.edges[i].B == to {
			return i
		}
	}
	return -1
}

// removeVisibleFaces compacts the face slice, keeping only hidden faces.
func (b *PolytopeBuilder) removeVisibleFaces() {
	kept := b.faces[:0]
	for i, face := range b.faces {
		if !b.visible[i] {
			kept = append(kept, face)
		}
	}
	b.faces = kept
}

// AddPointAndRebuildFaces expands the polytope by adding a support point.
// This is the main EPA expansion step that:
//  1. Finds visible faces from the support point
//  2. Identifies boundary edges of the visible region
//  3. Removes visible faces
//  4. Creates new faces connecting boundary edges to the support point
//
// It returns false when the polytope cannot be expanded any further.
func (b *PolytopeBuilder) AddPointAndRebuildFaces(support gjk.Vertex, closestIndex int) bool {
	count := b.findVisibleFaces(support.Point)

	if count == 0 {
		return false
	}
	// Safety: don't remove all faces
	if count == len(b.faces) {
		for i := range b.visible {
			b.visible[i] = i == closestIndex
		}
	}

	b.findBoundaryEdges()
	if len(b.edges) == 0 {
		return false
	}

	b.removeVisibleFaces()

	index := len(b.vertices)
	b.vertices = append(b.vertices, support)
	for _, edge := range b.edges {
		b.addFace(edge.A, edge.B, index)
	}

	return true
}
