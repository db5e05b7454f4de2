// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) algorithm for collision detection.
//
// GJK detects whether two convex shapes overlap by testing if their Minkowski difference
// contains the origin. The algorithm builds a simplex incrementally, converging toward
// the origin in typically 3-6 iterations.
//
// Every simplex vertex remembers the support points of both shapes it was built from,
// so that EPA can map its result back onto the shapes.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
package gjk

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxIterations bounds the refinement loop.
const MaxIterations = 32

// Support is the only query GJK needs from a convex shape.
type Support interface {
	Support(direction mgl64.Vec3) mgl64.Vec3
	Centroid() mgl64.Vec3
}

// Status is the outcome of a GJK query.
type Status uint8

const (
	StatusNoOverlap Status = iota
	StatusOverlap
	// StatusNumericalError is returned on degenerate simplices or non-convergence.
	// Callers treat it as no overlap.
	StatusNumericalError
)

func (s Status) String() string {
	switch s {
	case StatusOverlap:
		return "Overlap"
	case StatusNumericalError:
		return "NumericalError"
	default:
		return "NoOverlap"
	}
}

// Vertex is a point of the Minkowski difference A - B with the support points it came from.
type Vertex struct {
	Point    mgl64.Vec3
	SupportA mgl64.Vec3
	SupportB mgl64.Vec3
}

// Simplex represents a set of 1-4 points in the Minkowski difference space.
// The most recent point is always the last one.
type Simplex struct {
	Points [4]Vertex
	Count  int
}

func (s *Simplex) Reset() {
	s.Count = 0
}

func (s *Simplex) set(points ...Vertex) {
	s.Count = copy(s.Points[:], points)
}

var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}

// MinkowskiSupport computes a support point in the Minkowski difference (A - B):
// furthestPoint(A, direction) - furthestPoint(B, -direction).
func MinkowskiSupport(a, b Support, direction mgl64.Vec3) mgl64.Vec3 {
	return MinkowskiVertex(a, b, direction).Point
}

// MinkowskiVertex is MinkowskiSupport keeping both support points.
func MinkowskiVertex(a, b Support, direction mgl64.Vec3) Vertex {
	supportA := a.Support(direction)
	supportB := b.Support(direction.Mul(-1))
	return Vertex{Point: supportA.Sub(supportB), SupportA: supportA, SupportB: supportB}
}

// GJK tests two convex shapes for overlap.
//
// On StatusOverlap the simplex usually holds a tetrahedron enclosing the origin,
// which EPA uses as its initial polytope. Touching configurations may stop with
// fewer points.
func GJK(a, b Support, simplex *Simplex) Status {
	direction := b.Centroid().Sub(a.Centroid())
	if direction.LenSqr() < 1e-8 {
		direction = mgl64.Vec3{1, 0, 0}
	}

	simplex.Points[0] = MinkowskiVertex(a, b, direction)
	simplex.Count = 1

	direction = simplex.Points[0].Point.Mul(-1)
	if direction.LenSqr() < 1e-16 {
		return StatusOverlap
	}

	for i := 0; i < MaxIterations; i++ {
		newPoint := MinkowskiVertex(a, b, direction)

		// The new point does not pass the origin: it cannot be enclosed.
		if newPoint.Point.Dot(direction) <= 0 {
			return StatusNoOverlap
		}

		simplex.Points[simplex.Count] = newPoint
		simplex.Count++

		if status, done := updateSimplex(simplex, &direction); done {
			return status
		}
	}

	return StatusNumericalError
}

// Overlap runs GJK with a pooled simplex and reports a boolean result.
func Overlap(a, b Support) bool {
	simplex := SimplexPool.Get().(*Simplex)
	defer SimplexPool.Put(simplex)
	simplex.Reset()

	return GJK(a, b, simplex) == StatusOverlap
}

// updateSimplex reduces the simplex to the feature closest to the origin and
// updates the search direction. done is true when GJK must stop.
func updateSimplex(simplex *Simplex, direction *mgl64.Vec3) (Status, bool) {
	switch simplex.Count {
	case 2:
		return line(simplex, direction)
	case 3:
		return triangle(simplex, direction)
	case 4:
		return tetrahedron(simplex, direction)
	}
	return StatusNumericalError, true
}

// line handles the line simplex case (2 points: A and B).
func line(simplex *Simplex, direction *mgl64.Vec3) (Status, bool) {
	a := simplex.Points[1]
	b := simplex.Points[0]
	ab := b.Point.Sub(a.Point)
	ao := a.Point.Mul(-1)

	if ab.LenSqr() < 1e-8 {
		if ao.LenSqr() < 1e-8 {
			return StatusOverlap, true
		}
		simplex.set(a)
		*direction = ao
		return StatusNoOverlap, false
	}

	// Voronoi region of A alone
	if ab.Dot(ao) <= 0 {
		simplex.set(a)
		*direction = ao
		return StatusNoOverlap, false
	}

	abPerp := ab.Cross(ao).Cross(ab)
	if abPerp.LenSqr() < 1e-8 {
		// origin on the segment: touching
		return StatusOverlap, true
	}

	*direction = abPerp
	return StatusNoOverlap, false
}

// triangle handles the triangle simplex case (3 points: A, B, C).
// Collinear points fall back to the line case.
func triangle(simplex *Simplex, direction *mgl64.Vec3) (Status, bool) {
	a := simplex.Points[2]
	b := simplex.Points[1]
	c := simplex.Points[0]

	ab := b.Point.Sub(a.Point)
	ac := c.Point.Sub(a.Point)
	ao := a.Point.Mul(-1)

	abc := ab.Cross(ac)

	if abc.LenSqr() < 1e-10 {
		simplex.set(b, a)
		return line(simplex, direction)
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		simplex.set(b, a)
		*direction = ab.Cross(ao).Cross(ab)
		return StatusNoOverlap, false
	}

	if abc.Cross(ac).Dot(ao) > 0 {
		simplex.set(c, a)
		*direction = ac.Cross(ao).Cross(ac)
		return StatusNoOverlap, false
	}

	d := abc.Dot(ao)
	switch {
	case d > 0:
		*direction = abc
	case d < 0:
		// below: flip the winding so that the normal faces the origin
		simplex.set(b, c, a)
		*direction = abc.Mul(-1)
	default:
		// origin in the triangle plane and inside it: touching
		return StatusOverlap, true
	}

	return StatusNoOverlap, false
}

// tetrahedron handles the tetrahedron simplex case (4 points: A, B, C, D).
// Face normals are oriented away from the opposite vertex.
func tetrahedron(simplex *Simplex, direction *mgl64.Vec3) (Status, bool) {
	a := simplex.Points[3]
	b := simplex.Points[2]
	c := simplex.Points[1]
	d := simplex.Points[0]

	ab := b.Point.Sub(a.Point)
	ac := c.Point.Sub(a.Point)
	ad := d.Point.Sub(a.Point)
	ao := a.Point.Mul(-1)

	abc := ab.Cross(ac)
	if abc.Dot(ad) > 0 {
		abc = abc.Mul(-1)
	}

	acd := ac.Cross(ad)
	if acd.Dot(ab) > 0 {
		acd = acd.Mul(-1)
	}

	adb := ad.Cross(ab)
	if adb.Dot(ac) > 0 {
		adb = adb.Mul(-1)
	}

	// flat tetrahedron
	if abc.LenSqr() < 1e-10 || acd.LenSqr() < 1e-10 || adb.LenSqr() < 1e-10 || math.Abs(ab.Dot(ac.Cross(ad))) < 1e-12 {
		return StatusNumericalError, true
	}

	if abc.Dot(ao) > 0 {
		simplex.set(c, b, a)
		return triangle(simplex, direction)
	}

	if acd.Dot(ao) > 0 {
		simplex.set(d, c, a)
		return triangle(simplex, direction)
	}

	if adb.Dot(ao) > 0 {
		simplex.set(b, d, a)
		return triangle(simplex, direction)
	}

	return StatusOverlap, true
}
