// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA is run after GJK detects a collision to determine:
//   - Penetration depth (how far shapes overlap)
//   - Contact normal (direction to separate shapes)
//   - Contact point (where shapes touch)
//
// The algorithm expands a polytope (starting from GJK's final simplex) toward the
// boundary of the Minkowski difference, until the face closest to the origin is
// also a face of the difference itself. That face gives the Minimum Translation Vector.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxIterations limits polytope expansion to prevent infinite loops.
	// Typical convergence: 5-15 iterations for simple shapes.
	MaxIterations = 32

	// ConvergenceTolerance defines when EPA has converged.
	// If the distance to a new support point improves by less than this threshold,
	// we've found the closest face to the origin.
	ConvergenceTolerance = 0.001

	// AcceptTolerance is the gap still accepted when the iterations run out.
	AcceptTolerance = 0.02

	// NormalSnapThreshold is used to clamp nearly-zero normal components to exactly zero.
	// This helps with numerical stability and axis-aligned collisions.
	NormalSnapThreshold = 1e-8

	// Small initial capacity for PolytopeBuilder - grows dynamically as needed
	polytopeInitialCapacity = 16
)

var (
	ErrNotConverged      = errors.New("epa: not converged")
	ErrDegenerateSimplex = errors.New("epa: degenerate simplex")
)

// Result describes the penetration of A into B.
type Result struct {
	// Normal points from A toward B.
	Normal mgl64.Vec3
	Depth  float64
	// Point is the midpoint of the two witness points.
	Point  mgl64.Vec3
	PointA mgl64.Vec3
	PointB mgl64.Vec3
}

// EPA computes penetration depth and contact information for overlapping convex shapes.
//
// Algorithm overview:
//  1. Complete the GJK simplex into a tetrahedron if GJK stopped early (touching shapes)
//  2. Build initial polytope faces from the tetrahedron
//  3. Find face closest to origin
//  4. Get support point in face normal direction
//  5. If converged (new point doesn't improve distance) → done
//  6. Otherwise, expand polytope by adding support point
//  7. Repeat from step 3
//
// The simplex is modified in place when it has to be completed.
func EPA(a, b gjk.Support, simplex *gjk.Simplex) (Result, error) {
	if simplex.Count < 4 && !blowUp(a, b, simplex) {
		return Result{}, fmt.Errorf("%w: %d points", ErrDegenerateSimplex, simplex.Count)
	}

	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(simplex); err != nil {
		return Result{}, err
	}

	var closest Face
	gap := math.MaxFloat64

	for i := 0; i < MaxIterations; i++ {
		closestIndex := builder.FindClosestFaceIndex()
		if closestIndex < 0 {
			return Result{}, fmt.Errorf("%w: no valid face", ErrDegenerateSimplex)
		}
		closest = builder.faces[closestIndex]

		support := gjk.MinkowskiVertex(a, b, closest.Normal)
		gap = support.Point.Dot(closest.Normal) - closest.Distance

		if gap < ConvergenceTolerance {
			return builder.result(closest), nil
		}

		if !builder.AddPointAndRebuildFaces(support, closestIndex) {
			break
		}
	}

	if gap <= AcceptTolerance {
		return builder.result(closest), nil
	}

	return Result{}, fmt.Errorf("%w after %d iterations (gap %g)", ErrNotConverged, MaxIterations, gap)
}

// result projects the origin on the face and maps it back onto both shapes
// through the barycentric coordinates of the projection.
func (b *PolytopeBuilder) result(face Face) Result {
	va := b.vertices[face.Indices[0]]
	vb := b.vertices[face.Indices[1]]
	vc := b.vertices[face.Indices[2]]

	projection := face.Normal.Mul(face.Distance)
	u, v, w, ok := geometry.Barycentric(projection, va.Point, vb.Point, vc.Point)
	if !ok {
		u, v, w = 1.0/3.0, 1.0/3.0, 1.0/3.0
	}

	pointA := va.SupportA.Mul(u).Add(vb.SupportA.Mul(v)).Add(vc.SupportA.Mul(w))
	pointB := va.SupportB.Mul(u).Add(vb.SupportB.Mul(v)).Add(vc.SupportB.Mul(w))

	return Result{
		Normal: snapNormalToAxis(face.Normal),
		Depth:  math.Max(face.Distance, 0),
		Point:  pointA.Add(pointB).Mul(0.5),
		PointA: pointA,
		PointB: pointB,
	}
}

var searchDirections = [6]mgl64.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// blowUp completes a simplex of 1 to 3 points into a tetrahedron, which happens
// when GJK stops on touching shapes with the origin on the simplex boundary.
// It returns false when the Minkowski difference is too flat to enclose a volume.
func blowUp(a, b gjk.Support, simplex *gjk.Simplex) bool {
	const minDistance = 1e-6

	if simplex.Count == 0 {
		return false
	}

	if simplex.Count == 1 {
		origin := simplex.Points[0].Point
		for _, direction := range searchDirections {
			vertex := gjk.MinkowskiVertex(a, b, direction)
			if vertex.Point.Sub(origin).Len() > minDistance {
				simplex.Points[1] = vertex
				simplex.Count = 2
				break
			}
		}
		if simplex.Count < 2 {
			return false
		}
	}

	if simplex.Count == 2 {
		line := simplex.Points[1].Point.Sub(simplex.Points[0].Point).Normalize()

		// Start from the axis least aligned with the line and rotate around it.
		smallest := 0
		for i := 1; i < 3; i++ {
			if math.Abs(line[i]) < math.Abs(line[smallest]) {
				smallest = i
			}
		}
		var axis mgl64.Vec3
		axis[smallest] = 1
		direction := line.Cross(axis).Normalize()
		rotation := mgl64.QuatRotate(math.Pi/3, line)

		for i := 0; i < 6; i++ {
			vertex := gjk.MinkowskiVertex(a, b, direction)
			if distanceToLine(vertex.Point, simplex.Points[0].Point, line) > minDistance {
				simplex.Points[2] = vertex
				simplex.Count = 3
				break
			}
			direction = rotation.Rotate(direction)
		}
		if simplex.Count < 3 {
			return false
		}
	}

	p0 := simplex.Points[0].Point
	normal := simplex.Points[1].Point.Sub(p0).Cross(simplex.Points[2].Point.Sub(p0))
	if normal.LenSqr() < 1e-12 {
		return false
	}
	normal = normal.Normalize()

	for _, direction := range [2]mgl64.Vec3{normal, normal.Mul(-1)} {
		vertex := gjk.MinkowskiVertex(a, b, direction)
		if math.Abs(vertex.Point.Sub(p0).Dot(normal)) > minDistance {
			simplex.Points[3] = vertex
			simplex.Count = 4
			return true
		}
	}

	return false
}

func distanceToLine(p, origin, direction mgl64.Vec3) float64 {
	offset := p.Sub(origin)
	return offset.Sub(direction.Mul(offset.Dot(direction))).Len()
}

// snapNormalToAxis clamps nearly-zero components of a normal vector to exactly zero.
//
// This improves numerical stability for axis-aligned collisions (box on ground)
// by preventing tiny floating-point errors from causing jitter in tangent directions.
func snapNormalToAxis(normal mgl64.Vec3) mgl64.Vec3 {
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < NormalSnapThreshold {
			normal[i] = 0
		}
	}

	length := normal.Len()
	if length < 1e-8 {
		return mgl64.Vec3{0, 1, 0}
	}

	return normal.Mul(1.0 / length)
}
