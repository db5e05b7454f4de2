package geometry

import (
	"math"

	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NegativeInfinity returns an empty box that any Grow call replaces.
func NegativeInfinity() AABB {
	return AABB{
		Min: mgl64.Vec3{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64},
		Max: mgl64.Vec3{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64},
	}
}

func AABBFromMinMax(min, max mgl64.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

func AABBFromCenterRadius(center, radius mgl64.Vec3) AABB {
	return AABB{Min: center.Sub(radius), Max: center.Add(radius)}
}

func (a AABB) Type() ShapeType {
	return ShapeTypeAABB
}

func (a AABB) Centroid() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Radius returns the half extents of the box.
func (a AABB) Radius() mgl64.Vec3 {
	return a.Max.Sub(a.Min).Mul(0.5)
}

func (a AABB) Volume() float64 {
	d := a.Max.Sub(a.Min)
	return d[0] * d[1] * d[2]
}

func (a AABB) Grow(p mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		a.Min[i] = math.Min(a.Min[i], p[i])
		a.Max[i] = math.Max(a.Max[i], p[i])
	}
	return a
}

func (a AABB) Pad(p mgl64.Vec3) AABB {
	return AABB{Min: a.Min.Sub(p), Max: a.Max.Add(p)}
}

func (a AABB) Union(b AABB) AABB {
	return a.Grow(b.Min).Grow(b.Max)
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap. Touching boxes overlap.
func (a AABB) Overlaps(other AABB) bool {
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

func (a AABB) Support(direction mgl64.Vec3) mgl64.Vec3 {
	var p mgl64.Vec3
	for i := 0; i < 3; i++ {
		if direction[i] < 0 {
			p[i] = a.Min[i]
		} else {
			p[i] = a.Max[i]
		}
	}
	return p
}

func (a AABB) Bounds() AABB {
	return a
}

// TransformToAABB returns the bounds of the box after rotation and translation.
func (a AABB) TransformToAABB(rotation mgl64.Quat, position mgl64.Vec3) AABB {
	center := rotation.Rotate(a.Centroid()).Add(position)
	return AABBFromCenterRadius(center, rotatedExtents(mathutil.QuatToMat3(rotation), a.Radius()))
}

// TransformToOBB returns the box after rotation and translation.
func (a AABB) TransformToOBB(rotation mgl64.Quat, position mgl64.Vec3) OBB {
	return OBB{
		Center:   rotation.Rotate(a.Centroid()).Add(position),
		Radius:   a.Radius(),
		Rotation: rotation,
	}
}

// Transformed stays axis aligned for pure translations and becomes an OBB otherwise.
func (a AABB) Transformed(position mgl64.Vec3, rotation mgl64.Quat) Shape {
	if mathutil.IsIdentity(rotation) {
		return AABB{Min: a.Min.Add(position), Max: a.Max.Add(position)}
	}
	return a.TransformToOBB(rotation, position)
}

func (a AABB) MassProperties(density float64) MassProperties {
	mass := a.Volume() * density
	return MassProperties{
		Mass:    mass,
		COG:     a.Centroid(),
		Inertia: boxInertia(mass, a.Radius().Mul(2)),
	}
}

func boxInertia(mass float64, diameter mgl64.Vec3) mgl64.Mat3 {
	x2 := diameter[0] * diameter[0]
	y2 := diameter[1] * diameter[1]
	z2 := diameter[2] * diameter[2]
	return mgl64.Diag3(mgl64.Vec3{
		mass / 12 * (y2 + z2),
		mass / 12 * (x2 + z2),
		mass / 12 * (x2 + y2),
	})
}

// rotatedExtents returns the world half extents of a box with half extents r under rotation m.
func rotatedExtents(m mgl64.Mat3, r mgl64.Vec3) mgl64.Vec3 {
	var e mgl64.Vec3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			e[row] += math.Abs(m.At(row, col)) * r[col]
		}
	}
	return e
}
