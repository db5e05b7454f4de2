// Package geometry implements the convex shapes used by the collision pipeline,
// together with rays, planes, closest-point queries and analytic mass properties.
//
// Every routine is a pure function. Queries that can fail return a boolean
// alongside their result instead of an error.
package geometry

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon guards divisions and normalizations against degenerate input.
const Epsilon = 1e-6

// ShapeType identifies the concrete shape behind a Shape.
// The order matters: the narrowphase sorts pairs so that A.Type() <= B.Type().
type ShapeType uint8

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeCapsule
	ShapeTypeCylinder
	ShapeTypeAABB
	ShapeTypeOBB
	ShapeTypeHull

	ShapeTypeCount
)

var shapeTypeNames = [ShapeTypeCount]string{
	"Sphere",
	"Capsule",
	"Cylinder",
	"AABB",
	"OBB",
	"Hull",
}

func (t ShapeType) String() string {
	if t >= ShapeTypeCount {
		return "Unknown"
	}
	return shapeTypeNames[t]
}

// Shape is the closed set of collision shapes: Sphere, Capsule, Cylinder, AABB, OBB and Hull.
//
// Shapes are plain values. A collider stores its shape in the local space of
// its body; Transformed produces the world-space version once per step.
type Shape interface {
	Type() ShapeType
	// Support returns the farthest point of the shape along direction.
	Support(direction mgl64.Vec3) mgl64.Vec3
	// Centroid returns the geometric center, used to seed GJK.
	Centroid() mgl64.Vec3
	// Bounds returns the axis-aligned bounding box of the shape.
	Bounds() AABB
	// MassProperties integrates mass, center of gravity and inertia for a uniform density.
	MassProperties(density float64) MassProperties
	// Transformed moves the shape by rotation then position.
	Transformed(position mgl64.Vec3, rotation mgl64.Quat) Shape
}

// MassProperties holds the mass, center of gravity and inertia tensor (about the COG) of a shape.
type MassProperties struct {
	Mass    float64
	COG     mgl64.Vec3
	Inertia mgl64.Mat3
}

func supportDirection(direction mgl64.Vec3) mgl64.Vec3 {
	l := direction.Len()
	if l < 1e-12 {
		return mgl64.Vec3{1, 0, 0}
	}
	return direction.Mul(1 / l)
}

func rotateInertia(rotation mgl64.Mat3, inertia mgl64.Mat3) mgl64.Mat3 {
	return rotation.Mul3(inertia).Mul3(rotation.Transpose())
}
