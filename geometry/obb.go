package geometry

import (
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// OBB is an oriented box defined by its center, half extents and rotation.
type OBB struct {
	Center   mgl64.Vec3
	Radius   mgl64.Vec3
	Rotation mgl64.Quat
}

func (o OBB) Type() ShapeType {
	return ShapeTypeOBB
}

func (o OBB) Centroid() mgl64.Vec3 {
	return o.Center
}

func (o OBB) Volume() float64 {
	return 8 * o.Radius[0] * o.Radius[1] * o.Radius[2]
}

func (o OBB) Support(direction mgl64.Vec3) mgl64.Vec3 {
	local := o.Rotation.Conjugate().Rotate(direction)
	r := o.Radius
	for i := 0; i < 3; i++ {
		if local[i] < 0 {
			r[i] = -r[i]
		}
	}
	return o.Rotation.Rotate(r).Add(o.Center)
}

func (o OBB) Bounds() AABB {
	return AABBFromCenterRadius(o.Center, rotatedExtents(mathutil.QuatToMat3(o.Rotation), o.Radius))
}

// Corners returns the 8 corners in world space.
func (o OBB) Corners() [8]mgl64.Vec3 {
	var corners [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		local := o.Radius
		if i&1 == 0 {
			local[0] = -local[0]
		}
		if i&2 == 0 {
			local[1] = -local[1]
		}
		if i&4 == 0 {
			local[2] = -local[2]
		}
		corners[i] = o.Rotation.Rotate(local).Add(o.Center)
	}
	return corners
}

// ToLocal converts a world-space point into the box frame, centered on the box.
func (o OBB) ToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return o.Rotation.Conjugate().Rotate(p.Sub(o.Center))
}

// ToWorld is the inverse of ToLocal.
func (o OBB) ToWorld(p mgl64.Vec3) mgl64.Vec3 {
	return o.Rotation.Rotate(p).Add(o.Center)
}

// LocalAABB returns the box as an AABB in its own frame.
func (o OBB) LocalAABB() AABB {
	return AABBFromCenterRadius(mgl64.Vec3{}, o.Radius)
}

func (o OBB) TransformToAABB(rotation mgl64.Quat, position mgl64.Vec3) AABB {
	return o.TransformToOBB(rotation, position).Bounds()
}

func (o OBB) TransformToOBB(rotation mgl64.Quat, position mgl64.Vec3) OBB {
	return OBB{
		Center:   rotation.Rotate(o.Center).Add(position),
		Radius:   o.Radius,
		Rotation: rotation.Mul(o.Rotation).Normalize(),
	}
}

func (o OBB) Transformed(position mgl64.Vec3, rotation mgl64.Quat) Shape {
	return o.TransformToOBB(rotation, position)
}

func (o OBB) MassProperties(density float64) MassProperties {
	mass := o.Volume() * density
	inertia := boxInertia(mass, o.Radius.Mul(2))
	return MassProperties{
		Mass:    mass,
		COG:     o.Center,
		Inertia: rotateInertia(mathutil.QuatToMat3(o.Rotation), inertia),
	}
}
