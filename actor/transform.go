package actor

import (
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// Transform represents a position and an orientation in 3D space
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
	}
}

func NewTransformAt(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	return Transform{Position: position, Rotation: rotation}
}

// TransformPoint maps a point from local to world space.
func (t Transform) TransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Position)
}

// InverseTransformPoint maps a point from world to local space.
func (t Transform) InverseTransformPoint(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(p.Sub(t.Position))
}

func (t Transform) TransformDirection(d mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(d)
}

func (t Transform) InverseTransformDirection(d mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(d)
}

// Interpolate blends linearly towards other, with a normalized lerp on the rotation.
func (t Transform) Interpolate(other Transform, factor float64) Transform {
	return Transform{
		Position: t.Position.Add(other.Position.Sub(t.Position).Mul(factor)),
		Rotation: mathutil.Nlerp(t.Rotation, other.Rotation, factor),
	}
}
