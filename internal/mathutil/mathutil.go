// Package mathutil holds small numeric helpers shared by the float64 scalar
// paths and the float32 lane paths.
package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// Epsilon is the tolerance used by degenerate-geometry guards.
const Epsilon = 1e-6

func Clamp[T constraints.Ordered](v, low, high T) T {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func Clamp01[T constraints.Float](v T) T {
	return Clamp(v, 0, 1)
}

// Sign returns -1 for negative values and 1 otherwise.
func Sign[T constraints.Float](v T) T {
	if v < 0 {
		return -1
	}
	return 1
}

func Max3[T constraints.Ordered](a, b, c T) T {
	return max(a, max(b, c))
}

func Min3[T constraints.Ordered](a, b, c T) T {
	return min(a, min(b, c))
}

// Skew returns the cross product matrix of r, so that Skew(r)*v == r x v.
func Skew(r mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		0, r[2], -r[1],
		-r[2], 0, r[0],
		r[1], -r[0], 0,
	}
}

// Noz normalizes v, or returns the zero vector when v is too short.
func Noz(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-12 {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}

// Tangent returns a unit vector perpendicular to the unit vector n.
func Tangent(n mgl64.Vec3) mgl64.Vec3 {
	if math.Abs(n[0]) >= 0.57735 {
		return mgl64.Vec3{n[1], -n[0], 0}.Normalize()
	}
	return mgl64.Vec3{0, n[2], -n[1]}.Normalize()
}

// TangentBasis returns two unit vectors forming an orthonormal basis with n.
func TangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	t := Tangent(n)
	return t, n.Cross(t)
}

func QuatToMat3(q mgl64.Quat) mgl64.Mat3 {
	return q.Mat4().Mat3()
}

// RotateFromTo returns the shortest rotation taking direction from onto to.
func RotateFromTo(from, to mgl64.Vec3) mgl64.Quat {
	return mgl64.QuatBetweenVectors(from.Normalize(), to.Normalize())
}

// IsIdentity reports whether q represents no rotation.
func IsIdentity(q mgl64.Quat) bool {
	return math.Abs(math.Abs(q.W)-1) < 1e-9 && q.V.LenSqr() < 1e-18
}

// Nlerp interpolates two rotations along the shortest path and renormalizes.
func Nlerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return a.Scale(1 - t).Add(b.Scale(t)).Normalize()
}

// AxisAngle returns the rotation axis and the angle in [0, pi] of q.
func AxisAngle(q mgl64.Quat) (mgl64.Vec3, float64) {
	if q.W < 0 {
		q = q.Scale(-1)
	}
	s := q.V.Len()
	if s < 1e-12 {
		return mgl64.Vec3{1, 0, 0}, 0
	}
	return q.V.Mul(1 / s), 2 * math.Atan2(s, q.W)
}
