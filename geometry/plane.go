package geometry

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Plane is the set of points p with Normal·p + D = 0.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

func PlaneFromPointNormal(point, normal mgl64.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// PlaneFromPoints builds the plane through a, b and c, facing (b-a) x (c-a).
func PlaneFromPoints(a, b, c mgl64.Vec3) Plane {
	return PlaneFromPointNormal(a, b.Sub(a).Cross(c.Sub(a)))
}

// SignedDistance is positive on the side the normal points to.
func (p Plane) SignedDistance(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

func (p Plane) Project(point mgl64.Vec3) mgl64.Vec3 {
	return point.Sub(p.Normal.Mul(p.SignedDistance(point)))
}
