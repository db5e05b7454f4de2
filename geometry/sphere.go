package geometry

import (
	"math"

	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// Sphere represents a spherical collision shape
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

func (s Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

func (s Sphere) Centroid() mgl64.Vec3 {
	return s.Center
}

// Volume of sphere = (4/3) * π * r³
func (s Sphere) Volume() float64 {
	return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius
}

func (s Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	return s.Center.Add(supportDirection(direction).Mul(s.Radius))
}

func (s Sphere) Bounds() AABB {
	return AABBFromCenterRadius(s.Center, mgl64.Vec3{s.Radius, s.Radius, s.Radius})
}

func (s Sphere) Transformed(position mgl64.Vec3, rotation mgl64.Quat) Shape {
	return Sphere{Center: rotation.Rotate(s.Center).Add(position), Radius: s.Radius}
}

func (s Sphere) MassProperties(density float64) MassProperties {
	mass := s.Volume() * density
	return MassProperties{
		Mass:    mass,
		COG:     s.Center,
		Inertia: mgl64.Ident3().Mul(2.0 / 5.0 * mass * s.Radius * s.Radius),
	}
}

// Overlaps reports whether two spheres touch or intersect.
func (s Sphere) Overlaps(other Sphere) bool {
	d := s.Center.Sub(other.Center)
	r := s.Radius + other.Radius
	return d.Dot(d) <= r*r
}

// SphereAABBOverlap reports whether a sphere touches or intersects a box.
func SphereAABBOverlap(s Sphere, a AABB) bool {
	p := ClosestPointOnAABB(s.Center, a)
	return p.Sub(s.Center).LenSqr() <= s.Radius*s.Radius
}

// SphereCapsuleOverlap reports whether a sphere touches or intersects a capsule.
func SphereCapsuleOverlap(s Sphere, c Capsule) bool {
	p := ClosestPointOnSegment(s.Center, c.PositionA, c.PositionB)
	return s.Overlaps(Sphere{Center: p, Radius: c.Radius})
}

// Capsule is a swept sphere between two points.
type Capsule struct {
	PositionA mgl64.Vec3
	PositionB mgl64.Vec3
	Radius    float64
}

func (c Capsule) Type() ShapeType {
	return ShapeTypeCapsule
}

func (c Capsule) Centroid() mgl64.Vec3 {
	return c.PositionA.Add(c.PositionB).Mul(0.5)
}

func (c Capsule) Volume() float64 {
	h := c.PositionB.Sub(c.PositionA).Len()
	return math.Pi*c.Radius*c.Radius*h + 4.0/3.0*math.Pi*c.Radius*c.Radius*c.Radius
}

func (c Capsule) Support(direction mgl64.Vec3) mgl64.Vec3 {
	dir := supportDirection(direction)
	p := c.PositionA
	if dir.Dot(c.PositionB) > dir.Dot(c.PositionA) {
		p = c.PositionB
	}
	return p.Add(dir.Mul(c.Radius))
}

func (c Capsule) Bounds() AABB {
	r := mgl64.Vec3{c.Radius, c.Radius, c.Radius}
	return NegativeInfinity().
		Grow(c.PositionA.Add(r)).Grow(c.PositionA.Sub(r)).
		Grow(c.PositionB.Add(r)).Grow(c.PositionB.Sub(r))
}

func (c Capsule) Transformed(position mgl64.Vec3, rotation mgl64.Quat) Shape {
	return Capsule{
		PositionA: rotation.Rotate(c.PositionA).Add(position),
		PositionB: rotation.Rotate(c.PositionB).Add(position),
		Radius:    c.Radius,
	}
}

// MassProperties combines a cylinder and two hemispheres built along Y, then
// rotated onto the capsule axis.
func (c Capsule) MassProperties(density float64) MassProperties {
	axis, height := upwardAxis(c.PositionA, c.PositionB)

	sqRadius := c.Radius * c.Radius
	sqRadiusPI := math.Pi * sqRadius

	cylinderMass := density * sqRadiusPI * height
	hemisphereMass := density * 2.0 / 3.0 * sqRadiusPI * c.Radius

	iyy := sqRadius * cylinderMass * 0.5
	ixx := iyy*0.5 + cylinderMass*height*height/12

	hemi := hemisphereMass * 2 * sqRadius / 5
	iyy += hemi * 2
	offset := height * 0.5
	hemiOffset := hemi + hemisphereMass*(offset*offset+3.0/8.0*height*c.Radius)
	ixx += hemiOffset * 2

	inertia := mgl64.Diag3(mgl64.Vec3{ixx, iyy, ixx})
	rotation := mathutil.QuatToMat3(mathutil.RotateFromTo(mgl64.Vec3{0, 1, 0}, axis))

	return MassProperties{
		Mass:    c.Volume() * density,
		COG:     c.Centroid(),
		Inertia: rotateInertia(rotation, inertia),
	}
}

// Cylinder is a finite cylinder between two cap centers.
type Cylinder struct {
	PositionA mgl64.Vec3
	PositionB mgl64.Vec3
	Radius    float64
}

func (c Cylinder) Type() ShapeType {
	return ShapeTypeCylinder
}

func (c Cylinder) Centroid() mgl64.Vec3 {
	return c.PositionA.Add(c.PositionB).Mul(0.5)
}

func (c Cylinder) Volume() float64 {
	return math.Pi * c.Radius * c.Radius * c.PositionB.Sub(c.PositionA).Len()
}

// Support picks the cap along the axis, then the rim point along the direction
// projected onto the cap plane.
func (c Cylinder) Support(direction mgl64.Vec3) mgl64.Vec3 {
	dir := supportDirection(direction)
	axis := mathutil.Noz(c.PositionB.Sub(c.PositionA))

	p := c.PositionA
	if dir.Dot(axis) > 0 {
		p = c.PositionB
	}

	radial := dir.Sub(axis.Mul(dir.Dot(axis)))
	if l := radial.Len(); l > 1e-12 {
		p = p.Add(radial.Mul(c.Radius / l))
	}
	return p
}

// Bounds uses the exact extent of the cap disks: r * sqrt(1 - a_i²/|a|²) per axis.
func (c Cylinder) Bounds() AABB {
	a := c.PositionB.Sub(c.PositionA)
	aa := a.Dot(a)
	if aa < 1e-12 {
		return AABBFromCenterRadius(c.PositionA, mgl64.Vec3{c.Radius, c.Radius, c.Radius})
	}

	var e mgl64.Vec3
	for i := 0; i < 3; i++ {
		e[i] = c.Radius * math.Sqrt(math.Max(0, 1-a[i]*a[i]/aa))
	}

	return AABB{
		Min: mgl64.Vec3{
			math.Min(c.PositionA[0]-e[0], c.PositionB[0]-e[0]),
			math.Min(c.PositionA[1]-e[1], c.PositionB[1]-e[1]),
			math.Min(c.PositionA[2]-e[2], c.PositionB[2]-e[2]),
		},
		Max: mgl64.Vec3{
			math.Max(c.PositionA[0]+e[0], c.PositionB[0]+e[0]),
			math.Max(c.PositionA[1]+e[1], c.PositionB[1]+e[1]),
			math.Max(c.PositionA[2]+e[2], c.PositionB[2]+e[2]),
		},
	}
}

func (c Cylinder) Transformed(position mgl64.Vec3, rotation mgl64.Quat) Shape {
	return Cylinder{
		PositionA: rotation.Rotate(c.PositionA).Add(position),
		PositionB: rotation.Rotate(c.PositionB).Add(position),
		Radius:    c.Radius,
	}
}

func (c Cylinder) MassProperties(density float64) MassProperties {
	axis, height := upwardAxis(c.PositionA, c.PositionB)
	mass := c.Volume() * density

	sqRadius := c.Radius * c.Radius
	iyy := sqRadius * mass * 0.5
	ixx := mass * (3*sqRadius + height*height) / 12

	inertia := mgl64.Diag3(mgl64.Vec3{ixx, iyy, ixx})
	rotation := mathutil.QuatToMat3(mathutil.RotateFromTo(mgl64.Vec3{0, 1, 0}, axis))

	return MassProperties{
		Mass:    mass,
		COG:     c.Centroid(),
		Inertia: rotateInertia(rotation, inertia),
	}
}

// upwardAxis returns the unit axis between a and b flipped to point up, and its length.
func upwardAxis(a, b mgl64.Vec3) (mgl64.Vec3, float64) {
	axis := a.Sub(b)
	if axis[1] < 0 {
		axis = axis.Mul(-1)
	}
	height := axis.Len()
	if height < 1e-12 {
		return mgl64.Vec3{0, 1, 0}, 0
	}
	return axis.Mul(1 / height), height
}
