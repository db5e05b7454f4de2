package geometry

import (
	"math"

	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// Ray is a half line. Intersection routines return the parameter t of the hit,
// so the hit point is Origin + t*Direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// NewRay builds a ray with a normalized direction.
func NewRay(origin, direction mgl64.Vec3) Ray {
	return Ray{Origin: origin, Direction: mathutil.Noz(direction)}
}

func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// toLocal expresses the ray in a frame with the given origin and rotation.
func (r Ray) toLocal(position mgl64.Vec3, rotation mgl64.Quat) Ray {
	inv := rotation.Conjugate()
	return Ray{Origin: inv.Rotate(r.Origin.Sub(position)), Direction: inv.Rotate(r.Direction)}
}

// IntersectPlane misses planes parallel to the ray or behind its origin.
func (r Ray) IntersectPlane(plane Plane) (float64, bool) {
	nDotD := r.Direction.Dot(plane.Normal)
	if math.Abs(nDotD) < Epsilon {
		return 0, false
	}
	t := -(r.Origin.Dot(plane.Normal) + plane.D) / nDotD
	return t, t >= 0
}

// IntersectAABB uses the slab test. A ray starting inside the box hits at t = 0.
func (r Ray) IntersectAABB(box AABB) (float64, bool) {
	tMin := -math.MaxFloat64
	tMax := math.MaxFloat64

	for i := 0; i < 3; i++ {
		// A zero direction component yields ±Inf, which the min/max below handle.
		inv := 1 / r.Direction[i]
		t1 := (box.Min[i] - r.Origin[i]) * inv
		t2 := (box.Max[i] - r.Origin[i]) * inv
		if math.IsNaN(t1) || math.IsNaN(t2) {
			// origin on the slab boundary with a parallel ray
			if r.Origin[i] < box.Min[i] || r.Origin[i] > box.Max[i] {
				return 0, false
			}
			continue
		}
		tMin = math.Max(tMin, math.Min(t1, t2))
		tMax = math.Min(tMax, math.Max(t1, t2))
	}

	if tMax < tMin || tMax <= 0 {
		return 0, false
	}
	return math.Max(tMin, 0), true
}

func (r Ray) IntersectOBB(box OBB) (float64, bool) {
	return r.toLocal(box.Center, box.Rotation).IntersectAABB(box.LocalAABB())
}

// IntersectTriangle returns the hit parameter and whether the triangle faces
// the ray (counter-clockwise winding seen from the origin).
func (r Ray) IntersectTriangle(a, b, c mgl64.Vec3) (t float64, frontFacing bool, ok bool) {
	normal := mathutil.Noz(b.Sub(a).Cross(c.Sub(a)))
	nDotR := r.Direction.Dot(normal)
	if math.Abs(nDotR) <= Epsilon {
		return 0, false, false
	}

	t = -(r.Origin.Dot(normal) - normal.Dot(a)) / nDotR
	frontFacing = nDotR < 0
	if t < 0 {
		return t, frontFacing, false
	}
	return t, frontFacing, PointInTriangle(r.At(t), a, b, c)
}

// IntersectSphere returns the first hit, or 0 when the origin is inside.
func (r Ray) IntersectSphere(sphere Sphere) (float64, bool) {
	m := r.Origin.Sub(sphere.Center)
	a := r.Direction.Dot(r.Direction)
	if a < Epsilon*Epsilon {
		return 0, false
	}
	b := m.Dot(r.Direction)
	c := m.Dot(m) - sphere.Radius*sphere.Radius

	if c > 0 && b > 0 {
		return 0, false
	}

	discr := b*b - a*c
	if discr < 0 {
		return 0, false
	}

	t := (-b - math.Sqrt(discr)) / a
	return math.Max(t, 0), true
}

// IntersectDisk hits a disk of the given radius centered on center and facing normal.
func (r Ray) IntersectDisk(center, normal mgl64.Vec3, radius float64) (float64, bool) {
	t, ok := r.IntersectPlane(PlaneFromPointNormal(center, normal))
	if !ok {
		return 0, false
	}
	return t, r.At(t).Sub(center).Len() <= radius
}

// IntersectRectangle hits a rectangle spanned by unit tangent and bitangent
// with the given half extents.
func (r Ray) IntersectRectangle(center, tangent, bitangent mgl64.Vec3, radius mgl64.Vec2) (float64, bool) {
	normal := tangent.Cross(bitangent)
	t, ok := r.IntersectPlane(PlaneFromPointNormal(center, normal))
	if !ok {
		return 0, false
	}

	offset := r.At(t).Sub(center)
	return t, math.Abs(offset.Dot(tangent)) <= radius[0] && math.Abs(offset.Dot(bitangent)) <= radius[1]
}

// IntersectCylinder works in a frame where the cylinder axis is +Y starting at
// the origin, and returns the nearest positive hit of the side or the caps.
func (r Ray) IntersectCylinder(cylinder Cylinder) (float64, bool) {
	axis := cylinder.PositionB.Sub(cylinder.PositionA)
	height := axis.Len()
	if height < Epsilon {
		return 0, false
	}

	q := mathutil.RotateFromTo(axis, mgl64.Vec3{0, 1, 0})
	local := Ray{Origin: q.Rotate(r.Origin.Sub(cylinder.PositionA)), Direction: q.Rotate(r.Direction)}
	o, d := local.Origin, local.Direction

	best := math.MaxFloat64
	hit := false

	a := d[0]*d[0] + d[2]*d[2]
	if a > Epsilon {
		b := d[0]*o[0] + d[2]*o[2]
		c := o[0]*o[0] + o[2]*o[2] - cylinder.Radius*cylinder.Radius

		if delta := b*b - a*c; delta >= 0 {
			t := (-b - math.Sqrt(delta)) / a
			if t > Epsilon {
				if y := o[1] + t*d[1]; y >= -Epsilon && y <= height+Epsilon {
					best, hit = t, true
				}
			}
		}
	}

	if t, ok := local.IntersectDisk(mgl64.Vec3{0, height, 0}, mgl64.Vec3{0, 1, 0}, cylinder.Radius); ok && t > Epsilon && t < best {
		best, hit = t, true
	}
	if t, ok := local.IntersectDisk(mgl64.Vec3{}, mgl64.Vec3{0, -1, 0}, cylinder.Radius); ok && t > Epsilon && t < best {
		best, hit = t, true
	}

	return best, hit
}

// IntersectCapsule is the nearest hit among the inner cylinder and both end spheres.
func (r Ray) IntersectCapsule(capsule Capsule) (float64, bool) {
	best := math.MaxFloat64
	hit := false

	if t, ok := r.IntersectCylinder(Cylinder{PositionA: capsule.PositionA, PositionB: capsule.PositionB, Radius: capsule.Radius}); ok {
		best, hit = t, true
	}
	if t, ok := r.IntersectSphere(Sphere{Center: capsule.PositionA, Radius: capsule.Radius}); ok {
		best, hit = math.Min(best, t), true
	}
	if t, ok := r.IntersectSphere(Sphere{Center: capsule.PositionB, Radius: capsule.Radius}); ok {
		best, hit = math.Min(best, t), true
	}
	return best, hit
}

// Torus is only used for ray queries, it is not a collision shape.
type Torus struct {
	Position    mgl64.Vec3
	UpAxis      mgl64.Vec3
	MajorRadius float64
	TubeRadius  float64
}

// IntersectTorus solves the quartic of the ray against the torus surface in a
// frame where the torus axis is +Y, and keeps the smallest positive root.
func (r Ray) IntersectTorus(torus Torus) (float64, bool) {
	q := mathutil.RotateFromTo(torus.UpAxis, mgl64.Vec3{0, 1, 0})
	o := q.Rotate(r.Origin.Sub(torus.Position))
	d := q.Rotate(r.Direction)

	sumDSqrd := d.Dot(d)
	e := o.Dot(o) - torus.MajorRadius*torus.MajorRadius - torus.TubeRadius*torus.TubeRadius
	f := o.Dot(d)
	fourASqrd := 4 * torus.MajorRadius * torus.MajorRadius

	roots, n := SolveQuartic(
		e*e-fourASqrd*(torus.TubeRadius*torus.TubeRadius-o[1]*o[1]),
		4*f*e+2*fourASqrd*o[1]*d[1],
		2*sumDSqrd*e+4*f*f+fourASqrd*d[1]*d[1],
		4*sumDSqrd*f,
		sumDSqrd*sumDSqrd,
	)

	best := math.MaxFloat64
	hit := false
	for _, t := range roots[:n] {
		if t > Epsilon && t < best {
			best, hit = t, true
		}
	}
	return best, hit
}

// IntersectHull tests every face in the hull frame and keeps the nearest front-facing hit.
func (r Ray) IntersectHull(hull Hull) (float64, bool) {
	local := r.toLocal(hull.Position, hull.Rotation)
	vertices := hull.Geometry.Vertices

	best := math.MaxFloat64
	hit := false
	for _, face := range hull.Geometry.Faces {
		t, frontFacing, ok := local.IntersectTriangle(vertices[face.A], vertices[face.B], vertices[face.C])
		if ok && frontFacing && t < best {
			best, hit = t, true
		}
	}
	return best, hit
}

// Intersect dispatches on the concrete shape.
func (r Ray) Intersect(shape Shape) (float64, bool) {
	switch s := shape.(type) {
	case Sphere:
		return r.IntersectSphere(s)
	case Capsule:
		return r.IntersectCapsule(s)
	case Cylinder:
		return r.IntersectCylinder(s)
	case AABB:
		return r.IntersectAABB(s)
	case OBB:
		return r.IntersectOBB(s)
	case Hull:
		return r.IntersectHull(s)
	}
	return 0, false
}
