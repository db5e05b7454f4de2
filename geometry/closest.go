package geometry

import (
	"math"

	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// ClosestPointOnSegment returns the point of segment [a, b] closest to p.
func ClosestPointOnSegment(p, a, b mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	denom := ab.Dot(ab)
	if denom < Epsilon*Epsilon {
		return a
	}
	t := mathutil.Clamp01(p.Sub(a).Dot(ab) / denom)
	return a.Add(ab.Mul(t))
}

// ClosestPointOnAABB clamps p to the box.
func ClosestPointOnAABB(p mgl64.Vec3, box AABB) mgl64.Vec3 {
	return mgl64.Vec3{
		mathutil.Clamp(p[0], box.Min[0], box.Max[0]),
		mathutil.Clamp(p[1], box.Min[1], box.Max[1]),
		mathutil.Clamp(p[2], box.Min[2], box.Max[2]),
	}
}

// ClosestPointOnOBB clamps p to the box in its local frame.
func ClosestPointOnOBB(p mgl64.Vec3, box OBB) mgl64.Vec3 {
	local := ClosestPointOnAABB(box.ToLocal(p), box.LocalAABB())
	return box.ToWorld(local)
}

// ClosestPointOnTriangle returns the point of triangle abc closest to p,
// walking the Voronoi regions of the vertices, then the edges, then the face.
func ClosestPointOnTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

// Triangle is a single triangle, as produced by heightmap iteration.
type Triangle struct {
	A, B, C mgl64.Vec3
}

// Normal is the unit normal of the counter-clockwise winding, or zero when degenerate.
func (t Triangle) Normal() mgl64.Vec3 {
	return mathutil.Noz(t.B.Sub(t.A).Cross(t.C.Sub(t.A)))
}

func (t Triangle) ClosestPoint(p mgl64.Vec3) mgl64.Vec3 {
	return ClosestPointOnTriangle(p, t.A, t.B, t.C)
}

func (t Triangle) Bounds() AABB {
	return NegativeInfinity().Grow(t.A).Grow(t.B).Grow(t.C)
}

// PointInTriangle reports whether p, assumed on the plane of abc, lies inside the triangle.
// Points on an edge count as inside.
func PointInTriangle(p, a, b, c mgl64.Vec3) bool {
	n := b.Sub(a).Cross(c.Sub(a))
	if b.Sub(a).Cross(p.Sub(a)).Dot(n) < 0 {
		return false
	}
	if c.Sub(b).Cross(p.Sub(b)).Dot(n) < 0 {
		return false
	}
	return a.Sub(c).Cross(p.Sub(c)).Dot(n) >= 0
}

// Barycentric returns the barycentric coordinates (u, v, w) of p against abc,
// with p = u*a + v*b + w*c. ok is false for a degenerate triangle.
func Barycentric(p, a, b, c mgl64.Vec3) (u, v, w float64, ok bool) {
	v0 := b.Sub(a)
	v1 := c.Sub(a)
	v2 := p.Sub(a)

	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)
	d20 := v2.Dot(v0)
	d21 := v2.Dot(v1)

	denom := d00*d11 - d01*d01
	if math.Abs(denom) < 1e-12 {
		return 1, 0, 0, false
	}

	v = (d11*d20 - d01*d21) / denom
	w = (d00*d21 - d01*d20) / denom
	return 1 - v - w, v, w, true
}

// SegmentsResult holds the closest points between two segments.
// S and T are the parameters along each segment, C1 and C2 the points.
type SegmentsResult struct {
	S, T   float64
	C1, C2 mgl64.Vec3
	SqDist float64
}

// ClosestPointsSegmentSegment computes the closest points of segments [p1, q1] and [p2, q2].
func ClosestPointsSegmentSegment(p1, q1, p2, q2 mgl64.Vec3) SegmentsResult {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64

	switch {
	case a <= Epsilon && e <= Epsilon:
		// both segments degenerate into points
	case a <= Epsilon:
		t = mathutil.Clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= Epsilon {
			s = mathutil.Clamp01(-c / a)
			break
		}

		b := d1.Dot(d2)
		denom := a*e - b*b
		if denom != 0 {
			s = mathutil.Clamp01((b*f - c*e) / denom)
		}

		t = (b*s + f) / e
		if t < 0 {
			t = 0
			s = mathutil.Clamp01(-c / a)
		} else if t > 1 {
			t = 1
			s = mathutil.Clamp01((b - c) / a)
		}
	}

	c1 := p1.Add(d1.Mul(s))
	c2 := p2.Add(d2.Mul(t))
	return SegmentsResult{
		S:      s,
		T:      t,
		C1:     c1,
		C2:     c2,
		SqDist: c1.Sub(c2).LenSqr(),
	}
}
