package narrowphase

import (
	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// maxClipVertices bounds a clipped polygon: a quad clipped by four planes gains at most one vertex per plane.
const maxClipVertices = 16

type contactPoint struct {
	point       mgl64.Vec3
	penetration float64
}

func lerpContact(a, b contactPoint, t float64) contactPoint {
	return contactPoint{
		point:       a.point.Add(b.point.Sub(a.point).Mul(t)),
		penetration: a.penetration + (b.penetration-a.penetration)*t,
	}
}

// manifold is the set of contact points of one collider pair, sharing one normal from A to B.
type manifold struct {
	normal mgl64.Vec3
	points [MaxContactsPerManifold]contactPoint
	count  int

	// scratch holds two clipping buffers of maxClipVertices each. It is nil when
	// the arena could not provide them, and face clipping then keeps a single point.
	scratch []contactPoint
	epaErr  error
}

func (m *manifold) reset() {
	m.normal = mgl64.Vec3{}
	m.count = 0
	m.epaErr = nil
}

func (m *manifold) setSingle(normal, point mgl64.Vec3, penetration float64) {
	m.normal = normal
	m.points[0] = contactPoint{point: point, penetration: penetration}
	m.count = 1
}

func (m *manifold) add(point mgl64.Vec3, penetration float64) {
	if m.count < MaxContactsPerManifold {
		m.points[m.count] = contactPoint{point: point, penetration: penetration}
		m.count++
	}
}

func (m *manifold) clipBuffers() ([]contactPoint, []contactPoint, bool) {
	if len(m.scratch) < 2*maxClipVertices {
		return nil, nil, false
	}
	return m.scratch[:maxClipVertices:maxClipVertices], m.scratch[maxClipVertices : 2*maxClipVertices : 2*maxClipVertices], true
}

// signedArea is the area of triangle (q, a, b) as seen along normal.
func signedArea(q, a, b, normal mgl64.Vec3) float64 {
	return 0.5 * a.Sub(q).Cross(b.Sub(q)).Dot(normal)
}

// reduce keeps at most four points of a contact polygon, choosing the ones that
// span the largest area:
//  1. the extreme point along a fixed tangent
//  2. the point farthest from the first
//  3. the point maximizing the triangle area with the first two
//  4. the point farthest outside that triangle
func (m *manifold) reduce(points []contactPoint) {
	if len(points) <= MaxContactsPerManifold {
		m.count = copy(m.points[:], points)
		return
	}

	normal := m.normal
	searchDir := mathutil.Tangent(normal)

	first := 0
	best := searchDir.Dot(points[0].point)
	for i := 1; i < len(points); i++ {
		if d := searchDir.Dot(points[i].point); d > best {
			best = d
			first = i
		}
	}

	second := first
	best = 0
	for i := range points {
		if d := points[i].point.Sub(points[first].point).LenSqr(); d > best {
			best = d
			second = i
		}
	}

	third := first
	best = 0
	signed := 0.0
	for i := range points {
		area := signedArea(points[i].point, points[first].point, points[second].point, normal)
		if abs := max(area, -area); abs > best {
			best = abs
			signed = area
			third = i
		}
	}

	if signed < 0 {
		first, second = second, first
	}

	m.points[0] = points[first]
	m.points[1] = points[second]
	m.count = 2
	if third == first || third == second {
		return
	}
	m.points[2] = points[third]
	m.count = 3

	// the triangle is counter-clockwise around normal: a point outside has a negative area against one edge
	a, b, c := points[first].point, points[second].point, points[third].point
	fourth := -1
	best = 0
	for i := range points {
		q := points[i].point
		outside := -mathutil.Min3(signedArea(q, a, b, normal), signedArea(q, b, c, normal), signedArea(q, c, a, normal))
		if outside > best {
			best = outside
			fourth = i
		}
	}

	if fourth >= 0 {
		m.points[3] = points[fourth]
		m.count = 4
	}
}

// clipPolygon runs Sutherland-Hodgman clipping of polygon against planes whose
// normals point inside. Penetrations are interpolated along clipped edges.
// in and out are ping-pong buffers; the result aliases one of them.
func clipPolygon(polygon []contactPoint, planes []geometry.Plane, in, out []contactPoint) []contactPoint {
	current := in[:copy(in, polygon)]

	for _, plane := range planes {
		if len(current) == 0 {
			break
		}

		next := out[:0]
		start := current[len(current)-1]
		startDist := plane.SignedDistance(start.point)

		for _, end := range current {
			endDist := plane.SignedDistance(end.point)
			startInside := startDist >= 0
			endInside := endDist >= 0

			switch {
			case startInside && endInside:
				next = appendClipped(next, end)
			case startInside:
				if startDist > 0 {
					next = appendClipped(next, lerpContact(start, end, startDist/(startDist-endDist)))
				}
			case endInside:
				if endDist > 0 {
					next = appendClipped(next, lerpContact(start, end, startDist/(startDist-endDist)))
				}
				next = appendClipped(next, end)
			}

			start, startDist = end, endDist
		}

		in, out = out, in
		current = next
	}

	return current
}

func appendClipped(points []contactPoint, p contactPoint) []contactPoint {
	if len(points) == cap(points) {
		return points
	}
	return append(points, p)
}

// clipSegment clips the segment [a, b] against planes whose normals point inside.
func clipSegment(a, b contactPoint, planes []geometry.Plane) (contactPoint, contactPoint, bool) {
	for _, plane := range planes {
		da := plane.SignedDistance(a.point)
		db := plane.SignedDistance(b.point)

		switch {
		case da < 0 && db < 0:
			return a, b, false
		case da < 0:
			a = lerpContact(a, b, da/(da-db))
		case db < 0:
			b = lerpContact(a, b, da/(da-db))
		}
	}
	return a, b, true
}

// keepPenetrating drops the points above the reference plane and moves the
// others onto it, along the reference normal.
func keepPenetrating(points []contactPoint, referenceNormal mgl64.Vec3) []contactPoint {
	kept := points[:0]
	for _, p := range points {
		if p.penetration < 0 {
			continue
		}
		p.point = p.point.Add(referenceNormal.Mul(p.penetration))
		kept = append(kept, p)
	}
	return kept
}
