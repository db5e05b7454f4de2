package narrowphase

import (
	"math"

	"github.com/akmonengine/impulse/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// parallelThreshold is the cosine above which two directions are treated as parallel.
const parallelThreshold = 0.99

var defaultNormal = mgl64.Vec3{0, 1, 0}

func sphereSphere(a, b geometry.Sphere, m *manifold) bool {
	n := b.Center.Sub(a.Center)
	sqDistance := n.LenSqr()
	radiusSum := a.Radius + b.Radius
	if sqDistance > radiusSum*radiusSum {
		return false
	}

	distance := math.Sqrt(sqDistance)
	if distance > geometry.Epsilon {
		n = n.Mul(1 / distance)
	} else {
		distance = 0
		n = defaultNormal
	}

	surfaceA := a.Center.Add(n.Mul(a.Radius))
	surfaceB := b.Center.Sub(n.Mul(b.Radius))
	m.setSingle(n, surfaceA.Add(surfaceB).Mul(0.5), radiusSum-distance)
	return true
}

func sphereCapsule(s geometry.Sphere, c geometry.Capsule, m *manifold) bool {
	p := geometry.ClosestPointOnSegment(s.Center, c.PositionA, c.PositionB)
	return sphereSphere(s, geometry.Sphere{Center: p, Radius: c.Radius}, m)
}

func sphereAABB(s geometry.Sphere, box geometry.AABB, m *manifold) bool {
	p := geometry.ClosestPointOnAABB(s.Center, box)
	n := p.Sub(s.Center)

	sqDistance := n.LenSqr()
	if sqDistance > s.Radius*s.Radius {
		return false
	}

	distance := math.Sqrt(sqDistance)
	if distance > geometry.Epsilon {
		n = n.Mul(1 / distance)
	} else {
		// center inside the box
		distance = 0
		n = defaultNormal
	}

	point := p.Add(s.Center).Add(n.Mul(s.Radius)).Mul(0.5)
	m.setSingle(n, point, s.Radius-distance)
	return true
}

// sphereOBB runs the AABB test in the frame of the box.
func sphereOBB(s geometry.Sphere, box geometry.OBB, m *manifold) bool {
	local := geometry.Sphere{Center: box.ToLocal(s.Center), Radius: s.Radius}
	if !sphereAABB(local, box.LocalAABB(), m) {
		return false
	}
	m.toWorld(box)
	return true
}

// toWorld moves a manifold computed in the frame of box back to world space.
func (m *manifold) toWorld(box geometry.OBB) {
	m.normal = box.Rotation.Rotate(m.normal)
	for i := 0; i < m.count; i++ {
		m.points[i].point = box.ToWorld(m.points[i].point)
	}
}

func capsuleCapsule(a, b geometry.Capsule, m *manifold) bool {
	axisA := a.PositionB.Sub(a.PositionA)
	axisB := b.PositionB.Sub(b.PositionA)
	lengthA := axisA.Len()
	lengthB := axisB.Len()

	if lengthA > geometry.Epsilon && lengthB > geometry.Epsilon {
		axisA = axisA.Mul(1 / lengthA)
		axisB = axisB.Mul(1 / lengthB)

		if cos := axisA.Dot(axisB); math.Abs(cos) > parallelThreshold {
			return parallelCapsules(a, b, axisA, lengthA, cos < 0, m)
		}
	}

	closest := geometry.ClosestPointsSegmentSegment(a.PositionA, a.PositionB, b.PositionA, b.PositionB)
	return sphereSphere(
		geometry.Sphere{Center: closest.C1, Radius: a.Radius},
		geometry.Sphere{Center: closest.C2, Radius: b.Radius},
		m,
	)
}

// parallelCapsules projects b onto the axis of a. Overlapping intervals give a
// contact at each end of the overlap; disjoint intervals fall back to the two
// nearest end caps.
func parallelCapsules(a, b geometry.Capsule, axis mgl64.Vec3, length float64, opposite bool, m *manifold) bool {
	startB, endB := b.PositionA, b.PositionB
	if opposite {
		startB, endB = endB, startB
	}

	b0 := axis.Dot(startB.Sub(a.PositionA))
	b1 := axis.Dot(endB.Sub(a.PositionA))

	left := math.Max(0, b0)
	right := math.Min(length, b1)

	if right < left {
		if b1 < 0 {
			return sphereSphere(geometry.Sphere{Center: a.PositionA, Radius: a.Radius}, geometry.Sphere{Center: endB, Radius: b.Radius}, m)
		}
		return sphereSphere(geometry.Sphere{Center: a.PositionB, Radius: a.Radius}, geometry.Sphere{Center: startB, Radius: b.Radius}, m)
	}

	contactA0 := a.PositionA.Add(axis.Mul(left))
	contactA1 := a.PositionA.Add(axis.Mul(right))
	contactB0 := geometry.ClosestPointOnSegment(contactA0, startB, endB)
	contactB1 := contactB0.Add(axis.Mul(right - left))

	n := contactB0.Sub(contactA0)
	distance := n.Len()
	if distance < geometry.Epsilon {
		distance = 0
		n = defaultNormal
	} else {
		n = n.Mul(1 / distance)
	}

	penetration := a.Radius + b.Radius - distance
	if penetration < 0 {
		return false
	}

	// midpoints between the two surfaces
	offset := n.Mul(0.5 * (a.Radius - b.Radius))
	m.normal = n
	m.count = 0
	m.add(contactA0.Add(contactB0).Mul(0.5).Add(offset), penetration)
	if right-left > geometry.Epsilon {
		m.add(contactA1.Add(contactB1).Mul(0.5).Add(offset), penetration)
	}
	return true
}
