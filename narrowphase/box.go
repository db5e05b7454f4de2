package narrowphase

import (
	"math"

	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// aabbAABB picks the axis of minimum overlap and places four points at the
// corners of the overlapping face region, halfway through the penetration.
func aabbAABB(a, b geometry.AABB, m *manifold) bool {
	centerA, centerB := a.Centroid(), b.Centroid()
	radiusA, radiusB := a.Radius(), b.Radius()
	d := centerB.Sub(centerA)

	axis := 0
	penetration := math.MaxFloat64
	for i := 0; i < 3; i++ {
		overlap := radiusA[i] + radiusB[i] - math.Abs(d[i])
		if overlap < 0 {
			return false
		}
		if overlap < penetration {
			penetration = overlap
			axis = i
		}
	}

	s := mathutil.Sign(d[axis])
	var n mgl64.Vec3
	n[axis] = s

	depth := centerA[axis] + s*(radiusA[axis]-penetration*0.5)

	axis0 := (axis + 1) % 3
	axis1 := (axis + 2) % 3
	min0, max0 := math.Max(a.Min[axis0], b.Min[axis0]), math.Min(a.Max[axis0], b.Max[axis0])
	min1, max1 := math.Max(a.Min[axis1], b.Min[axis1]), math.Min(a.Max[axis1], b.Max[axis1])

	m.normal = n
	m.count = 0
	for _, corner := range [4][2]float64{{min0, min1}, {max0, min1}, {max0, max1}, {min0, max1}} {
		var p mgl64.Vec3
		p[axis] = depth
		p[axis0] = corner[0]
		p[axis1] = corner[1]
		m.add(p, penetration)
	}
	return true
}

func asOBB(box geometry.AABB) geometry.OBB {
	return geometry.OBB{Center: box.Centroid(), Radius: box.Radius(), Rotation: mgl64.QuatIdent()}
}

func aabbOBB(a geometry.AABB, b geometry.OBB, m *manifold) bool {
	return obbOBB(asOBB(a), b, m)
}

func boxAxes(rotation mgl64.Quat) [3]mgl64.Vec3 {
	return [3]mgl64.Vec3{
		rotation.Rotate(mgl64.Vec3{1, 0, 0}),
		rotation.Rotate(mgl64.Vec3{0, 1, 0}),
		rotation.Rotate(mgl64.Vec3{0, 0, 1}),
	}
}

type satResult struct {
	// normal is in world space and points from a to b.
	normal      mgl64.Vec3
	penetration float64
	// faceB is set when the axis of minimum penetration is a face normal of b.
	faceB bool
	edge  bool
}

// satOBB tests the 15 separating axes of two boxes: three face normals of
// each, then the nine edge cross products. Edge axes are skipped when any
// pair of box axes is near parallel, since their cross product degenerates.
func satOBB(a, b geometry.OBB) (satResult, bool) {
	axesA := boxAxes(a.Rotation)
	axesB := boxAxes(b.Rotation)

	// r[i][j] expresses b's axis j in a's frame
	var r, absR [3][3]float64
	parallel := false
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = axesA[i].Dot(axesB[j])
			absR[i][j] = math.Abs(r[i][j]) + geometry.Epsilon
			if absR[i][j] >= parallelThreshold {
				parallel = true
			}
		}
	}

	tw := b.Center.Sub(a.Center)
	t := mgl64.Vec3{tw.Dot(axesA[0]), tw.Dot(axesA[1]), tw.Dot(axesA[2])}

	result := satResult{penetration: math.MaxFloat64}

	for i := 0; i < 3; i++ {
		rb := b.Radius[0]*absR[i][0] + b.Radius[1]*absR[i][1] + b.Radius[2]*absR[i][2]
		penetration := a.Radius[i] + rb - math.Abs(t[i])
		if penetration < 0 {
			return satResult{}, false
		}
		if penetration < result.penetration {
			result = satResult{normal: axesA[i], penetration: penetration}
		}
	}

	for j := 0; j < 3; j++ {
		ra := a.Radius[0]*absR[0][j] + a.Radius[1]*absR[1][j] + a.Radius[2]*absR[2][j]
		d := t[0]*r[0][j] + t[1]*r[1][j] + t[2]*r[2][j]
		penetration := ra + b.Radius[j] - math.Abs(d)
		if penetration < 0 {
			return satResult{}, false
		}
		if penetration < result.penetration {
			result = satResult{normal: axesB[j], penetration: penetration, faceB: true}
		}
	}

	if !parallel {
		for i := 0; i < 3; i++ {
			i1, i2 := (i+1)%3, (i+2)%3
			for j := 0; j < 3; j++ {
				j1, j2 := (j+1)%3, (j+2)%3

				ra := a.Radius[i1]*absR[i2][j] + a.Radius[i2]*absR[i1][j]
				rb := b.Radius[j1]*absR[i][j2] + b.Radius[j2]*absR[i][j1]
				penetration := ra + rb - math.Abs(t[i2]*r[i1][j]-t[i1]*r[i2][j])
				if penetration < 0 {
					return satResult{}, false
				}

				// a's axis i crossed with b's axis j, in a's frame
				var axis mgl64.Vec3
				axis[i1] = -r[i2][j]
				axis[i2] = r[i1][j]
				l := axis.Len()
				if l < geometry.Epsilon {
					continue
				}

				penetration /= l
				if penetration < result.penetration {
					result = satResult{normal: a.Rotation.Rotate(axis.Mul(1 / l)), penetration: penetration, edge: true}
				}
			}
		}
	}

	if result.normal.Dot(tw) < 0 {
		result.normal = result.normal.Mul(-1)
	}
	return result, true
}

func obbOBB(a, b geometry.OBB, m *manifold) bool {
	sat, ok := satOBB(a, b)
	if !ok {
		return false
	}

	if sat.edge {
		edgeContact(a, b, sat, m)
		return true
	}
	return faceContact(a, b, sat, m)
}

// faceContact clips the incident face of one box against the side planes of the
// reference face of the other.
func faceContact(a, b geometry.OBB, sat satResult, m *manifold) bool {
	reference, incident := a, b
	referenceNormal := sat.normal
	if sat.faceB {
		reference, incident = b, a
		referenceNormal = sat.normal.Mul(-1)
	}

	referencePlane := geometry.PlaneFromPointNormal(reference.Support(referenceNormal), referenceNormal)
	polygon := incidentFace(incident, referenceNormal)
	for i := range polygon {
		polygon[i].penetration = -referencePlane.SignedDistance(polygon[i].point)
	}

	m.normal = sat.normal

	in, out, ok := m.clipBuffers()
	if !ok {
		// no scratch memory: keep the deepest incident vertex
		deepest := polygon[0]
		for _, p := range polygon[1:] {
			if p.penetration > deepest.penetration {
				deepest = p
			}
		}
		m.setSingle(sat.normal, deepest.point.Add(referenceNormal.Mul(deepest.penetration)), deepest.penetration)
		return true
	}

	planes := sidePlanes(reference, referenceNormal)
	clipped := keepPenetrating(clipPolygon(polygon[:], planes[:], in, out), referenceNormal)
	if len(clipped) == 0 {
		return false
	}

	m.reduce(clipped)
	return true
}

func maxAxis(v mgl64.Vec3) int {
	p := mgl64.Vec3{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])}
	if p[0] > p[1] {
		if p[0] > p[2] {
			return 0
		}
		return 2
	}
	if p[1] > p[2] {
		return 1
	}
	return 2
}

// sidePlanes returns the four planes bounding the face of box most aligned
// with normal, with normals pointing inside the face.
func sidePlanes(box geometry.OBB, normal mgl64.Vec3) [4]geometry.Plane {
	k := maxAxis(box.Rotation.Conjugate().Rotate(normal))
	axis0 := (k + 1) % 3
	axis1 := (k + 2) % 3

	var planes [4]geometry.Plane
	for i, side := range [4]struct {
		axis int
		sign float64
	}{{axis0, 1}, {axis1, 1}, {axis0, -1}, {axis1, -1}} {
		var local mgl64.Vec3
		local[side.axis] = side.sign
		point := box.Radius.Mul(-side.sign)
		planes[i] = geometry.PlaneFromPointNormal(box.ToWorld(point), box.Rotation.Rotate(local))
	}
	return planes
}

// incidentFace returns the face of box most opposed to normal, in world space.
func incidentFace(box geometry.OBB, normal mgl64.Vec3) [4]contactPoint {
	local := box.Rotation.Conjugate().Rotate(normal)
	k := maxAxis(local)
	axis0 := (k + 1) % 3
	axis1 := (k + 2) % 3

	d := box.Radius[k]
	if local[k] > 0 {
		d = -d
	}

	var face [4]contactPoint
	for i, corner := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
		var p mgl64.Vec3
		p[k] = d
		p[axis0] = corner[0] * box.Radius[axis0]
		p[axis1] = corner[1] * box.Radius[axis1]
		face[i].point = box.ToWorld(p)
	}
	return face
}

// incidentEdge returns the edge of box farthest along normal, in world space.
// It runs along the box axis least aligned with normal.
func incidentEdge(box geometry.OBB, normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	local := box.Rotation.Conjugate().Rotate(normal)

	edgeAxis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(local[i]) < math.Abs(local[edgeAxis]) {
			edgeAxis = i
		}
	}

	var p mgl64.Vec3
	for i := 0; i < 3; i++ {
		p[i] = mathutil.Sign(local[i]) * box.Radius[i]
	}
	q := p
	p[edgeAxis] = box.Radius[edgeAxis]
	q[edgeAxis] = -box.Radius[edgeAxis]

	return box.ToWorld(p), box.ToWorld(q)
}

func edgeContact(a, b geometry.OBB, sat satResult, m *manifold) {
	a0, a1 := incidentEdge(a, sat.normal)
	b0, b1 := incidentEdge(b, sat.normal.Mul(-1))

	closest := geometry.ClosestPointsSegmentSegment(a0, a1, b0, b1)
	m.setSingle(sat.normal, closest.C1.Add(closest.C2).Mul(0.5), sat.penetration)
}

func isAxisAligned(n mgl64.Vec3) bool {
	return math.Abs(n[0]) > parallelThreshold || math.Abs(n[1]) > parallelThreshold || math.Abs(n[2]) > parallelThreshold
}

// capsuleAABB runs GJK/EPA. When the capsule lies flat against a box face, its
// segment is clipped against the face to produce two contacts.
func capsuleAABB(c geometry.Capsule, box geometry.AABB, m *manifold) bool {
	if !gjkEPA(c, box, m) {
		return false
	}

	n := m.normal
	if !isAxisAligned(n) {
		return true
	}

	axis := mathutil.Noz(c.PositionB.Sub(c.PositionA))
	if axis.LenSqr() == 0 || math.Abs(n.Dot(axis)) >= 1-parallelThreshold {
		return true
	}

	boxNormal := n.Mul(-1)
	referencePlane := geometry.PlaneFromPointNormal(box.Support(boxNormal), boxNormal)

	pa := c.PositionA.Add(n.Mul(c.Radius))
	pb := c.PositionB.Add(n.Mul(c.Radius))
	start := contactPoint{point: pa, penetration: -referencePlane.SignedDistance(pa)}
	end := contactPoint{point: pb, penetration: -referencePlane.SignedDistance(pb)}

	planes := sidePlanes(asOBB(box), boxNormal)
	start, end, ok := clipSegment(start, end, planes[:])
	if !ok {
		return true
	}

	segment := [2]contactPoint{start, end}
	clipped := keepPenetrating(segment[:], boxNormal)
	if len(clipped) == 0 {
		return true
	}

	m.reduce(clipped)
	return true
}

// capsuleOBB runs the AABB test in the frame of the box.
func capsuleOBB(c geometry.Capsule, box geometry.OBB, m *manifold) bool {
	local := geometry.Capsule{
		PositionA: box.ToLocal(c.PositionA),
		PositionB: box.ToLocal(c.PositionB),
		Radius:    c.Radius,
	}
	if !capsuleAABB(local, box.LocalAABB(), m) {
		return false
	}
	m.toWorld(box)
	return true
}
