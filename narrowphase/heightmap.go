package narrowphase

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/terrain"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	maxTerrainContacts = math.MaxUint8

	// duplicateDistance merges contacts found on neighboring triangles sharing an edge or a vertex.
	duplicateDistance = 1e-6
)

// HeightmapCollision collides the sphere and capsule colliders of rigid bodies
// with the heightmap. Contacts pair the collider's body with the dummy and
// their normal points into the terrain. aabbs is parallel to colliders.
func HeightmapCollision(hm *terrain.Heightmap, material actor.Material, colliders []actor.WorldCollider, aabbs []geometry.AABB, dummy int, a *arena.Arena, out *Output) Result {
	var result Result
	if hm == nil {
		return result
	}

	marker := a.Marker()
	defer a.Reset(marker)

	scratch := arena.Alloc[Contact](a, maxTerrainContacts)
	terrainBounds := hm.Bounds()

	for i := range colliders {
		collider := &colliders[i]
		if collider.ObjectType != actor.ObjectTypeRigidBody || !aabbs[i].Overlaps(terrainBounds) {
			continue
		}

		contacts := terrainContacts{points: scratch[:0]}
		switch shape := collider.Shape.(type) {
		case geometry.Sphere:
			hm.IterateTrianglesInVolume(aabbs[i], a, func(p0, p1, p2 mgl64.Vec3) {
				closest := geometry.ClosestPointOnTriangle(shape.Center, p0, p1, p2)
				contacts.add(shape.Center, closest, shape.Radius, p0, p1, p2)
			})
		case geometry.Capsule:
			hm.IterateTrianglesInVolume(aabbs[i], a, func(p0, p1, p2 mgl64.Vec3) {
				onSegment, onTriangle := closestSegmentTriangle(shape.PositionA, shape.PositionB, p0, p1, p2)
				contacts.add(onSegment, onTriangle, shape.Radius, p0, p1, p2)
			})
		default:
			continue
		}

		if len(contacts.points) == 0 {
			continue
		}

		bodies := BodyPair{A: bodyIndex(collider, dummy), B: uint16(dummy)}
		out.addTerrainCollision(i, bodies, CombineMaterials(collider.Material, material), contacts.points, &result)
	}

	return result
}

// terrainContacts collects the contacts of one collider in arena scratch memory.
type terrainContacts struct {
	points []Contact
}

// add records a contact between a sphere of the given radius centered on
// center and the triangle point closest to it.
func (c *terrainContacts) add(center, closest mgl64.Vec3, radius float64, p0, p1, p2 mgl64.Vec3) {
	n := closest.Sub(center)
	sqDistance := n.LenSqr()
	if sqDistance > radius*radius {
		return
	}

	distance := math.Sqrt(sqDistance)
	if distance > geometry.Epsilon {
		n = n.Mul(1 / distance)
	} else {
		// center on the triangle: push out along the face
		distance = 0
		n = geometry.Triangle{A: p0, B: p1, C: p2}.Normal().Mul(-1)
	}

	for _, existing := range c.points {
		if existing.Point.Sub(closest).LenSqr() < duplicateDistance*duplicateDistance {
			return
		}
	}

	if len(c.points) < cap(c.points) {
		c.points = append(c.points, Contact{Point: closest, Penetration: radius - distance, Normal: n})
	}
}

// closestSegmentTriangle returns the closest points of the segment [p, q] and
// the triangle abc. Unless the segment crosses the triangle, a closest pair
// involves an end of the segment or an edge of the triangle.
func closestSegmentTriangle(p, q, a, b, c mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	n := b.Sub(a).Cross(c.Sub(a))
	dp := n.Dot(p.Sub(a))
	dq := n.Dot(q.Sub(a))
	if dp*dq <= 0 && dp != dq {
		x := p.Add(q.Sub(p).Mul(dp / (dp - dq)))
		if geometry.PointInTriangle(x, a, b, c) {
			return x, x
		}
	}

	onSegment, onTriangle := p, geometry.ClosestPointOnTriangle(p, a, b, c)
	best := onTriangle.Sub(onSegment).LenSqr()

	if t := geometry.ClosestPointOnTriangle(q, a, b, c); t.Sub(q).LenSqr() < best {
		onSegment, onTriangle = q, t
		best = t.Sub(q).LenSqr()
	}

	for _, edge := range [3][2]mgl64.Vec3{{a, b}, {b, c}, {c, a}} {
		closest := geometry.ClosestPointsSegmentSegment(p, q, edge[0], edge[1])
		if closest.SqDist < best {
			onSegment, onTriangle = closest.C1, closest.C2
			best = closest.SqDist
		}
	}

	return onSegment, onTriangle
}

func (o *Output) addTerrainCollision(collider int, bodies BodyPair, material uint32, contacts []Contact, res *Result) {
	if o.total.Contacts+len(contacts) > len(o.Contacts) || o.total.Collisions >= len(o.ColliderPairs) {
		res.Dropped += len(contacts)
		o.total.Dropped += len(contacts)
		return
	}

	for i, contact := range contacts {
		contact.FrictionRestitution = material
		o.Contacts[o.total.Contacts+i] = contact
		o.BodyPairs[o.total.Contacts+i] = bodies
	}

	o.ColliderPairs[o.total.Collisions] = ColliderPair{A: collider, B: TerrainCollider}
	o.ContactCounts[o.total.Collisions] = uint8(len(contacts))

	o.total.Contacts += len(contacts)
	o.total.Collisions++
	res.Contacts += len(contacts)
	res.Collisions++
}
