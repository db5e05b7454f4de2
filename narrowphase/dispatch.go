package narrowphase

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/epa"
	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/gjk"
)

// collideFunc fills m when a and b intersect. a.Type() <= b.Type() always holds.
type collideFunc func(a, b geometry.Shape, m *manifold) bool

// dispatch is the upper triangle of the shape pair matrix. Missing entries use GJK/EPA.
var dispatch = [geometry.ShapeTypeCount][geometry.ShapeTypeCount]collideFunc{
	geometry.ShapeTypeSphere: {
		geometry.ShapeTypeSphere: func(a, b geometry.Shape, m *manifold) bool {
			return sphereSphere(a.(geometry.Sphere), b.(geometry.Sphere), m)
		},
		geometry.ShapeTypeCapsule: func(a, b geometry.Shape, m *manifold) bool {
			return sphereCapsule(a.(geometry.Sphere), b.(geometry.Capsule), m)
		},
		geometry.ShapeTypeAABB: func(a, b geometry.Shape, m *manifold) bool {
			return sphereAABB(a.(geometry.Sphere), b.(geometry.AABB), m)
		},
		geometry.ShapeTypeOBB: func(a, b geometry.Shape, m *manifold) bool {
			return sphereOBB(a.(geometry.Sphere), b.(geometry.OBB), m)
		},
	},
	geometry.ShapeTypeCapsule: {
		geometry.ShapeTypeCapsule: func(a, b geometry.Shape, m *manifold) bool {
			return capsuleCapsule(a.(geometry.Capsule), b.(geometry.Capsule), m)
		},
		geometry.ShapeTypeAABB: func(a, b geometry.Shape, m *manifold) bool {
			return capsuleAABB(a.(geometry.Capsule), b.(geometry.AABB), m)
		},
		geometry.ShapeTypeOBB: func(a, b geometry.Shape, m *manifold) bool {
			return capsuleOBB(a.(geometry.Capsule), b.(geometry.OBB), m)
		},
	},
	geometry.ShapeTypeAABB: {
		geometry.ShapeTypeAABB: func(a, b geometry.Shape, m *manifold) bool {
			return aabbAABB(a.(geometry.AABB), b.(geometry.AABB), m)
		},
		geometry.ShapeTypeOBB: func(a, b geometry.Shape, m *manifold) bool {
			return aabbOBB(a.(geometry.AABB), b.(geometry.OBB), m)
		},
	},
	geometry.ShapeTypeOBB: {
		geometry.ShapeTypeOBB: func(a, b geometry.Shape, m *manifold) bool {
			return obbOBB(a.(geometry.OBB), b.(geometry.OBB), m)
		},
	},
}

func gjkEPA(a, b geometry.Shape, m *manifold) bool {
	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)
	simplex.Reset()

	if gjk.GJK(a, b, simplex) != gjk.StatusOverlap {
		return false
	}

	result, err := epa.EPA(a, b, simplex)
	if err != nil {
		m.epaErr = err
		return false
	}

	m.setSingle(result.Normal, result.Point, result.Depth)
	return true
}

// collide expects a.Type() <= b.Type().
func collide(a, b geometry.Shape, m *manifold) bool {
	if fn := dispatch[a.Type()][b.Type()]; fn != nil {
		return fn(a, b, m)
	}
	return gjkEPA(a, b, m)
}

func isSensor(objectType actor.ObjectType) bool {
	return objectType == actor.ObjectTypeTrigger || objectType == actor.ObjectTypeForceField
}

func bodyIndex(c *actor.WorldCollider, dummy int) uint16 {
	if c.ObjectType == actor.ObjectTypeRigidBody {
		return uint16(c.ObjectIndex)
	}
	return uint16(dummy)
}

// Narrowphase tests every broadphase pair and appends the results to out.
//
// Pairs without a rigid body, or whose colliders belong to the same body, are
// skipped. A pair involving a trigger or a force field produces an Interaction
// when the shapes overlap. Any other pair produces a collision whose contacts
// use the dummy index for static geometry. Scratch memory comes from a and is
// released before returning.
func Narrowphase(colliders []actor.WorldCollider, pairs []broadphase.Pair, dummy int, a *arena.Arena, out *Output) Result {
	marker := a.Marker()
	defer a.Reset(marker)

	var m manifold
	m.scratch = arena.Alloc[contactPoint](a, 2*maxClipVertices)

	var result Result
	for _, pair := range pairs {
		indexA, indexB := pair.A, pair.B
		colliderA, colliderB := &colliders[indexA], &colliders[indexB]

		if colliderA.ObjectType != actor.ObjectTypeRigidBody && colliderB.ObjectType != actor.ObjectTypeRigidBody {
			continue
		}
		if colliderA.Body == colliderB.Body {
			continue
		}

		if isSensor(colliderA.ObjectType) || isSensor(colliderB.ObjectType) {
			if !Overlap(colliderA.Shape, colliderB.Shape) {
				continue
			}

			rigid, other := colliderA, colliderB
			if rigid.ObjectType != actor.ObjectTypeRigidBody {
				rigid, other = other, rigid
			}
			out.addInteraction(Interaction{
				RigidBody:  rigid.ObjectIndex,
				Other:      other.ObjectType,
				OtherIndex: other.ObjectIndex,
			}, &result)
			continue
		}

		if colliderA.Shape.Type() > colliderB.Shape.Type() {
			indexA, indexB = indexB, indexA
			colliderA, colliderB = colliderB, colliderA
		}

		m.reset()
		if !collide(colliderA.Shape, colliderB.Shape, &m) {
			if m.epaErr != nil {
				result.EPAFailures++
				out.total.EPAFailures++
			}
			continue
		}

		out.addCollision(
			ColliderPair{A: indexA, B: indexB},
			BodyPair{A: bodyIndex(colliderA, dummy), B: bodyIndex(colliderB, dummy)},
			CombineMaterials(colliderA.Material, colliderB.Material),
			&m,
			&result,
		)
	}

	return result
}
