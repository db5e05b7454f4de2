package impulse

import (
	"cmp"
	"math"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/constraint"
	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/island"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// maxPairsPerCollider caps the broadphase output of large worlds.
	maxPairsPerCollider = 64
	// terrainContactsPerCollider is the room left for heightmap contacts.
	terrainContactsPerCollider = 16
)

// frame holds the per-body buffers of a step. They follow the body count and
// are reused from one step to the next.
type frame struct {
	// objectIndex is parallel to the world bodies: the rigid body, trigger or
	// force field index of each body in this step, -1 for static bodies.
	objectIndex []int
	kinds       []actor.ObjectType

	// body indices by object index
	rigidBodies []int
	triggers    []int
	fields      []int

	// globals holds one state per rigid body, then the dummy
	globals     []actor.GlobalState
	fieldForces []mgl64.Vec3
	bodyIsland  []int32

	// parallel to the world colliders
	colliders []actor.WorldCollider
	aabbs     []geometry.AABB

	overlaps []overlap
	touches  []touch
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	clear(s)
	return s
}

// Step advances the world by dt seconds of frame time, scaled by GlobalTimeScale.
//
// With a fixed frame rate, time accumulates until a whole physics step is due.
// A slow frame runs at most MaxPhysicsIterationsPerFrame steps and drops the rest.
func (w *World) Step(dt float64) {
	dt *= w.Settings.GlobalTimeScale
	if dt <= 0 {
		return
	}

	if !w.Settings.FixedFrameRate {
		w.snapshot()
		w.PhysicsStep(dt)
		return
	}

	fixed := w.Settings.FixedStep()
	w.timer += dt
	if w.timer < fixed {
		return
	}

	w.snapshot()
	for iterations := 0; w.timer >= fixed && iterations < w.Settings.MaxPhysicsIterationsPerFrame; iterations++ {
		w.PhysicsStep(fixed)
		w.timer -= fixed
	}

	if w.timer >= fixed {
		w.logger.Warn("dropping physics frames", "frames", int(w.timer/fixed), "step", fixed)
		w.timer = math.Mod(w.timer, fixed)
	}
}

func (w *World) snapshot() {
	for k, body := range w.bodies {
		w.previous[k] = body.Transform
	}
}

// classify assigns every body its role in the step.
func (w *World) classify() {
	f := &w.frame
	f.objectIndex = resize(f.objectIndex, len(w.bodies))
	f.kinds = resize(f.kinds, len(w.bodies))
	f.rigidBodies = f.rigidBodies[:0]
	f.triggers = f.triggers[:0]
	f.fields = f.fields[:0]

	for k, body := range w.bodies {
		kind := body.Kind
		switch {
		case kind == actor.ObjectTypeRigidBody && body.IsRigidBody():
			f.objectIndex[k] = len(f.rigidBodies)
			f.rigidBodies = append(f.rigidBodies, k)
		case kind == actor.ObjectTypeTrigger:
			f.objectIndex[k] = len(f.triggers)
			f.triggers = append(f.triggers, k)
		case kind == actor.ObjectTypeForceField && body.ForceField != nil:
			f.objectIndex[k] = len(f.fields)
			f.fields = append(f.fields, k)
		default:
			kind = actor.ObjectTypeStatic
			f.objectIndex[k] = -1
		}
		f.kinds[k] = kind
	}

	f.globals = resize(f.globals, len(f.rigidBodies)+1)
	f.fieldForces = resize(f.fieldForces, len(f.fields))
	f.bodyIsland = resize(f.bodyIsland, len(f.rigidBodies))
	f.colliders = resize(f.colliders, len(w.colliders))
	f.aabbs = resize(f.aabbs, len(w.colliders))
}

// rigidIndex returns the solver index of a body, for the joints of the step.
func (w *World) rigidIndex(id uint64) (uint16, bool) {
	k, ok := w.indices[id]
	if !ok || w.frame.kinds[k] != actor.ObjectTypeRigidBody {
		return 0, false
	}
	return uint16(w.frame.objectIndex[k]), true
}

// PhysicsStep runs one simulation step of dt seconds and sends the events it produced.
func (w *World) PhysicsStep(dt float64) {
	a := w.arena
	marker := a.Marker()

	w.classify()
	f := &w.frame
	numRigid := len(f.rigidBodies)
	dummy := uint16(numRigid)

	// world-space colliders
	task(w.Settings.Workers, w.colliders, func(i int, ref *colliderRef) {
		k := w.indices[ref.body.ID]
		c := actor.NewWorldCollider(ref.body.Colliders[ref.collider], ref.body.Transform, f.kinds[k], f.objectIndex[k], k)
		f.colliders[i] = c
		f.aabbs[i] = c.Shape.Bounds()
	})

	// broadphase
	n := len(w.colliders)
	pairs := arena.Alloc[broadphase.Pair](a, min(n*(n-1)/2, maxPairsPerCollider*n))
	pairCount := w.sap.Pairs(f.aabbs, a, pairs, w.Settings.SimdBroadPhase)
	if w.sap.Overflow > 0 {
		w.logger.Warn("broadphase pairs dropped", "dropped", w.sap.Overflow, "capacity", len(pairs))
	}
	pairs = pairs[:pairCount]

	// narrowphase
	maxCollisions := pairCount
	maxContacts := narrowphase.MaxContactsPerManifold * pairCount
	if w.heightmap != nil {
		maxCollisions += n
		maxContacts += terrainContactsPerCollider * n
	}
	out := narrowphase.NewOutput(a, maxContacts, maxCollisions, pairCount)
	narrowphase.Narrowphase(f.colliders, pairs, int(dummy), a, out)
	narrowphase.HeightmapCollision(w.heightmap, w.heightmapMaterial, f.colliders, f.aabbs, int(dummy), a, out)
	result := out.Total()
	if result.EPAFailures > 0 {
		w.logger.Debug("penetration not resolved, pairs treated as separated", "pairs", result.EPAFailures)
	}
	if result.Dropped > 0 {
		w.logger.Warn("narrowphase output full", "dropped", result.Dropped)
	}

	// force fields and triggers
	global := w.applyInteractions(out.WrittenInteractions())

	// integrate forces, then the dummy gets no velocity and no mass
	gravity := w.Settings.Gravity
	task(w.Settings.Workers, f.rigidBodies, func(i int, k *int) {
		body := w.bodies[*k]
		body.RigidBody.AddForce(global)
		body.RigidBody.ApplyGravityAndIntegrateForces(&f.globals[i], body.Transform, gravity, dt)
	})
	f.globals[dummy] = actor.GlobalState{}

	contacts, contactPairs := out.WrittenContacts()
	w.recordCollisions(out, contacts)

	// islands
	joints := w.constraints.Collect(w.rigidIndex, a)
	islands := island.Build(joints.Pairs(contactPairs, a), numRigid, dummy, a)
	for i := range f.bodyIsland {
		f.bodyIsland[i] = int32(islands.BodyIsland(uint16(i)))
	}

	// solve
	var solver constraint.Solver
	solver.Initialize(f.globals, joints, contacts, contactPairs, dummy, w.Settings.SimdConstraintSolver, dt, a)
	solver.Solve(w.Settings.RigidSolverIterations)

	// integrate velocities
	task(w.Settings.Workers, f.rigidBodies, func(i int, k *int) {
		body := w.bodies[*k]
		body.RigidBody.IntegrateVelocity(&f.globals[i], &body.Transform, dt)
	})

	w.stats = Stats{
		RigidBodies:     numRigid,
		Colliders:       n,
		BroadphasePairs: pairCount,
		Collisions:      result.Collisions,
		Contacts:        result.Contacts,
		Interactions:    result.Interactions,
		Joints:          joints.Len(),
		Islands:         islands.Len(),
		LaneFillRate:    solver.ContactFillRate(),
		ArenaPeak:       a.Peak(),
	}

	if t, ok := a.FirstTruncation(); ok {
		w.logger.Warn("step arena budget exceeded", "requested", t.Requested, "granted", t.Granted, "type", t.Type)
	}
	a.Reset(marker)

	w.Events.flush()
}

func compareInteractions(x, y narrowphase.Interaction) int {
	if c := cmp.Compare(x.RigidBody, y.RigidBody); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Other, y.Other); c != 0 {
		return c
	}
	return cmp.Compare(x.OtherIndex, y.OtherIndex)
}

// applyInteractions pushes the rigid bodies inside force fields, records
// trigger overlaps and returns the force of the fields without colliders.
// A body touching a field with several colliders is pushed once.
func (w *World) applyInteractions(interactions []narrowphase.Interaction) mgl64.Vec3 {
	f := &w.frame

	var global mgl64.Vec3
	for i, k := range f.fields {
		body := w.bodies[k]
		f.fieldForces[i] = body.ForceField.WorldForce(body.Transform)
		if len(body.Colliders) == 0 {
			global = global.Add(f.fieldForces[i])
		}
	}

	slices.SortFunc(interactions, compareInteractions)
	interactions = slices.Compact(interactions)

	f.overlaps = f.overlaps[:0]
	for _, interaction := range interactions {
		rigid := w.bodies[f.rigidBodies[interaction.RigidBody]]

		switch interaction.Other {
		case actor.ObjectTypeForceField:
			rigid.RigidBody.AddForce(f.fieldForces[interaction.OtherIndex])
		case actor.ObjectTypeTrigger:
			trigger := w.bodies[f.triggers[interaction.OtherIndex]]
			f.overlaps = append(f.overlaps, overlap{
				key:     pairKey{a: trigger.ID, b: rigid.ID},
				trigger: trigger,
				other:   rigid,
			})
		}
	}

	w.Events.recordOverlaps(f.overlaps)
	return global
}

// pointVelocity returns the velocity of a world point moving with a rigid
// body. Other bodies do not move.
func (w *World) pointVelocity(k int, point mgl64.Vec3) mgl64.Vec3 {
	if w.frame.kinds[k] != actor.ObjectTypeRigidBody {
		return mgl64.Vec3{}
	}
	g := &w.frame.globals[w.frame.objectIndex[k]]
	return g.LinearVelocity.Add(g.AngularVelocity.Cross(point.Sub(g.Position)))
}

// recordCollisions turns the collisions of the step into one touch per pair
// of bodies. Terrain contacts do not produce events.
func (w *World) recordCollisions(out *narrowphase.Output, contacts []narrowphase.Contact) {
	f := &w.frame
	colliderPairs, counts := out.WrittenCollisions()

	f.touches = f.touches[:0]
	offset := 0
	for i, pair := range colliderPairs {
		count := int(counts[i])
		manifold := contacts[offset : offset+count]
		offset += count

		if pair.A == narrowphase.TerrainCollider || pair.B == narrowphase.TerrainCollider || count == 0 {
			continue
		}

		var point, normal mgl64.Vec3
		for _, c := range manifold {
			point = point.Add(c.Point)
			normal = normal.Add(c.Normal)
		}
		point = point.Mul(1 / float64(count))
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}

		kA, kB := f.colliders[pair.A].Body, f.colliders[pair.B].Body
		velocity := w.pointVelocity(kB, point).Sub(w.pointVelocity(kA, point))

		bodyA, bodyB := w.bodies[kA], w.bodies[kB]
		if bodyA.ID > bodyB.ID {
			bodyA, bodyB = bodyB, bodyA
			normal = normal.Mul(-1)
			velocity = velocity.Mul(-1)
		}

		f.touches = append(f.touches, touch{
			key: pairKey{a: bodyA.ID, b: bodyB.ID},
			event: CollisionEnterEvent{
				BodyA:            bodyA,
				BodyB:            bodyB,
				Point:            point,
				Normal:           normal,
				RelativeVelocity: velocity,
				RelativeSpeed:    velocity.Dot(normal),
			},
		})
	}

	w.Events.recordTouches(f.touches)
}

// IslandOf returns the island of a rigid body in the last step, or -1 when it
// was not constrained. Adding or removing bodies invalidates it until the next step.
func (w *World) IslandOf(body *actor.Body) int {
	k, ok := w.indices[body.ID]
	if !ok || k >= len(w.frame.kinds) || w.frame.kinds[k] != actor.ObjectTypeRigidBody {
		return -1
	}
	i := w.frame.objectIndex[k]
	if i >= len(w.frame.bodyIsland) {
		return -1
	}
	return int(w.frame.bodyIsland[i])
}
