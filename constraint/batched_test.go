package constraint

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

func randomVec(rng *rand.Rand, scale float64) mgl64.Vec3 {
	return mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}.Mul(scale)
}

// independentContacts builds n contacts, each touching its own bodies, so
// that the solve order does not matter. Every third contact rests on the dummy.
func independentContacts(rng *rand.Rand, n int) ([]actor.GlobalState, []narrowphase.Contact, []narrowphase.BodyPair, uint16) {
	dummy := uint16(2 * n)
	globals := make([]actor.GlobalState, 2*n+1)
	contacts := make([]narrowphase.Contact, n)
	pairs := make([]narrowphase.BodyPair, n)

	for i := range n {
		a, b := uint16(2*i), uint16(2*i+1)
		globals[a] = createDynamicState(randomVec(rng, 5), randomVec(rng, 2))
		globals[b] = createDynamicState(globals[a].Position.Add(mgl64.Vec3{0, 1, 0}), randomVec(rng, 2))
		globals[a].AngularVelocity = randomVec(rng, 1)
		globals[b].AngularVelocity = randomVec(rng, 1)
		if i%3 == 0 {
			b = dummy
		}

		contacts[i] = narrowphase.Contact{
			Point:               globals[a].Position.Add(mgl64.Vec3{0, 0.5, 0}).Add(randomVec(rng, 0.2)),
			Penetration:         rng.Float64() * 0.05,
			Normal:              mgl64.Vec3{0, 1, 0},
			FrictionRestitution: narrowphase.PackMaterial(0.5, rng.Float64()*0.5),
		}
		pairs[i] = narrowphase.BodyPair{A: a, B: b}
	}

	return globals, contacts, pairs, dummy
}

func TestContactsBatched(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for _, n := range []int{1, 6, 16, 23} {
		globals, contacts, pairs, dummy := independentContacts(rng, n)
		scalar := slices.Clone(globals)

		a := arena.New(0)
		schedule := ScheduleLanes(pairs, dummy, a)
		batches := InitializeContactsBatched(contacts, pairs, globals, schedule, testDT, a)
		updates := InitializeContacts(contacts, pairs, scalar, testDT, a)

		for range 4 {
			SolveContactsBatched(batches, globals)
			SolveContacts(updates, pairs, scalar)
		}

		for i := range globals {
			if !vecApprox(globals[i].LinearVelocity, scalar[i].LinearVelocity, 1e-4) {
				t.Errorf("%d contacts, body %d: expected linear velocity %v, got %v", n, i, scalar[i].LinearVelocity, globals[i].LinearVelocity)
			}
			if !vecApprox(globals[i].AngularVelocity, scalar[i].AngularVelocity, 1e-4) {
				t.Errorf("%d contacts, body %d: expected angular velocity %v, got %v", n, i, scalar[i].AngularVelocity, globals[i].AngularVelocity)
			}
		}

		if globals[dummy] != (actor.GlobalState{}) {
			t.Errorf("Expected the dummy untouched, got %+v", globals[dummy])
		}
	}
}

func TestJointsBatched(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	const n = 9
	globals := make([]actor.GlobalState, 2*n)
	distances := make([]DistanceConstraint, n)
	balls := make([]BallConstraint, n)
	pairs := make([]narrowphase.BodyPair, n)

	for i := range n {
		a, b := 2*i, 2*i+1
		globals[a] = createDynamicState(randomVec(rng, 5), randomVec(rng, 1))
		globals[b] = createDynamicState(globals[a].Position.Add(randomVec(rng, 2)), randomVec(rng, 1))
		globals[b].Rotation = mgl64.QuatRotate(rng.Float64(), randomVec(rng, 1).Normalize())
		pairs[i] = narrowphase.BodyPair{A: uint16(a), B: uint16(b)}

		distances[i] = DistanceConstraint{
			LocalAnchorA: randomVec(rng, 0.5),
			LocalAnchorB: randomVec(rng, 0.5),
			GlobalLength: 1,
		}
		balls[i] = BallConstraint{
			LocalAnchorA: randomVec(rng, 0.5),
			LocalAnchorB: randomVec(rng, 0.5),
		}
	}

	t.Run("distance", func(t *testing.T) {
		batched := slices.Clone(globals)
		scalar := slices.Clone(globals)

		a := arena.New(0)
		schedule := ScheduleLanes(pairs, uint16(len(globals)), a)
		batches := InitializeDistanceBatched(distances, pairs, batched, schedule, testDT, a)
		updates := InitializeDistance(distances, pairs, scalar, testDT, a)

		SolveDistanceBatched(batches, batched)
		SolveDistance(updates, pairs, scalar)

		for i := range batched {
			if !vecApprox(batched[i].LinearVelocity, scalar[i].LinearVelocity, 1e-3) {
				t.Errorf("body %d: expected %v, got %v", i, scalar[i].LinearVelocity, batched[i].LinearVelocity)
			}
		}
	})

	t.Run("ball", func(t *testing.T) {
		batched := slices.Clone(globals)
		scalar := slices.Clone(globals)

		a := arena.New(0)
		schedule := ScheduleLanes(pairs, uint16(len(globals)), a)
		batches := InitializeBallBatched(balls, pairs, batched, schedule, testDT, a)
		updates := InitializeBall(balls, pairs, scalar, testDT, a)

		SolveBallBatched(batches, batched)
		SolveBall(updates, pairs, scalar)

		for i := range batched {
			if !vecApprox(batched[i].LinearVelocity, scalar[i].LinearVelocity, 1e-3) {
				t.Errorf("body %d: expected %v, got %v", i, scalar[i].LinearVelocity, batched[i].LinearVelocity)
			}
			if !vecApprox(batched[i].AngularVelocity, scalar[i].AngularVelocity, 1e-3) {
				t.Errorf("body %d: expected %v, got %v", i, scalar[i].AngularVelocity, batched[i].AngularVelocity)
			}
		}
	})
}
