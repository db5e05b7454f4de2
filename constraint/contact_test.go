package constraint

import (
	"math"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

const testDT = 1.0 / 60.0

func approx(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func vecApprox(a, b mgl64.Vec3, tolerance float64) bool {
	return approx(a[0], b[0], tolerance) && approx(a[1], b[1], tolerance) && approx(a[2], b[2], tolerance)
}

// createDynamicState returns the global state of a unit mass body with unit inertia.
func createDynamicState(position, velocity mgl64.Vec3) actor.GlobalState {
	return actor.GlobalState{
		Rotation:       mgl64.QuatIdent(),
		Position:       position,
		LinearVelocity: velocity,
		InvMass:        1,
		InvInertia:     mgl64.Ident3(),
	}
}

// createKinematicState returns the global state of an infinite mass body.
func createKinematicState(position mgl64.Vec3) actor.GlobalState {
	return actor.GlobalState{
		Rotation: mgl64.QuatIdent(),
		Position: position,
	}
}

// groundContact returns a contact of body 0 resting on the dummy body 1.
func groundContact(penetration, friction, restitution float64) ([]narrowphase.Contact, []narrowphase.BodyPair) {
	contacts := []narrowphase.Contact{{
		Point:               mgl64.Vec3{0, 0, 0},
		Penetration:         penetration,
		Normal:              mgl64.Vec3{0, -1, 0},
		FrictionRestitution: narrowphase.PackMaterial(friction, restitution),
	}}
	return contacts, []narrowphase.BodyPair{{A: 0, B: 1}}
}

func TestInitializeContacts(t *testing.T) {
	globals := []actor.GlobalState{
		createDynamicState(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -1, 0}),
		{},
	}
	contacts, pairs := groundContact(0.01, 0.5, 0)

	updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))
	if len(updates) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(updates))
	}

	c := updates[0]
	if !vecApprox(c.RelGlobalAnchorA, mgl64.Vec3{0, -1, 0}, 1e-12) {
		t.Errorf("Expected anchor A (0, -1, 0), got %v", c.RelGlobalAnchorA)
	}
	if c.Tangent != (mgl64.Vec3{}) {
		t.Errorf("Expected no tangent for a head-on contact, got %v", c.Tangent)
	}
	if !approx(c.EffectiveMassInNormalDir, 1, 1e-12) {
		t.Errorf("Expected normal mass 1, got %v", c.EffectiveMassInNormalDir)
	}

	expectedBias := contactBeta * (0.01 + contactSlop) / testDT
	if !approx(c.Bias, expectedBias, 1e-9) {
		t.Errorf("Expected bias %v, got %v", expectedBias, c.Bias)
	}

	t.Run("no bias when separating", func(t *testing.T) {
		globals[0].LinearVelocity = mgl64.Vec3{0, 1, 0}
		updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))
		if updates[0].Bias != 0 {
			t.Errorf("Expected no bias, got %v", updates[0].Bias)
		}
	})

	t.Run("no bias within the slop", func(t *testing.T) {
		globals[0].LinearVelocity = mgl64.Vec3{0, -1, 0}
		contacts, pairs := groundContact(0.0005, 0.5, 0)
		updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))
		if updates[0].Bias != 0 {
			t.Errorf("Expected no bias, got %v", updates[0].Bias)
		}
	})

	t.Run("truncated by the arena", func(t *testing.T) {
		a := arena.New(1)
		if updates := InitializeContacts(contacts, pairs, globals, testDT, a); len(updates) != 0 {
			t.Errorf("Expected no row, got %d", len(updates))
		}
	})
}

func TestSolveContact(t *testing.T) {
	t.Run("stops a falling body", func(t *testing.T) {
		globals := []actor.GlobalState{
			createDynamicState(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -1, 0}),
			{},
		}
		contacts, pairs := groundContact(0.01, 0.5, 0)
		updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))
		bias := updates[0].Bias

		SolveContacts(updates, pairs, globals)

		if !vecApprox(globals[0].LinearVelocity, mgl64.Vec3{0, bias, 0}, 1e-9) {
			t.Errorf("Expected the body to move out at %v, got %v", bias, globals[0].LinearVelocity)
		}
		if globals[1] != (actor.GlobalState{}) {
			t.Errorf("Expected the dummy untouched, got %+v", globals[1])
		}
		if updates[0].ImpulseInNormalDir <= 0 {
			t.Errorf("Expected a positive normal impulse, got %v", updates[0].ImpulseInNormalDir)
		}
	})

	t.Run("separating bodies are left alone", func(t *testing.T) {
		globals := []actor.GlobalState{
			createDynamicState(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0}),
			{},
		}
		contacts, pairs := groundContact(0.01, 0.5, 0)
		updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))

		SolveContacts(updates, pairs, globals)

		if globals[0].LinearVelocity != (mgl64.Vec3{0, 1, 0}) {
			t.Errorf("Expected velocity unchanged, got %v", globals[0].LinearVelocity)
		}
		if updates[0].ImpulseInNormalDir != 0 {
			t.Errorf("Expected no impulse, got %v", updates[0].ImpulseInNormalDir)
		}
	})

	t.Run("restitution bounces", func(t *testing.T) {
		globals := []actor.GlobalState{
			createDynamicState(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -2, 0}),
			{},
		}
		contacts, pairs := groundContact(0.01, 0, 1)
		updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))

		SolveContacts(updates, pairs, globals)

		if globals[0].LinearVelocity.Y() < 2-1e-3 {
			t.Errorf("Expected a bounce at 2 or more, got %v", globals[0].LinearVelocity.Y())
		}
	})

	t.Run("friction stays in the cone", func(t *testing.T) {
		globals := []actor.GlobalState{
			createDynamicState(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{3, -1, 0}),
			{},
		}
		contacts, pairs := groundContact(0, 0.5, 0)
		updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))

		for range 10 {
			SolveContacts(updates, pairs, globals)

			c := updates[0]
			if math.Abs(c.ImpulseInTangentDir) > c.Friction*c.ImpulseInNormalDir+1e-9 {
				t.Fatalf("Expected |%v| <= %v * %v", c.ImpulseInTangentDir, c.Friction, c.ImpulseInNormalDir)
			}
		}

		if v := globals[0].LinearVelocity.X(); v >= 3 || v <= 0 {
			t.Errorf("Expected friction to slow down the slide, got %v", v)
		}
	})

	t.Run("two infinite masses", func(t *testing.T) {
		globals := []actor.GlobalState{
			createKinematicState(mgl64.Vec3{0, 1, 0}),
			{},
		}
		globals[0].LinearVelocity = mgl64.Vec3{0, -1, 0}
		contacts, pairs := groundContact(0.01, 0.5, 0)
		updates := InitializeContacts(contacts, pairs, globals, testDT, arena.New(0))

		SolveContacts(updates, pairs, globals)

		if globals[0].LinearVelocity != (mgl64.Vec3{0, -1, 0}) {
			t.Errorf("Expected a kinematic body to keep its velocity, got %v", globals[0].LinearVelocity)
		}
	})
}
