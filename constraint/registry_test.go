package constraint

import (
	"errors"
	"slices"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/go-gl/mathgl/mgl64"
)

func createBody(id uint64, position mgl64.Vec3) *actor.Body {
	return &actor.Body{ID: id, Transform: actor.NewTransformAt(position, mgl64.QuatIdent())}
}

func TestRegistryAddAndDelete(t *testing.T) {
	r := NewRegistry()
	a := createBody(1, mgl64.Vec3{0, 0, 0})
	b := createBody(2, mgl64.Vec3{2, 0, 0})

	h, err := r.AddDistanceFromGlobalPoints(a, b, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{2, 0, 0})
	if err != nil {
		t.Fatalf("AddDistanceFromGlobalPoints failed: %v", err)
	}
	if h.Kind != KindDistance {
		t.Errorf("Expected a distance handle, got %v", h.Kind)
	}

	d, ok := r.Distance(h)
	if !ok {
		t.Fatal("Expected the distance constraint to be found")
	}
	if d.LocalAnchorA != (mgl64.Vec3{0.5, 0, 0}) || d.LocalAnchorB != (mgl64.Vec3{0, 0, 0}) {
		t.Errorf("Expected local anchors (0.5, 0, 0) and (0, 0, 0), got %v and %v", d.LocalAnchorA, d.LocalAnchorB)
	}
	if d.GlobalLength != 1.5 {
		t.Errorf("Expected length 1.5, got %v", d.GlobalLength)
	}

	if _, ok := r.Ball(h); ok {
		t.Error("Expected a distance handle not to resolve as a ball")
	}

	idA, idB, ok := r.Bodies(h)
	if !ok || idA != 1 || idB != 2 {
		t.Errorf("Expected bodies 1 and 2, got %d and %d", idA, idB)
	}

	if err := r.Delete(h); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("Expected an empty registry, got %d", r.Len())
	}
	if err := r.Delete(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle on a second delete, got %v", err)
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()
	a := createBody(1, mgl64.Vec3{})

	t.Run("same body", func(t *testing.T) {
		if _, err := r.AddBallFromGlobalPoints(a, a, mgl64.Vec3{}); !errors.Is(err, ErrSameBody) {
			t.Errorf("Expected ErrSameBody, got %v", err)
		}
		twin := createBody(1, mgl64.Vec3{1, 0, 0})
		if _, err := r.AddBallFromGlobalPoints(a, twin, mgl64.Vec3{}); !errors.Is(err, ErrSameBody) {
			t.Errorf("Expected ErrSameBody for a shared ID, got %v", err)
		}
	})

	t.Run("missing body", func(t *testing.T) {
		if _, err := r.AddHingeFromGlobalPoints(a, nil, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0}, -1, 1); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("Expected ErrInvalidHandle, got %v", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if err := r.Delete(Handle{Kind: Kind(42)}); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("Expected ErrInvalidHandle, got %v", err)
		}
	})

	if r.Len() != 0 {
		t.Errorf("Expected no constraint added, got %d", r.Len())
	}
}

func TestRegistryStaleHandle(t *testing.T) {
	r := NewRegistry()
	a := createBody(1, mgl64.Vec3{})
	b := createBody(2, mgl64.Vec3{1, 0, 0})

	first, _ := r.AddBallFromGlobalPoints(a, b, mgl64.Vec3{})
	if err := r.Delete(first); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	second, _ := r.AddBallFromGlobalPoints(a, b, mgl64.Vec3{0.5, 0, 0})
	if second.Index != first.Index {
		t.Errorf("Expected slot %d to be reused, got %d", first.Index, second.Index)
	}
	if second.Generation == first.Generation {
		t.Error("Expected a new generation for the reused slot")
	}

	if _, ok := r.Ball(first); ok {
		t.Error("Expected the stale handle not to resolve")
	}
	if err := r.Delete(first); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle for the stale handle, got %v", err)
	}
	if _, ok := r.Ball(second); !ok {
		t.Error("Expected the new handle to resolve")
	}
}

func TestRegistryBodyLists(t *testing.T) {
	r := NewRegistry()
	a := createBody(1, mgl64.Vec3{})
	b := createBody(2, mgl64.Vec3{1, 0, 0})
	c := createBody(3, mgl64.Vec3{2, 0, 0})

	ab, _ := r.AddDistanceFromGlobalPoints(a, b, a.Transform.Position, b.Transform.Position)
	bc, _ := r.AddBallFromGlobalPoints(b, c, mgl64.Vec3{1.5, 0, 0})
	hinge, _ := r.AddHingeFromGlobalPoints(a, b, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{0, 0, 1}, -1, 1)
	cone, _ := r.AddConeTwistFromGlobalPoints(c, a, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, 0.5, 0.5)

	if got := slices.Collect(r.ConstraintsOfBody(2)); !slices.Equal(got, []Handle{hinge, bc, ab}) {
		t.Errorf("Expected %v, got %v", []Handle{hinge, bc, ab}, got)
	}

	if err := r.Delete(bc); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := slices.Collect(r.ConstraintsOfBody(2)); !slices.Equal(got, []Handle{hinge, ab}) {
		t.Errorf("Expected %v after delete, got %v", []Handle{hinge, ab}, got)
	}
	if got := slices.Collect(r.ConstraintsOfBody(3)); !slices.Equal(got, []Handle{cone}) {
		t.Errorf("Expected %v, got %v", []Handle{cone}, got)
	}

	if n := r.DeleteAllFromBody(1); n != 3 {
		t.Errorf("Expected 3 constraints deleted, got %d", n)
	}
	if r.Len() != 0 {
		t.Errorf("Expected an empty registry, got %d", r.Len())
	}
	for id := uint64(1); id <= 3; id++ {
		if got := slices.Collect(r.ConstraintsOfBody(id)); len(got) != 0 {
			t.Errorf("body %d: expected no constraint, got %v", id, got)
		}
	}
	if n := r.DeleteAllFromBody(1); n != 0 {
		t.Errorf("Expected nothing left to delete, got %d", n)
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	a := createBody(1, mgl64.Vec3{})
	b := createBody(2, mgl64.Vec3{1, 0, 0})

	h, _ := r.AddBallFromGlobalPoints(a, b, mgl64.Vec3{})
	r.AddDistanceFromLocalPoints(a, b, mgl64.Vec3{}, mgl64.Vec3{}, 1)

	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Expected an empty registry, got %d", r.Len())
	}
	if _, ok := r.Ball(h); ok {
		t.Error("Expected handles to be invalidated")
	}
	if got := slices.Collect(r.ConstraintsOfBody(1)); len(got) != 0 {
		t.Errorf("Expected no constraint, got %v", got)
	}

	if _, err := r.AddBallFromGlobalPoints(a, b, mgl64.Vec3{}); err != nil {
		t.Errorf("Expected the registry to be usable after Clear, got %v", err)
	}
}

func TestRegistryCollect(t *testing.T) {
	r := NewRegistry()
	bodies := []*actor.Body{
		createBody(10, mgl64.Vec3{0, 0, 0}),
		createBody(20, mgl64.Vec3{1, 0, 0}),
		createBody(30, mgl64.Vec3{2, 0, 0}),
	}

	r.AddDistanceFromGlobalPoints(bodies[0], bodies[1], mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	r.AddDistanceFromGlobalPoints(bodies[1], bodies[2], mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0})
	r.AddBallFromGlobalPoints(bodies[2], bodies[0], mgl64.Vec3{1, 0, 0})
	r.AddHingeFromGlobalPoints(bodies[0], bodies[1], mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{0, 1, 0}, -1, 1)

	// body 30 is not part of the step
	index := func(id uint64) (uint16, bool) {
		switch id {
		case 10:
			return 0, true
		case 20:
			return 1, true
		}
		return 0, false
	}

	joints := r.Collect(index, arena.New(0))

	if len(joints.Distance) != 1 || len(joints.DistancePairs) != 1 {
		t.Fatalf("Expected 1 distance joint, got %d", len(joints.Distance))
	}
	if joints.DistancePairs[0].A != 0 || joints.DistancePairs[0].B != 1 {
		t.Errorf("Expected pair (0, 1), got %+v", joints.DistancePairs[0])
	}
	if len(joints.Ball) != 0 {
		t.Errorf("Expected the ball joint skipped, got %d", len(joints.Ball))
	}
	if len(joints.Hinge) != 1 || len(joints.ConeTwist) != 0 {
		t.Errorf("Expected 1 hinge and no cone-twist, got %d and %d", len(joints.Hinge), len(joints.ConeTwist))
	}
	if joints.Len() != 2 {
		t.Errorf("Expected 2 joints, got %d", joints.Len())
	}

	pairs := joints.Pairs(nil, arena.New(0))
	if len(pairs) != 2 {
		t.Errorf("Expected 2 pairs, got %d", len(pairs))
	}
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindDistance:  "distance",
		KindBall:      "ball",
		KindHinge:     "hinge",
		KindConeTwist: "cone-twist",
		Kind(9):       "unknown",
	}
	for kind, expected := range tests {
		if kind.String() != expected {
			t.Errorf("Expected %q, got %q", expected, kind.String())
		}
	}
}
