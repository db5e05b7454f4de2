package island

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
)

// checkPartition verifies that every pair lands in exactly one island, in the
// island of its real bodies, and that every touched body has an island.
func checkPartition(t *testing.T, pairs []narrowphase.BodyPair, numBodies int, dummy uint16, islands Islands) {
	t.Helper()

	seen := make([]int, len(pairs))
	members := make(map[uint16]int)

	for i := range islands.Len() {
		island := islands.Island(i)
		if !slices.IsSorted(island.Constraints) {
			t.Errorf("island %d: expected sorted constraints, got %v", i, island.Constraints)
		}
		for _, body := range island.Bodies {
			if body == dummy {
				t.Errorf("island %d: expected the dummy never to be a member", i)
			}
			members[body]++
			if islands.BodyIsland(body) != i {
				t.Errorf("body %d: expected island %d, got %d", body, i, islands.BodyIsland(body))
			}
		}
		for _, c := range island.Constraints {
			seen[c]++
			for _, body := range []uint16{pairs[c].A, pairs[c].B} {
				if body != dummy && islands.BodyIsland(body) != i {
					t.Errorf("pair %d: expected body %d in island %d, got %d", c, body, i, islands.BodyIsland(body))
				}
			}
		}
	}

	for i, n := range seen {
		if n != 1 {
			t.Errorf("Expected pair %d in exactly one island, got %d", i, n)
		}
	}

	touched := make(map[uint16]bool)
	for _, p := range pairs {
		touched[p.A] = true
		touched[p.B] = true
	}
	for body := range numBodies {
		b := uint16(body)
		switch {
		case b == dummy:
		case touched[b] && members[b] != 1:
			t.Errorf("Expected body %d in exactly one island, got %d", b, members[b])
		case !touched[b] && islands.BodyIsland(b) != -1:
			t.Errorf("Expected body %d without constraint to have no island, got %d", b, islands.BodyIsland(b))
		}
	}
}

func TestBuild(t *testing.T) {
	t.Run("two chains", func(t *testing.T) {
		// 0-1-2 and 3-4, 5 alone
		pairs := []narrowphase.BodyPair{{A: 3, B: 4}, {A: 1, B: 2}, {A: 0, B: 1}}
		islands := Build(pairs, 6, 6, arena.New(0))
		checkPartition(t, pairs, 6, 6, islands)

		if islands.Len() != 2 {
			t.Fatalf("Expected 2 islands, got %d", islands.Len())
		}
		first := islands.Island(0)
		if !slices.Equal(first.Constraints, []uint32{1, 2}) || !slices.Equal(first.Bodies, []uint16{0, 1, 2}) {
			t.Errorf("Expected constraints [1 2] over bodies [0 1 2], got %v over %v", first.Constraints, first.Bodies)
		}
		if islands.BodyIsland(5) != -1 {
			t.Errorf("Expected body 5 to have no island, got %d", islands.BodyIsland(5))
		}
	})

	t.Run("the dummy does not merge islands", func(t *testing.T) {
		const dummy = 4
		pairs := []narrowphase.BodyPair{{A: 0, B: dummy}, {A: 1, B: dummy}, {A: 2, B: 3}, {A: 3, B: dummy}}
		islands := Build(pairs, 4, dummy, arena.New(0))
		checkPartition(t, pairs, 4, dummy, islands)

		if islands.Len() != 3 {
			t.Errorf("Expected 3 islands, got %d", islands.Len())
		}
		if islands.Constraints() != len(pairs) {
			t.Errorf("Expected %d constraints, got %d", len(pairs), islands.Constraints())
		}
	})

	t.Run("dummy inside the body range", func(t *testing.T) {
		pairs := []narrowphase.BodyPair{{A: 0, B: 1}, {A: 1, B: 2}}
		islands := Build(pairs, 3, 1, arena.New(0))
		checkPartition(t, pairs, 3, 1, islands)

		if islands.Len() != 2 {
			t.Errorf("Expected 2 islands, got %d", islands.Len())
		}
		if islands.BodyIsland(1) != -1 {
			t.Errorf("Expected the dummy to have no island, got %d", islands.BodyIsland(1))
		}
	})

	t.Run("duplicate pairs", func(t *testing.T) {
		pairs := []narrowphase.BodyPair{{A: 0, B: 1}, {A: 1, B: 0}, {A: 0, B: 1}}
		islands := Build(pairs, 2, 2, arena.New(0))
		checkPartition(t, pairs, 2, 2, islands)

		if islands.Len() != 1 || islands.Constraints() != 3 {
			t.Errorf("Expected 1 island with 3 constraints, got %d with %d", islands.Len(), islands.Constraints())
		}
	})

	t.Run("random graphs", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		for range 20 {
			numBodies := 1 + rng.Intn(60)
			dummy := uint16(numBodies)
			pairs := make([]narrowphase.BodyPair, rng.Intn(80))
			for i := range pairs {
				a := uint16(rng.Intn(numBodies))
				b := uint16(rng.Intn(numBodies + 1))
				for b == a {
					b = uint16(rng.Intn(numBodies + 1))
				}
				pairs[i] = narrowphase.BodyPair{A: a, B: b}
			}

			checkPartition(t, pairs, numBodies, dummy, Build(pairs, numBodies, dummy, arena.New(0)))
		}
	})

	t.Run("empty", func(t *testing.T) {
		islands := Build(nil, 3, 3, arena.New(0))
		if islands.Len() != 0 {
			t.Errorf("Expected no island, got %d", islands.Len())
		}
	})

	t.Run("scratch memory is released", func(t *testing.T) {
		a := arena.New(0)
		pairs := []narrowphase.BodyPair{{A: 0, B: 1}}
		Build(pairs, 2, 2, a)

		// constraints, bodies, ends and body islands
		expected := 1*4 + 2*2 + 2*16 + 2*4
		if a.Used() != expected {
			t.Errorf("Expected %d bytes kept, got %d", expected, a.Used())
		}
	})

	t.Run("budget too small", func(t *testing.T) {
		pairs := []narrowphase.BodyPair{{A: 0, B: 1}, {A: 1, B: 2}}
		a := arena.New(16)
		islands := Build(pairs, 3, 3, a)
		if islands.Len() != 0 {
			t.Errorf("Expected no island, got %d", islands.Len())
		}
		if islands.BodyIsland(0) != -1 {
			t.Errorf("Expected no island for body 0, got %d", islands.BodyIsland(0))
		}
	})
}
