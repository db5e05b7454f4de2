package constraint

import (
	"math/rand"
	"testing"
	"unsafe"

	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
)

// checkSchedule verifies that every row is scheduled exactly once, that padded
// lanes repeat lane 0 and that no batch holds a body twice, the dummy aside.
func checkSchedule(t *testing.T, pairs []narrowphase.BodyPair, dummy uint16, s Schedule) {
	t.Helper()

	seen := make([]int, len(pairs))
	for b, batch := range s.Batches {
		bodies := make(map[uint16]int)
		rows := make(map[int]bool)

		for lane, index := range batch {
			if rows[index] {
				if index != batch[0] {
					t.Errorf("batch %d lane %d: expected padding to repeat lane 0, got row %d", b, lane, index)
				}
				continue
			}
			rows[index] = true
			seen[index]++

			for _, body := range []uint16{pairs[index].A, pairs[index].B} {
				if body == dummy {
					continue
				}
				bodies[body]++
				if bodies[body] > 1 {
					t.Errorf("batch %d: expected body %d once, got it twice", b, body)
				}
			}
		}
	}

	for i, n := range seen {
		if n != 1 {
			t.Errorf("Expected row %d scheduled once, got %d", i, n)
		}
	}
	if s.Rows != len(pairs) {
		t.Errorf("Expected %d rows, got %d", len(pairs), s.Rows)
	}
}

func TestScheduleLanes(t *testing.T) {
	const dummy = 100

	t.Run("independent rows fill every lane", func(t *testing.T) {
		pairs := make([]narrowphase.BodyPair, 16)
		for i := range pairs {
			pairs[i] = narrowphase.BodyPair{A: uint16(2 * i), B: uint16(2*i + 1)}
		}

		s := ScheduleLanes(pairs, dummy, arena.New(0))
		checkSchedule(t, pairs, dummy, s)

		if len(s.Batches) != 4 {
			t.Errorf("Expected 4 batches, got %d", len(s.Batches))
		}
		if s.FillRate() != 1 {
			t.Errorf("Expected a fill rate of 1, got %v", s.FillRate())
		}
	})

	t.Run("the dummy does not conflict", func(t *testing.T) {
		pairs := make([]narrowphase.BodyPair, 16)
		for i := range pairs {
			pairs[i] = narrowphase.BodyPair{A: uint16(i), B: dummy}
		}

		s := ScheduleLanes(pairs, dummy, arena.New(0))
		checkSchedule(t, pairs, dummy, s)

		if len(s.Batches) != 4 {
			t.Errorf("Expected 4 batches, got %d", len(s.Batches))
		}
	})

	t.Run("conflicting rows are split", func(t *testing.T) {
		pairs := make([]narrowphase.BodyPair, 8)
		for i := range pairs {
			pairs[i] = narrowphase.BodyPair{A: 0, B: 1}
		}

		s := ScheduleLanes(pairs, dummy, arena.New(0))
		checkSchedule(t, pairs, dummy, s)

		if len(s.Batches) != 8 {
			t.Errorf("Expected 8 batches, got %d", len(s.Batches))
		}
		for _, batch := range s.Batches {
			if batch != (Batch{batch[0], batch[0], batch[0], batch[0]}) {
				t.Errorf("Expected a batch padded with its only row, got %v", batch)
			}
		}
	})

	t.Run("random rows", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		pairs := make([]narrowphase.BodyPair, 300)
		for i := range pairs {
			a := uint16(rng.Intn(40))
			b := uint16(rng.Intn(40))
			for b == a {
				b = uint16(rng.Intn(40))
			}
			if rng.Intn(4) == 0 {
				b = dummy
			}
			pairs[i] = narrowphase.BodyPair{A: a, B: b}
		}

		s := ScheduleLanes(pairs, dummy, arena.New(0))
		checkSchedule(t, pairs, dummy, s)
	})

	t.Run("empty", func(t *testing.T) {
		if s := ScheduleLanes(nil, dummy, arena.New(0)); len(s.Batches) != 0 || s.FillRate() != 0 {
			t.Errorf("Expected an empty schedule, got %+v", s)
		}
	})

	t.Run("scratch memory is released", func(t *testing.T) {
		pairs := []narrowphase.BodyPair{{A: 0, B: 1}, {A: 1, B: 2}, {A: 2, B: 3}}
		a := arena.New(0)
		s := ScheduleLanes(pairs, dummy, a)

		batchBytes := len(pairs) * int(unsafe.Sizeof(Batch{}))
		if a.Used() != batchBytes {
			t.Errorf("Expected only the batches to stay allocated (%d bytes), got %d", batchBytes, a.Used())
		}
		checkSchedule(t, pairs, dummy, s)
	})
}
