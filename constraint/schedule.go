package constraint

import (
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
)

// Lanes is the width of a batch.
const Lanes = 4

const scheduleBuckets = 4

// Batch holds the indices of Lanes rows that share no body. Partially filled
// batches repeat their first index in the unused lanes.
type Batch [Lanes]int

// Schedule is the packing of rows into batches.
type Schedule struct {
	Batches []Batch
	// Rows is the number of scheduled rows.
	Rows int
}

// FillRate returns the ratio of distinct rows to lanes, 1 when every lane does useful work.
func (s Schedule) FillRate() float64 {
	if len(s.Batches) == 0 {
		return 0
	}
	return float64(s.Rows) / float64(len(s.Batches)*Lanes)
}

type slot struct {
	pairs   [Lanes]narrowphase.BodyPair
	indices [Lanes]int
	used    int
}

// conflicts reports whether a row touching bodies a and b cannot join the slot.
// The comparison uses the stored indices, so a dummy already in the slot never
// conflicts.
func (s *slot) conflicts(a, b uint16) bool {
	for i := 0; i < s.used; i++ {
		p := s.pairs[i]
		if p.A == a || p.B == a || p.A == b || p.B == b {
			return true
		}
	}
	return false
}

// ScheduleLanes packs the rows given by their body pairs into batches in which
// no body appears twice, so a batch can be gathered, solved and scattered
// without write conflicts. The dummy body never writes its velocity back, so it
// may appear any number of times in a batch.
//
// Rows are spread over four buckets by index, and each row takes the first lane
// of the first slot of its bucket it does not conflict with. Full slots are
// committed right away. The returned schedule is empty when the arena could
// not hold it.
func ScheduleLanes(pairs []narrowphase.BodyPair, dummy uint16, a *arena.Arena) Schedule {
	if len(pairs) == 0 {
		return Schedule{}
	}

	batches := arena.Alloc[Batch](a, len(pairs))
	if len(batches) < len(pairs) {
		return Schedule{}
	}

	marker := a.Marker()
	defer a.Reset(marker)

	perBucket := (len(pairs) + scheduleBuckets - 1) / scheduleBuckets
	var buckets [scheduleBuckets][]slot
	var counts [scheduleBuckets]int
	for i := range buckets {
		buckets[i] = arena.Alloc[slot](a, perBucket)
		if len(buckets[i]) < perBucket {
			return Schedule{}
		}
	}

	committed := 0
	for i, pair := range pairs {
		rbA, rbB := pair.A, pair.B
		if rbA == dummy {
			rbA = rbB
		}
		if rbB == dummy {
			rbB = rbA
		}

		bucket := i % scheduleBuckets
		slots := buckets[bucket]
		count := &counts[bucket]

		j := 0
		for j < *count && slots[j].conflicts(rbA, rbB) {
			j++
		}

		s := &slots[j]
		lane := s.used
		s.pairs[lane] = pair
		s.indices[lane] = i
		s.used++

		if j == *count {
			*count++
		}
		if s.used == Lanes {
			batches[committed] = s.indices
			committed++

			// swap and pop
			*count--
			slots[j] = slots[*count]
			slots[*count] = slot{}
		}
	}

	for bucket := range buckets {
		for _, s := range buckets[bucket][:counts[bucket]] {
			for lane := s.used; lane < Lanes; lane++ {
				s.indices[lane] = s.indices[0]
			}
			batches[committed] = s.indices
			committed++
		}
	}

	return Schedule{Batches: batches[:committed], Rows: len(pairs)}
}
