// Package broadphase prunes collider pairs with a persistent sweep-and-prune.
//
// Endpoints of every collider interval on the sorting axis are kept between
// steps. Since bodies move little from one step to the next, the endpoint
// array stays nearly sorted and insertion sort runs in close to linear time.
// After each sweep the sorting axis switches to the axis along which the
// collider centers are the most spread out.
package broadphase

import (
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/geometry"
)

// Pair is a pair of collider indices whose bounding boxes overlap.
type Pair struct {
	A, B int
}

type endpoint struct {
	value float64
	id    int
	start bool
}

type indirection struct {
	start, end int
}

// SAP is the persistent sweep-and-prune state.
//
// Collider ids are dense: they always cover [0, Len()). Remove moves the last
// id into the freed slot, mirroring a swap-remove of the caller's collider slice.
type SAP struct {
	endpoints   []endpoint
	indirection []indirection

	// SortingAxis is the axis used by the next call to Pairs.
	SortingAxis int
	// Overflow is the number of pairs the last call to Pairs could not write.
	Overflow int
}

func NewSAP() *SAP {
	return &SAP{}
}

// Len returns the number of registered colliders.
func (s *SAP) Len() int {
	return len(s.indirection)
}

// Add registers the collider with the given id, which must be Len().
func (s *SAP) Add(id int) {
	if id != len(s.indirection) {
		panic("broadphase: collider ids must be dense")
	}

	s.indirection = append(s.indirection, indirection{start: len(s.endpoints), end: len(s.endpoints) + 1})
	s.endpoints = append(s.endpoints, endpoint{id: id, start: true}, endpoint{id: id, start: false})
}

// Remove unregisters id. The collider holding the last id takes id over.
func (s *SAP) Remove(id int) {
	if id < 0 || id >= len(s.indirection) {
		return
	}

	s.removeEndpoint(s.indirection[id].start)
	s.removeEndpoint(s.indirection[id].end)

	last := len(s.indirection) - 1
	if id != last {
		moved := s.indirection[last]
		s.indirection[id] = moved
		s.endpoints[moved.start].id = id
		s.endpoints[moved.end].id = id
	}
	s.indirection = s.indirection[:last]
}

// removeEndpoint swaps the last endpoint into index and points its owner at the new slot.
func (s *SAP) removeEndpoint(index int) {
	lastIndex := len(s.endpoints) - 1
	last := s.endpoints[lastIndex]
	s.endpoints[index] = last

	if last.start {
		s.indirection[last.id].start = index
	} else {
		s.indirection[last.id].end = index
	}

	s.endpoints = s.endpoints[:lastIndex]
}

func (s *SAP) Clear() {
	s.endpoints = s.endpoints[:0]
	s.indirection = s.indirection[:0]
	s.SortingAxis = 0
	s.Overflow = 0
}

// Pairs writes every overlapping pair of bounding boxes into out and returns
// the number written. aabbs is indexed by collider id and must hold Len() boxes.
// Touching boxes overlap. Scratch memory comes from a and is released before returning.
//
// With lanes set, the active list is stored four boxes at a time and each
// entering box is tested against a whole block at once.
func (s *SAP) Pairs(aabbs []geometry.AABB, a *arena.Arena, out []Pair, lanes bool) int {
	s.Overflow = 0

	n := len(s.indirection)
	if n == 0 || len(aabbs) < n {
		return 0
	}

	var sum, sumSq [3]float64
	axis := s.SortingAxis

	for id, ind := range s.indirection {
		box := aabbs[id]
		s.endpoints[ind.start].value = box.Min[axis]
		s.endpoints[ind.end].value = box.Max[axis]

		center := box.Centroid()
		for i := 0; i < 3; i++ {
			sum[i] += center[i]
			sumSq[i] += center[i] * center[i]
		}
	}

	s.sort()

	marker := a.Marker()
	var count int
	if lanes {
		count = s.sweepLanes(aabbs, a, out)
	} else {
		count = s.sweep(aabbs, a, out)
	}
	a.Reset(marker)

	for i, ep := range s.endpoints {
		if ep.start {
			s.indirection[ep.id].start = i
		} else {
			s.indirection[ep.id].end = i
		}
	}

	s.SortingAxis = largestVariance(sum, sumSq, float64(n))

	return count
}

// sort is an insertion sort. Starts sort before ends of equal value, so that
// touching intervals are both active when the second one starts.
func (s *SAP) sort() {
	for i := 1; i < len(s.endpoints); i++ {
		key := s.endpoints[i]
		j := i - 1
		for j >= 0 && less(key, s.endpoints[j]) {
			s.endpoints[j+1] = s.endpoints[j]
			j--
		}
		s.endpoints[j+1] = key
	}
}

func less(a, b endpoint) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	return a.start && !b.start
}

func (s *SAP) emit(out []Pair, count int, a, b int) int {
	if count < len(out) {
		out[count] = Pair{A: a, B: b}
		return count + 1
	}
	s.Overflow++
	return count
}

func (s *SAP) sweep(aabbs []geometry.AABB, a *arena.Arena, out []Pair) int {
	n := len(s.indirection)
	active := arena.Alloc[int](a, n)
	position := arena.Alloc[int](a, n)
	if len(active) < n || len(position) < n {
		return 0
	}

	count := 0
	numActive := 0

	for _, ep := range s.endpoints {
		if ep.start {
			box := aabbs[ep.id]
			for i := 0; i < numActive; i++ {
				if box.Overlaps(aabbs[active[i]]) {
					count = s.emit(out, count, ep.id, active[i])
				}
			}

			position[ep.id] = numActive
			active[numActive] = ep.id
			numActive++
			continue
		}

		pos := position[ep.id]
		last := active[numActive-1]
		position[last] = pos
		active[pos] = last
		numActive--
	}

	return count
}

// laneBlock stores four active boxes as structure of arrays.
type laneBlock struct {
	min [3][4]float64
	max [3][4]float64
	ids [4]int
}

func (b *laneBlock) set(lane int, id int, box geometry.AABB) {
	for i := 0; i < 3; i++ {
		b.min[i][lane] = box.Min[i]
		b.max[i][lane] = box.Max[i]
	}
	b.ids[lane] = id
}

func (b *laneBlock) copyLane(lane int, from *laneBlock, fromLane int) {
	for i := 0; i < 3; i++ {
		b.min[i][lane] = from.min[i][fromLane]
		b.max[i][lane] = from.max[i][fromLane]
	}
	b.ids[lane] = from.ids[fromLane]
}

// overlapMask tests box against the first valid lanes and returns one bit per overlapping lane.
func (b *laneBlock) overlapMask(box geometry.AABB, valid int) uint8 {
	var mask uint8
	for lane := 0; lane < 4; lane++ {
		overlap := box.Max[0] >= b.min[0][lane] && box.Min[0] <= b.max[0][lane] &&
			box.Max[1] >= b.min[1][lane] && box.Min[1] <= b.max[1][lane] &&
			box.Max[2] >= b.min[2][lane] && box.Min[2] <= b.max[2][lane]
		if overlap {
			mask |= 1 << lane
		}
	}
	return mask & (1<<valid - 1)
}

func (s *SAP) sweepLanes(aabbs []geometry.AABB, a *arena.Arena, out []Pair) int {
	n := len(s.indirection)
	numBlocks := (n + 3) / 4
	blocks := arena.Alloc[laneBlock](a, numBlocks)
	position := arena.Alloc[int](a, n)
	if len(blocks) < numBlocks || len(position) < n {
		return 0
	}

	count := 0
	numActive := 0

	for _, ep := range s.endpoints {
		if ep.start {
			box := aabbs[ep.id]
			for blockIndex := 0; blockIndex*4 < numActive; blockIndex++ {
				block := &blocks[blockIndex]
				mask := block.overlapMask(box, min(numActive-blockIndex*4, 4))
				for lane := 0; mask != 0; lane++ {
					if mask&1 != 0 {
						count = s.emit(out, count, ep.id, block.ids[lane])
					}
					mask >>= 1
				}
			}

			position[ep.id] = numActive
			blocks[numActive/4].set(numActive%4, ep.id, box)
			numActive++
			continue
		}

		pos := position[ep.id]
		lastPos := numActive - 1
		lastBlock := &blocks[lastPos/4]
		lastID := lastBlock.ids[lastPos%4]

		blocks[pos/4].copyLane(pos%4, lastBlock, lastPos%4)
		position[lastID] = pos
		numActive--
	}

	return count
}

func largestVariance(sum, sumSq [3]float64, n float64) int {
	var variance [3]float64
	for i := 0; i < 3; i++ {
		variance[i] = sumSq[i] - sum[i]*sum[i]/n
	}

	if variance[0] > variance[1] {
		if variance[0] > variance[2] {
			return 0
		}
		return 2
	}
	if variance[1] > variance[2] {
		return 1
	}
	return 2
}
