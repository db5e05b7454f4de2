package broadphase

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

func createSAP(n int) *SAP {
	sap := NewSAP()
	for i := 0; i < n; i++ {
		sap.Add(i)
	}
	return sap
}

func box(minX, minY, minZ, maxX, maxY, maxZ float64) geometry.AABB {
	return geometry.AABB{Min: mgl64.Vec3{minX, minY, minZ}, Max: mgl64.Vec3{maxX, maxY, maxZ}}
}

func randomBoxes(r *rand.Rand, n int, extent, size float64) []geometry.AABB {
	boxes := make([]geometry.AABB, n)
	for i := range boxes {
		center := mgl64.Vec3{r.Float64() * extent, r.Float64() * extent, r.Float64() * extent}
		radius := mgl64.Vec3{r.Float64() * size, r.Float64() * size, r.Float64() * size}
		boxes[i] = geometry.AABBFromCenterRadius(center, radius)
	}
	return boxes
}

func normalize(pairs []Pair) []Pair {
	result := make([]Pair, len(pairs))
	for i, p := range pairs {
		if p.A > p.B {
			p.A, p.B = p.B, p.A
		}
		result[i] = p
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].A != result[j].A {
			return result[i].A < result[j].A
		}
		return result[i].B < result[j].B
	})
	return result
}

func bruteForce(boxes []geometry.AABB) []Pair {
	var pairs []Pair
	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			if boxes[i].Overlaps(boxes[j]) {
				pairs = append(pairs, Pair{A: i, B: j})
			}
		}
	}
	return pairs
}

func equalPairs(a, b []Pair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func runPairs(sap *SAP, boxes []geometry.AABB, lanes bool) []Pair {
	out := make([]Pair, len(boxes)*len(boxes))
	n := sap.Pairs(boxes, arena.New(0), out, lanes)
	return normalize(out[:n])
}

func TestPairsMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for _, lanes := range []bool{false, true} {
		name := "scalar"
		if lanes {
			name = "lanes"
		}

		t.Run(name, func(t *testing.T) {
			for _, n := range []int{1, 2, 3, 5, 17, 64, 200} {
				boxes := randomBoxes(r, n, 20, 2)
				sap := createSAP(n)
				expected := bruteForce(boxes)

				// several steps so that the sorting axis changes and the endpoints are re-sorted
				for step := 0; step < 3; step++ {
					got := runPairs(sap, boxes, lanes)
					if !equalPairs(got, expected) {
						t.Fatalf("n=%d step=%d: Expected %d pairs, got %d", n, step, len(expected), len(got))
					}

					for i := range boxes {
						offset := mgl64.Vec3{r.Float64() - 0.5, r.Float64() - 0.5, r.Float64() - 0.5}
						boxes[i] = geometry.AABB{Min: boxes[i].Min.Add(offset), Max: boxes[i].Max.Add(offset)}
					}
					expected = bruteForce(boxes)
				}
			}
		})
	}
}

func TestPairsNoDuplicates(t *testing.T) {
	// identical boxes: every pair overlaps
	boxes := make([]geometry.AABB, 9)
	for i := range boxes {
		boxes[i] = box(0, 0, 0, 1, 1, 1)
	}

	for _, lanes := range []bool{false, true} {
		got := runPairs(createSAP(len(boxes)), boxes, lanes)
		if len(got) != 36 {
			t.Errorf("lanes=%v: Expected 36 pairs, got %d", lanes, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i] == got[i-1] {
				t.Errorf("lanes=%v: duplicate pair %v", lanes, got[i])
			}
		}
	}
}

func TestPairsTouching(t *testing.T) {
	boxes := []geometry.AABB{
		box(0, 0, 0, 1, 1, 1),
		box(1, 0, 0, 2, 1, 1),
		box(2.5, 0, 0, 3, 1, 1),
	}

	for _, lanes := range []bool{false, true} {
		got := runPairs(createSAP(len(boxes)), boxes, lanes)
		if len(got) != 1 || got[0] != (Pair{A: 0, B: 1}) {
			t.Errorf("lanes=%v: Expected [{0 1}], got %v", lanes, got)
		}
	}
}

func TestPairsOverflow(t *testing.T) {
	boxes := make([]geometry.AABB, 5)
	for i := range boxes {
		boxes[i] = box(0, 0, 0, 1, 1, 1)
	}

	sap := createSAP(len(boxes))
	out := make([]Pair, 4)
	n := sap.Pairs(boxes, arena.New(0), out, false)

	if n != 4 {
		t.Errorf("Expected 4 pairs written, got %d", n)
	}
	if sap.Overflow != 6 {
		t.Errorf("Expected overflow of 6, got %d", sap.Overflow)
	}
}

func TestPairsArenaBudget(t *testing.T) {
	boxes := []geometry.AABB{box(0, 0, 0, 1, 1, 1), box(0, 0, 0, 1, 1, 1)}
	sap := createSAP(len(boxes))

	a := arena.New(16)
	arena.Alloc[int8](a, 1)

	n := sap.Pairs(boxes, a, make([]Pair, 4), false)
	if n != 0 {
		t.Errorf("Expected 0 pairs with an exhausted arena, got %d", n)
	}
	if !a.Truncated() {
		t.Errorf("Expected arena to report truncation")
	}
	if a.Used() != 1 {
		t.Errorf("Expected scratch memory to be released, got %d bytes used", a.Used())
	}
}

func TestRemove(t *testing.T) {
	boxes := []geometry.AABB{
		box(0, 0, 0, 1, 1, 1),
		box(0.5, 0, 0, 1.5, 1, 1),
		box(10, 0, 0, 11, 1, 1),
		box(10.5, 0, 0, 11.5, 1, 1),
	}

	sap := createSAP(len(boxes))
	runPairs(sap, boxes, false)

	// removing collider 0 moves collider 3 into slot 0
	sap.Remove(0)
	boxes[0] = boxes[3]
	boxes = boxes[:3]

	if sap.Len() != 3 {
		t.Fatalf("Expected 3 colliders, got %d", sap.Len())
	}

	for _, lanes := range []bool{false, true} {
		got := runPairs(sap, boxes, lanes)
		expected := []Pair{{A: 0, B: 2}}
		if !equalPairs(got, expected) {
			t.Errorf("lanes=%v: Expected %v, got %v", lanes, expected, got)
		}
	}

	t.Run("indirection stays consistent", func(t *testing.T) {
		for id, ind := range sap.indirection {
			if sap.endpoints[ind.start].id != id || !sap.endpoints[ind.start].start {
				t.Errorf("collider %d: start endpoint mismatch", id)
			}
			if sap.endpoints[ind.end].id != id || sap.endpoints[ind.end].start {
				t.Errorf("collider %d: end endpoint mismatch", id)
			}
		}
	})
}

func TestClear(t *testing.T) {
	sap := createSAP(3)
	sap.SortingAxis = 2
	sap.Clear()

	if sap.Len() != 0 || len(sap.endpoints) != 0 {
		t.Errorf("Expected empty SAP, got %d colliders", sap.Len())
	}
	if sap.SortingAxis != 0 {
		t.Errorf("Expected sorting axis 0, got %d", sap.SortingAxis)
	}
	if n := sap.Pairs(nil, arena.New(0), nil, false); n != 0 {
		t.Errorf("Expected 0 pairs, got %d", n)
	}
}

func TestSortingAxis(t *testing.T) {
	tests := []struct {
		name     string
		offset   mgl64.Vec3
		expected int
	}{
		{"spread along x", mgl64.Vec3{5, 0, 0}, 0},
		{"spread along y", mgl64.Vec3{0, 5, 0}, 1},
		{"spread along z", mgl64.Vec3{0, 0, 5}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boxes := make([]geometry.AABB, 4)
			for i := range boxes {
				center := tt.offset.Mul(float64(i))
				boxes[i] = geometry.AABBFromCenterRadius(center, mgl64.Vec3{1, 1, 1})
			}

			sap := createSAP(len(boxes))
			runPairs(sap, boxes, false)

			if sap.SortingAxis != tt.expected {
				t.Errorf("Expected sorting axis %d, got %d", tt.expected, sap.SortingAxis)
			}
		})
	}
}
