// Package terrain implements a heightmap collider.
//
// A heightmap is a square grid of segments x segments cells. Every cell is split
// into two triangles. Min/max heights are kept in a mip chain, so that a
// quadtree descent skips whole regions above or below a query volume.
package terrain

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidSegments = errors.New("terrain: segments must be a positive power of two")
	ErrHeightCount     = errors.New("terrain: wrong number of heights")
)

type minMax struct {
	min, max float64
}

type Heightmap struct {
	segments  int
	cellSize  float64
	minCorner mgl64.Vec3

	// heights are relative to minCorner.Y, (segments+1)^2 values in rows of constant z.
	heights []float64
	// mips[0] holds one entry per cell, the last level a single entry.
	mips [][]minMax
}

// New creates a heightmap whose cell (0, 0) starts at minCorner.
func New(segments int, cellSize float64, minCorner mgl64.Vec3, heights []float64) (*Heightmap, error) {
	if segments <= 0 || segments&(segments-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSegments, segments)
	}

	h := &Heightmap{
		segments:  segments,
		cellSize:  cellSize,
		minCorner: minCorner,
		heights:   make([]float64, (segments+1)*(segments+1)),
	}

	levels := 1
	for n := segments; n > 1; n >>= 1 {
		levels++
	}
	h.mips = make([][]minMax, levels)
	for level := range h.mips {
		n := segments >> level
		h.mips[level] = make([]minMax, n*n)
	}

	if err := h.SetHeights(heights); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Heightmap) Segments() int {
	return h.segments
}

func (h *Heightmap) CellSize() float64 {
	return h.cellSize
}

func (h *Heightmap) MinCorner() mgl64.Vec3 {
	return h.minCorner
}

// Bounds returns the box enclosing the whole terrain.
func (h *Heightmap) Bounds() geometry.AABB {
	top := h.mips[len(h.mips)-1][0]
	size := float64(h.segments) * h.cellSize
	return geometry.AABB{
		Min: h.minCorner.Add(mgl64.Vec3{0, top.min, 0}),
		Max: h.minCorner.Add(mgl64.Vec3{size, top.max, size}),
	}
}

// SetHeights replaces all heights and rebuilds the mips.
func (h *Heightmap) SetHeights(heights []float64) error {
	if len(heights) != len(h.heights) {
		return fmt.Errorf("%w: got %d, expected %d", ErrHeightCount, len(heights), len(h.heights))
	}
	copy(h.heights, heights)
	h.buildMips()
	return nil
}

func (h *Heightmap) at(x, z int) float64 {
	return h.heights[z*(h.segments+1)+x]
}

func (h *Heightmap) buildMips() {
	n := h.segments
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			a, b, c, d := h.at(x, z), h.at(x, z+1), h.at(x+1, z), h.at(x+1, z+1)
			h.mips[0][z*n+x] = minMax{
				min: math.Min(math.Min(a, b), math.Min(c, d)),
				max: math.Max(math.Max(a, b), math.Max(c, d)),
			}
		}
	}

	for level := 1; level < len(h.mips); level++ {
		n := h.segments >> level
		children := h.mips[level-1]
		for z := 0; z < n; z++ {
			for x := 0; x < n; x++ {
				m := minMax{min: math.MaxFloat64, max: -math.MaxFloat64}
				for _, child := range [4]int{
					(2*z)*(2*n) + 2*x,
					(2*z)*(2*n) + 2*x + 1,
					(2*z+1)*(2*n) + 2*x,
					(2*z+1)*(2*n) + 2*x + 1,
				} {
					m.min = math.Min(m.min, children[child].min)
					m.max = math.Max(m.max, children[child].max)
				}
				h.mips[level][z*n+x] = m
			}
		}
	}
}

// Height returns the terrain height at world position (x, z), following the
// triangulation. Positions outside the terrain are clamped to its border.
func (h *Heightmap) Height(x, z float64) float64 {
	fx := (x - h.minCorner.X()) / h.cellSize
	fz := (z - h.minCorner.Z()) / h.cellSize

	limit := float64(h.segments)
	fx = math.Max(0, math.Min(fx, limit))
	fz = math.Max(0, math.Min(fz, limit))

	cx := min(int(fx), h.segments-1)
	cz := min(int(fz), h.segments-1)
	u := fx - float64(cx)
	v := fz - float64(cz)

	a, b, c, d := h.at(cx, cz), h.at(cx, cz+1), h.at(cx+1, cz), h.at(cx+1, cz+1)

	var height float64
	if u+v <= 1 {
		// triangle a, b, c
		height = a + (c-a)*u + (b-a)*v
	} else {
		// triangle c, b, d
		height = d + (b-d)*(1-u) + (c-d)*(1-v)
	}
	return h.minCorner.Y() + height
}

func (h *Heightmap) vertex(x, z int) mgl64.Vec3 {
	return h.minCorner.Add(mgl64.Vec3{float64(x) * h.cellSize, h.at(x, z), float64(z) * h.cellSize})
}

type stackEntry struct {
	level int
	x, z  int
}

// IterateTrianglesInVolume calls fn for both triangles of every cell whose XZ
// range and height range intersect volume. Triangles are wound counter-clockwise
// seen from above.
func (h *Heightmap) IterateTrianglesInVolume(volume geometry.AABB, a *arena.Arena, fn func(a, b, c mgl64.Vec3)) {
	local := geometry.AABB{Min: volume.Min.Sub(h.minCorner), Max: volume.Max.Sub(h.minCorner)}

	size := float64(h.segments) * h.cellSize
	if local.Max.X() < 0 || local.Max.Z() < 0 || local.Min.X() > size || local.Min.Z() > size {
		return
	}

	last := h.segments - 1
	minX := max(int(math.Floor(local.Min.X()/h.cellSize)), 0)
	minZ := max(int(math.Floor(local.Min.Z()/h.cellSize)), 0)
	maxX := min(int(math.Floor(local.Max.X()/h.cellSize)), last)
	maxZ := min(int(math.Floor(local.Max.Z()/h.cellSize)), last)

	marker := a.Marker()
	defer a.Reset(marker)

	// a depth-first descent holds at most three siblings per level plus the current node
	stack := arena.Alloc[stackEntry](a, 3*len(h.mips)+1)
	if len(stack) == 0 {
		return
	}
	stack[0] = stackEntry{level: len(h.mips) - 1}
	top := 1

	for top > 0 {
		top--
		entry := stack[top]

		cellMinX := entry.x << entry.level
		cellMinZ := entry.z << entry.level
		cellMaxX := ((entry.x + 1) << entry.level) - 1
		cellMaxZ := ((entry.z + 1) << entry.level) - 1

		if cellMaxX < minX || cellMinX > maxX || cellMaxZ < minZ || cellMinZ > maxZ {
			continue
		}

		n := h.segments >> entry.level
		m := h.mips[entry.level][entry.z*n+entry.x]
		if m.max < local.Min.Y() || m.min > local.Max.Y() {
			continue
		}

		if entry.level == 0 {
			va := h.vertex(entry.x, entry.z)
			vb := h.vertex(entry.x, entry.z+1)
			vc := h.vertex(entry.x+1, entry.z)
			vd := h.vertex(entry.x+1, entry.z+1)

			fn(va, vb, vc)
			fn(vc, vb, vd)
			continue
		}

		for _, child := range [4]stackEntry{
			{entry.level - 1, 2 * entry.x, 2 * entry.z},
			{entry.level - 1, 2 * entry.x, 2*entry.z + 1},
			{entry.level - 1, 2*entry.x + 1, 2 * entry.z},
			{entry.level - 1, 2*entry.x + 1, 2*entry.z + 1},
		} {
			if top == len(stack) {
				// truncated by the arena budget
				break
			}
			stack[top] = child
			top++
		}
	}
}
