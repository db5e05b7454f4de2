// Package arena provides the step-scoped scratch allocator used by the physics step.
//
// Memory is carved from per-type slabs. A Marker captures the allocation state,
// and Reset rewinds every slab to it, so scratch buffers allocated during a
// sub-phase are reclaimed in one call without returning anything to the GC.
// An optional byte budget bounds peak usage: allocations that would exceed it
// are truncated instead of failing, and callers process what they received.
package arena

import (
	"reflect"
)

const minSlabCapacity = 64

// Marker is a snapshot of the arena allocation state.
type Marker struct {
	used int
	log  int
}

type rewinder interface {
	rewind(chunk, offset int)
}

type allocation struct {
	slab   rewinder
	chunk  int
	offset int
	bytes  int
}

type slab[T any] struct {
	buf   []T
	off   int
	chunk int
}

func (s *slab[T]) rewind(chunk, offset int) {
	if chunk == s.chunk {
		s.off = offset
		return
	}
	// The chunk was replaced after the marker, so nothing in it predates the marker.
	s.off = 0
}

// Truncation describes the first allocation cut short by the budget.
type Truncation struct {
	Type      string
	Requested int
	Granted   int
}

// Arena is not safe for concurrent use.
type Arena struct {
	budget     int
	used       int
	peak       int
	truncated  bool
	truncation Truncation
	slabs      map[reflect.Type]any
	log        []allocation
}

// New creates an arena. A budget of 0 disables the byte limit.
func New(budget int) *Arena {
	return &Arena{
		budget: budget,
		slabs:  make(map[reflect.Type]any),
		log:    make([]allocation, 0, 64),
	}
}

func (a *Arena) Marker() Marker {
	return Marker{used: a.used, log: len(a.log)}
}

// Reset rewinds the arena to m. Slices handed out after m must not be used afterwards.
func (a *Arena) Reset(m Marker) {
	for i := len(a.log) - 1; i >= m.log; i-- {
		e := a.log[i]
		e.slab.rewind(e.chunk, e.offset)
	}
	a.log = a.log[:m.log]
	a.used = m.used
	if m.log == 0 {
		a.truncated = false
	}
}

// Used returns the number of bytes currently allocated.
func (a *Arena) Used() int {
	return a.used
}

// Peak returns the highest number of bytes allocated since creation.
func (a *Arena) Peak() int {
	return a.peak
}

// Truncated reports whether an allocation was cut short by the budget since the last full reset.
func (a *Arena) Truncated() bool {
	return a.truncated
}

// FirstTruncation returns the first allocation cut short since the last full reset.
func (a *Arena) FirstTruncation() (Truncation, bool) {
	return a.truncation, a.truncated
}

func (a *Arena) Budget() int {
	return a.budget
}

// Alloc returns a zeroed slice of n elements. When the budget cannot hold n
// elements, the returned slice is shorter, possibly empty.
func Alloc[T any](a *Arena, n int) []T {
	if n <= 0 {
		return nil
	}

	typ := reflect.TypeFor[T]()
	size := int(typ.Size())

	if a.budget > 0 && size > 0 {
		available := (a.budget - a.used) / size
		if available < n {
			granted := max(available, 0)
			if !a.truncated {
				a.truncation = Truncation{Type: typ.String(), Requested: n, Granted: granted}
			}
			a.truncated = true
			n = granted
			if n == 0 {
				return nil
			}
		}
	}

	s, ok := a.slabs[typ].(*slab[T])
	if !ok {
		s = &slab[T]{}
		a.slabs[typ] = s
	}

	a.log = append(a.log, allocation{slab: s, chunk: s.chunk, offset: s.off, bytes: n * size})

	if cap(s.buf)-s.off < n {
		s.buf = make([]T, max(2*cap(s.buf), n, minSlabCapacity))
		s.off = 0
		s.chunk++
	}

	out := s.buf[s.off : s.off+n : s.off+n]
	clear(out)
	s.off += n

	a.used += n * size
	a.peak = max(a.peak, a.used)

	return out
}
