// Package island groups the bodies of a step into connected components, linked
// by the contacts and joints they share.
package island

import (
	"slices"

	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
)

// Island is one connected component. Constraints holds sorted indices into the
// body pairs given to Build.
type Island struct {
	Constraints []uint32
	Bodies      []uint16
}

type span struct {
	constraints, bodies int
}

// Islands is the partition of a step. Its memory lives in the step arena.
type Islands struct {
	constraints []uint32
	bodies      []uint16
	// ends of each island in constraints and bodies
	ends       []span
	bodyIsland []int32
}

// reference is one half of a body pair, seen from one of its bodies.
type reference struct {
	other uint16
	pair  uint32
}

// Build partitions the bodies touched by pairs into islands with a depth-first
// walk. The dummy body is never pushed, so a static anchor shared by two
// stacks of bodies does not merge them, and it is never a member.
//
// Output buffers are carved from a and stay valid until the caller resets it.
// When the budget cannot hold the walk, Build returns no island.
func Build(pairs []narrowphase.BodyPair, numBodies int, dummy uint16, a *arena.Arena) Islands {
	// the dummy may sit past the real bodies
	count := max(numBodies, int(dummy)+1)

	out := Islands{
		constraints: arena.Alloc[uint32](a, len(pairs)),
		bodies:      arena.Alloc[uint16](a, numBodies),
		ends:        arena.Alloc[span](a, numBodies),
		bodyIsland:  arena.Alloc[int32](a, numBodies),
	}
	if len(out.constraints) < len(pairs) || len(out.bodies) < numBodies ||
		len(out.ends) < numBodies || len(out.bodyIsland) < numBodies {
		return Islands{}
	}
	for i := range out.bodyIsland {
		out.bodyIsland[i] = -1
	}

	marker := a.Marker()
	defer a.Reset(marker)

	// adjacency: references[offsets[b] : offsets[b]+counts[b]] are the pairs of b
	counts := arena.Alloc[uint32](a, count)
	offsets := arena.Alloc[uint32](a, count)
	cursor := arena.Alloc[uint32](a, count)
	references := arena.Alloc[reference](a, 2*len(pairs))
	stack := arena.Alloc[uint16](a, count)
	visited := arena.Alloc[bool](a, count)
	onStack := arena.Alloc[bool](a, count)
	if len(counts) < count || len(offsets) < count || len(cursor) < count ||
		len(references) < 2*len(pairs) || len(stack) < count || len(visited) < count || len(onStack) < count {
		return Islands{}
	}

	for _, p := range pairs {
		counts[p.A]++
		counts[p.B]++
	}

	var offset uint32
	for i := range count {
		offsets[i] = offset
		offset += counts[i]
	}
	copy(cursor, offsets)

	for i, p := range pairs {
		references[cursor[p.A]] = reference{other: p.B, pair: uint32(i)}
		cursor[p.A]++
		references[cursor[p.B]] = reference{other: p.A, pair: uint32(i)}
		cursor[p.B]++
	}

	var numIslands, numConstraints, numMembers int
	for seed := range numBodies {
		body := uint16(seed)
		if visited[body] || body == dummy || counts[body] == 0 {
			continue
		}

		firstConstraint, firstMember := numConstraints, numMembers

		stack[0] = body
		onStack[body] = true
		top := 1

		for top > 0 {
			top--
			current := stack[top]
			visited[current] = true

			out.bodies[numMembers] = current
			out.bodyIsland[current] = int32(numIslands)
			numMembers++

			start := offsets[current]
			for _, ref := range references[start : start+counts[current]] {
				if !onStack[ref.other] && ref.other != dummy {
					onStack[ref.other] = true
					stack[top] = ref.other
					top++
				}

				// each pair is recorded from whichever of its bodies is visited first
				if !visited[ref.other] {
					out.constraints[numConstraints] = ref.pair
					numConstraints++
				}
			}
		}

		slices.Sort(out.constraints[firstConstraint:numConstraints])
		slices.Sort(out.bodies[firstMember:numMembers])

		out.ends[numIslands] = span{constraints: numConstraints, bodies: numMembers}
		numIslands++
	}

	out.constraints = out.constraints[:numConstraints]
	out.bodies = out.bodies[:numMembers]
	out.ends = out.ends[:numIslands]
	return out
}

// Len returns the number of islands.
func (is Islands) Len() int {
	return len(is.ends)
}

// Island returns the i-th island. Its slices alias the partition.
func (is Islands) Island(i int) Island {
	var begin span
	if i > 0 {
		begin = is.ends[i-1]
	}
	end := is.ends[i]
	return Island{
		Constraints: is.constraints[begin.constraints:end.constraints],
		Bodies:      is.bodies[begin.bodies:end.bodies],
	}
}

// BodyIsland returns the island of a body, or -1 when the body touches no
// constraint this step.
func (is Islands) BodyIsland(body uint16) int {
	if int(body) >= len(is.bodyIsland) {
		return -1
	}
	return int(is.bodyIsland[body])
}

// Constraints returns the number of constraints spread over every island.
func (is Islands) Constraints() int {
	return len(is.constraints)
}
