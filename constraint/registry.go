package constraint

import (
	"errors"
	"iter"
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidHandle = errors.New("invalid constraint handle")
	ErrSameBody      = errors.New("constraint endpoints are the same body")
)

// Kind is the type of a constraint.
type Kind uint8

const (
	KindDistance Kind = iota
	KindBall
	KindHinge
	KindConeTwist
)

func (k Kind) String() string {
	switch k {
	case KindDistance:
		return "distance"
	case KindBall:
		return "ball"
	case KindHinge:
		return "hinge"
	case KindConeTwist:
		return "cone-twist"
	default:
		return "unknown"
	}
}

// Handle identifies a constraint in a Registry. A handle goes stale when its
// constraint is deleted, even if the slot is reused.
type Handle struct {
	Kind       Kind
	Index      uint32
	Generation uint32
}

const noEdge = -1

// edge links a constraint into the list of one of its bodies.
type edge struct {
	handle     Handle
	prev, next int32
}

type entry[T any] struct {
	value      T
	bodyA      uint64
	bodyB      uint64
	edgeA      int32
	edgeB      int32
	generation uint32
	alive      bool
}

// pool stores constraints at stable indices and recycles freed slots.
type pool[T any] struct {
	entries []entry[T]
	free    []uint32
	alive   int
}

func (p *pool[T]) add(value T) uint32 {
	var index uint32
	if n := len(p.free); n > 0 {
		index = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		index = uint32(len(p.entries))
		p.entries = append(p.entries, entry[T]{})
	}

	e := &p.entries[index]
	e.value = value
	e.alive = true
	p.alive++
	return index
}

func (p *pool[T]) get(h Handle) (*entry[T], bool) {
	if int(h.Index) >= len(p.entries) {
		return nil, false
	}
	e := &p.entries[h.Index]
	if !e.alive || e.generation != h.Generation {
		return nil, false
	}
	return e, true
}

func (p *pool[T]) remove(index uint32) {
	e := &p.entries[index]
	var zero T
	e.value = zero
	e.alive = false
	e.generation++
	p.free = append(p.free, index)
	p.alive--
}

func (p *pool[T]) clear() {
	for i := range p.entries {
		if p.entries[i].alive {
			p.remove(uint32(i))
		}
	}
}

// Registry owns the joints of a world. Each body keeps a doubly linked list of
// the constraints it takes part in, so that removing a body removes its
// constraints without scanning the pools.
type Registry struct {
	distance  pool[DistanceConstraint]
	ball      pool[BallConstraint]
	hinge     pool[HingeConstraint]
	coneTwist pool[ConeTwistConstraint]

	edges     []edge
	freeEdges []int32
	firstEdge map[uint64]int32
}

func NewRegistry() *Registry {
	return &Registry{firstEdge: make(map[uint64]int32)}
}

// Len returns the number of live constraints.
func (r *Registry) Len() int {
	return r.distance.alive + r.ball.alive + r.hinge.alive + r.coneTwist.alive
}

func (r *Registry) addEdge(body uint64, h Handle) int32 {
	var index int32
	if n := len(r.freeEdges); n > 0 {
		index = r.freeEdges[n-1]
		r.freeEdges = r.freeEdges[:n-1]
	} else {
		index = int32(len(r.edges))
		r.edges = append(r.edges, edge{})
	}

	first, ok := r.firstEdge[body]
	if !ok {
		first = noEdge
	}

	r.edges[index] = edge{handle: h, prev: noEdge, next: first}
	if first != noEdge {
		r.edges[first].prev = index
	}
	r.firstEdge[body] = index
	return index
}

func (r *Registry) removeEdge(body uint64, index int32) {
	e := r.edges[index]
	if e.prev != noEdge {
		r.edges[e.prev].next = e.next
	} else if e.next != noEdge {
		r.firstEdge[body] = e.next
	} else {
		delete(r.firstEdge, body)
	}
	if e.next != noEdge {
		r.edges[e.next].prev = e.prev
	}

	r.edges[index] = edge{prev: noEdge, next: noEdge}
	r.freeEdges = append(r.freeEdges, index)
}

func insert[T any](r *Registry, p *pool[T], kind Kind, a, b *actor.Body, value T) (Handle, error) {
	if a == nil || b == nil {
		return Handle{}, ErrInvalidHandle
	}
	if a == b || a.ID == b.ID {
		return Handle{}, ErrSameBody
	}

	index := p.add(value)
	e := &p.entries[index]
	h := Handle{Kind: kind, Index: index, Generation: e.generation}

	e.bodyA = a.ID
	e.bodyB = b.ID
	e.edgeA = r.addEdge(a.ID, h)
	e.edgeB = r.addEdge(b.ID, h)
	return h, nil
}

func erase[T any](r *Registry, p *pool[T], h Handle) error {
	e, ok := p.get(h)
	if !ok {
		return ErrInvalidHandle
	}
	r.removeEdge(e.bodyA, e.edgeA)
	r.removeEdge(e.bodyB, e.edgeB)
	p.remove(h.Index)
	return nil
}

func lookup[T any](p *pool[T], h Handle, kind Kind) (*T, bool) {
	if h.Kind != kind {
		return nil, false
	}
	e, ok := p.get(h)
	if !ok {
		return nil, false
	}
	return &e.value, true
}

func (r *Registry) AddDistanceFromLocalPoints(a, b *actor.Body, localAnchorA, localAnchorB mgl64.Vec3, distance float64) (Handle, error) {
	return insert(r, &r.distance, KindDistance, a, b, DistanceConstraint{
		LocalAnchorA: localAnchorA,
		LocalAnchorB: localAnchorB,
		GlobalLength: distance,
	})
}

// AddDistanceFromGlobalPoints keeps the current distance between two world points.
func (r *Registry) AddDistanceFromGlobalPoints(a, b *actor.Body, globalAnchorA, globalAnchorB mgl64.Vec3) (Handle, error) {
	if a == nil || b == nil {
		return Handle{}, ErrInvalidHandle
	}
	return r.AddDistanceFromLocalPoints(a, b,
		a.Transform.InverseTransformPoint(globalAnchorA),
		b.Transform.InverseTransformPoint(globalAnchorB),
		globalAnchorA.Sub(globalAnchorB).Len())
}

func (r *Registry) AddBallFromLocalPoints(a, b *actor.Body, localAnchorA, localAnchorB mgl64.Vec3) (Handle, error) {
	return insert(r, &r.ball, KindBall, a, b, BallConstraint{
		LocalAnchorA: localAnchorA,
		LocalAnchorB: localAnchorB,
	})
}

func (r *Registry) AddBallFromGlobalPoints(a, b *actor.Body, globalAnchor mgl64.Vec3) (Handle, error) {
	if a == nil || b == nil {
		return Handle{}, ErrInvalidHandle
	}
	return r.AddBallFromLocalPoints(a, b,
		a.Transform.InverseTransformPoint(globalAnchor),
		b.Transform.InverseTransformPoint(globalAnchor))
}

// AddHingeFromGlobalPoints hinges two bodies about a world axis through a world
// anchor, with the current pose as angle 0. The limits are kept only when
// minLimit <= 0 <= maxLimit. The motor starts disabled.
func (r *Registry) AddHingeFromGlobalPoints(a, b *actor.Body, globalAnchor, globalAxis mgl64.Vec3, minLimit, maxLimit float64) (Handle, error) {
	if a == nil || b == nil {
		return Handle{}, ErrInvalidHandle
	}

	axis := globalAxis.Normalize()
	hinge := HingeConstraint{
		LocalAnchorA:    a.Transform.InverseTransformPoint(globalAnchor),
		LocalAnchorB:    b.Transform.InverseTransformPoint(globalAnchor),
		LocalHingeAxisA: a.Transform.InverseTransformDirection(axis),
		LocalHingeAxisB: b.Transform.InverseTransformDirection(axis),

		MinRotationLimit: 1,
		MaxRotationLimit: -1,

		MotorType:      MotorTypeVelocity,
		MaxMotorTorque: -1,
	}

	hinge.LocalHingeTangentA, hinge.LocalHingeBitangentA = mathutil.TangentBasis(hinge.LocalHingeAxisA)
	hinge.LocalHingeTangentB = b.Transform.InverseTransformDirection(a.Transform.TransformDirection(hinge.LocalHingeTangentA))

	if minLimit <= 0 && maxLimit >= 0 {
		hinge.MinRotationLimit = math.Max(minLimit, -math.Pi)
		hinge.MaxRotationLimit = math.Min(maxLimit, math.Pi)
	}

	return insert(r, &r.hinge, KindHinge, a, b, hinge)
}

// AddConeTwistFromGlobalPoints joins two bodies at a world anchor. B's axis may
// swing up to swingLimit away from A's and twist up to twistLimit about it.
// Negative limits disable them. The motors start disabled.
func (r *Registry) AddConeTwistFromGlobalPoints(a, b *actor.Body, globalAnchor, globalAxis mgl64.Vec3, swingLimit, twistLimit float64) (Handle, error) {
	if a == nil || b == nil {
		return Handle{}, ErrInvalidHandle
	}

	axis := globalAxis.Normalize()
	coneTwist := ConeTwistConstraint{
		LocalAnchorA:    a.Transform.InverseTransformPoint(globalAnchor),
		LocalAnchorB:    b.Transform.InverseTransformPoint(globalAnchor),
		LocalSwingAxisA: a.Transform.InverseTransformDirection(axis),
		LocalSwingAxisB: b.Transform.InverseTransformDirection(axis),

		SwingLimit: swingLimit,
		TwistLimit: twistLimit,

		SwingMotorType:      MotorTypeVelocity,
		MaxSwingMotorTorque: -1,
		TwistMotorType:      MotorTypeVelocity,
		MaxTwistMotorTorque: -1,
	}

	coneTwist.LocalTwistAxisA, coneTwist.LocalTwistBitangentA = mathutil.TangentBasis(coneTwist.LocalSwingAxisA)
	coneTwist.LocalTwistAxisB = b.Transform.InverseTransformDirection(a.Transform.TransformDirection(coneTwist.LocalTwistAxisA))

	return insert(r, &r.coneTwist, KindConeTwist, a, b, coneTwist)
}

func (r *Registry) Distance(h Handle) (*DistanceConstraint, bool) {
	return lookup(&r.distance, h, KindDistance)
}

func (r *Registry) Ball(h Handle) (*BallConstraint, bool) {
	return lookup(&r.ball, h, KindBall)
}

func (r *Registry) Hinge(h Handle) (*HingeConstraint, bool) {
	return lookup(&r.hinge, h, KindHinge)
}

func (r *Registry) ConeTwist(h Handle) (*ConeTwistConstraint, bool) {
	return lookup(&r.coneTwist, h, KindConeTwist)
}

// Bodies returns the IDs of the two bodies of a constraint.
func (r *Registry) Bodies(h Handle) (uint64, uint64, bool) {
	switch h.Kind {
	case KindDistance:
		return bodiesOf(&r.distance, h)
	case KindBall:
		return bodiesOf(&r.ball, h)
	case KindHinge:
		return bodiesOf(&r.hinge, h)
	case KindConeTwist:
		return bodiesOf(&r.coneTwist, h)
	}
	return 0, 0, false
}

func bodiesOf[T any](p *pool[T], h Handle) (uint64, uint64, bool) {
	e, ok := p.get(h)
	if !ok {
		return 0, 0, false
	}
	return e.bodyA, e.bodyB, true
}

// Delete removes a constraint. It returns ErrInvalidHandle for a stale handle.
func (r *Registry) Delete(h Handle) error {
	switch h.Kind {
	case KindDistance:
		return erase(r, &r.distance, h)
	case KindBall:
		return erase(r, &r.ball, h)
	case KindHinge:
		return erase(r, &r.hinge, h)
	case KindConeTwist:
		return erase(r, &r.coneTwist, h)
	}
	return ErrInvalidHandle
}

// DeleteAllFromBody removes every constraint the body takes part in and
// returns how many were removed.
func (r *Registry) DeleteAllFromBody(body uint64) int {
	deleted := 0
	for {
		first, ok := r.firstEdge[body]
		if !ok {
			return deleted
		}
		if err := r.Delete(r.edges[first].handle); err != nil {
			// a dangling edge, drop it so the walk terminates
			r.removeEdge(body, first)
			continue
		}
		deleted++
	}
}

// ConstraintsOfBody iterates over the handles of the constraints of a body,
// most recent first. The registry must not be modified during the iteration.
func (r *Registry) ConstraintsOfBody(body uint64) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		index, ok := r.firstEdge[body]
		if !ok {
			return
		}
		for index != noEdge {
			e := r.edges[index]
			if !yield(e.handle) {
				return
			}
			index = e.next
		}
	}
}

// Clear removes every constraint. Outstanding handles become invalid.
func (r *Registry) Clear() {
	r.distance.clear()
	r.ball.clear()
	r.hinge.clear()
	r.coneTwist.clear()
	r.edges = r.edges[:0]
	r.freeEdges = r.freeEdges[:0]
	clear(r.firstEdge)
}

// BodyIndex maps a body ID to its index in the step's global states, or false
// when the body does not take part in the step.
type BodyIndex func(id uint64) (uint16, bool)

// Collect gathers the live joints with their body pairs into slices carved
// from a. Joints with a body missing from the step are skipped.
func (r *Registry) Collect(index BodyIndex, a *arena.Arena) Joints {
	var j Joints
	j.Distance, j.DistancePairs = collect(&r.distance, index, a)
	j.Ball, j.BallPairs = collect(&r.ball, index, a)
	j.Hinge, j.HingePairs = collect(&r.hinge, index, a)
	j.ConeTwist, j.ConeTwistPairs = collect(&r.coneTwist, index, a)
	return j
}

func collect[T any](p *pool[T], index BodyIndex, a *arena.Arena) ([]T, []narrowphase.BodyPair) {
	values := arena.Alloc[T](a, p.alive)
	pairs := arena.Alloc[narrowphase.BodyPair](a, p.alive)
	n := min(len(values), len(pairs))

	count := 0
	for i := range p.entries {
		if count == n {
			break
		}
		e := &p.entries[i]
		if !e.alive {
			continue
		}
		rbA, okA := index(e.bodyA)
		rbB, okB := index(e.bodyB)
		if !okA || !okB {
			continue
		}
		values[count] = e.value
		pairs[count] = narrowphase.BodyPair{A: rbA, B: rbB}
		count++
	}

	return values[:count], pairs[:count]
}
