package impulse

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/constraint"
	"github.com/akmonengine/impulse/terrain"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrBodyNotFound = errors.New("body not found")
	ErrBodyExists   = errors.New("body already added")
	ErrNotRigidBody = errors.New("body is not a rigid body")
	// ErrWorldFull is returned when the rigid bodies and the dummy no longer
	// fit in 16-bit solver indices.
	ErrWorldFull = errors.New("too many rigid bodies")
)

const maxRigidBodies = math.MaxUint16

// colliderRef locates the collider behind a broadphase id.
type colliderRef struct {
	body     *actor.Body
	collider int
}

// Stats describes the last physics step.
type Stats struct {
	RigidBodies     int
	Colliders       int
	BroadphasePairs int
	Collisions      int
	Contacts        int
	Interactions    int
	Joints          int
	Islands         int
	// LaneFillRate is the share of used lanes in the contact batches, 0 on the scalar path.
	LaneFillRate float64
	ArenaPeak    int
}

// World owns the bodies and the joints of a simulation.
type World struct {
	Settings config.Settings
	Events   Events

	bodies  []*actor.Body
	indices map[uint64]int
	// previous holds the transforms before the last frame's steps
	previous []actor.Transform
	nextID   uint64
	rigid    int

	// colliders is indexed by broadphase id
	colliders []colliderRef
	sap       *broadphase.SAP

	constraints *constraint.Registry

	heightmap         *terrain.Heightmap
	heightmapMaterial actor.Material

	arena  *arena.Arena
	frame  frame
	logger *slog.Logger
	timer  float64
	stats  Stats
}

func NewWorld(settings config.Settings) (*World, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &World{
		Settings:    settings,
		Events:      NewEvents(),
		indices:     make(map[uint64]int),
		nextID:      1,
		sap:         broadphase.NewSAP(),
		constraints: constraint.NewRegistry(),
		arena:       arena.New(settings.ArenaBudget),
		logger:      slog.Default(),
	}, nil
}

func (w *World) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.logger = logger
}

// SetHeightmap sets the terrain, or removes it when hm is nil.
func (w *World) SetHeightmap(hm *terrain.Heightmap, material actor.Material) {
	w.heightmap = hm
	w.heightmapMaterial = material
}

// Subscribe adds a listener for an event type
func (w *World) Subscribe(eventType EventType, listener EventListener) {
	w.Events.Subscribe(eventType, listener)
}

// AddBody gives the body a new ID, computes its mass properties and registers
// its colliders. Colliders added to the body later are not simulated.
// Damping left at the actor defaults takes the world settings.
func (w *World) AddBody(body *actor.Body) error {
	if body == nil {
		return fmt.Errorf("add body: %w", ErrBodyNotFound)
	}
	if i, ok := w.indices[body.ID]; ok && w.bodies[i] == body {
		return fmt.Errorf("add body %d: %w", body.ID, ErrBodyExists)
	}
	if body.IsRigidBody() && w.rigid >= maxRigidBodies {
		return fmt.Errorf("add body: %w", ErrWorldFull)
	}

	body.ID = w.nextID
	w.nextID++
	body.RecalculateProperties()
	if rb := body.RigidBody; rb != nil {
		if rb.LinearDamping == actor.DefaultLinearDamping {
			rb.LinearDamping = w.Settings.LinearDamping
		}
		if rb.AngularDamping == actor.DefaultAngularDamping {
			rb.AngularDamping = w.Settings.AngularDamping
		}
	}

	w.indices[body.ID] = len(w.bodies)
	w.bodies = append(w.bodies, body)
	w.previous = append(w.previous, body.Transform)
	if body.IsRigidBody() {
		w.rigid++
	}

	for i := range body.Colliders {
		w.sap.Add(len(w.colliders))
		w.colliders = append(w.colliders, colliderRef{body: body, collider: i})
	}

	return nil
}

// RemoveBody removes the body with its colliders, its joints and its event history.
func (w *World) RemoveBody(body *actor.Body) error {
	if body == nil {
		return fmt.Errorf("remove body: %w", ErrBodyNotFound)
	}
	k, ok := w.indices[body.ID]
	if !ok || w.bodies[k] != body {
		return fmt.Errorf("remove body %d: %w", body.ID, ErrBodyNotFound)
	}

	// the broadphase moves the last id into the freed one, colliders follow
	for i := len(w.colliders) - 1; i >= 0; i-- {
		if w.colliders[i].body != body {
			continue
		}
		w.sap.Remove(i)
		last := len(w.colliders) - 1
		w.colliders[i] = w.colliders[last]
		w.colliders[last] = colliderRef{}
		w.colliders = w.colliders[:last]
	}

	last := len(w.bodies) - 1
	if k != last {
		w.bodies[k] = w.bodies[last]
		w.previous[k] = w.previous[last]
		w.indices[w.bodies[k].ID] = k
	}
	w.bodies[last] = nil
	w.bodies = w.bodies[:last]
	w.previous = w.previous[:last]
	delete(w.indices, body.ID)
	if body.IsRigidBody() {
		w.rigid--
	}

	if n := w.constraints.DeleteAllFromBody(body.ID); n > 0 {
		w.logger.Debug("constraints removed with body", "body", body.ID, "count", n)
	}
	w.Events.forget(body.ID)

	return nil
}

// Bodies returns the bodies of the world. The slice must not be modified.
func (w *World) Bodies() []*actor.Body {
	return w.bodies
}

func (w *World) Body(id uint64) (*actor.Body, bool) {
	k, ok := w.indices[id]
	if !ok {
		return nil, false
	}
	return w.bodies[k], true
}

// Constraints returns the joint registry, to read or tune joints.
func (w *World) Constraints() *constraint.Registry {
	return w.constraints
}

func (w *World) Stats() Stats {
	return w.stats
}

// InterpolatedTransform blends the transforms of the last two physics steps by
// the time left in the fixed-timestep accumulator.
func (w *World) InterpolatedTransform(body *actor.Body) actor.Transform {
	k, ok := w.indices[body.ID]
	if !ok || w.bodies[k] != body || !w.Settings.FixedFrameRate {
		return body.Transform
	}
	factor := min(max(w.timer/w.Settings.FixedStep(), 0), 1)
	return w.previous[k].Interpolate(body.Transform, factor)
}

func (w *World) checkJointBodies(a, b *actor.Body) error {
	for _, body := range []*actor.Body{a, b} {
		if body == nil {
			return ErrBodyNotFound
		}
		if k, ok := w.indices[body.ID]; !ok || w.bodies[k] != body {
			return fmt.Errorf("body %d: %w", body.ID, ErrBodyNotFound)
		}
		if !body.IsRigidBody() {
			return fmt.Errorf("body %d: %w", body.ID, ErrNotRigidBody)
		}
	}
	return nil
}

func (w *World) added(h constraint.Handle, a, b *actor.Body, err error) (constraint.Handle, error) {
	if err != nil {
		return h, fmt.Errorf("add constraint: %w", err)
	}
	w.logger.Debug("constraint added", "kind", h.Kind, "index", h.Index, "bodyA", a.ID, "bodyB", b.ID)
	return h, nil
}

// AddDistanceConstraint keeps the current distance between two world points
// attached to a and b.
func (w *World) AddDistanceConstraint(a, b *actor.Body, anchorA, anchorB mgl64.Vec3) (constraint.Handle, error) {
	if err := w.checkJointBodies(a, b); err != nil {
		return constraint.Handle{}, fmt.Errorf("add distance constraint: %w", err)
	}
	h, err := w.constraints.AddDistanceFromGlobalPoints(a, b, anchorA, anchorB)
	return w.added(h, a, b, err)
}

// AddBallConstraint pins a and b together at a world point.
func (w *World) AddBallConstraint(a, b *actor.Body, anchor mgl64.Vec3) (constraint.Handle, error) {
	if err := w.checkJointBodies(a, b); err != nil {
		return constraint.Handle{}, fmt.Errorf("add ball constraint: %w", err)
	}
	h, err := w.constraints.AddBallFromGlobalPoints(a, b, anchor)
	return w.added(h, a, b, err)
}

// AddHingeConstraint hinges a and b about a world axis through a world point.
// Limits are angles from the current pose; use minLimit > maxLimit to disable them.
func (w *World) AddHingeConstraint(a, b *actor.Body, anchor, axis mgl64.Vec3, minLimit, maxLimit float64) (constraint.Handle, error) {
	if err := w.checkJointBodies(a, b); err != nil {
		return constraint.Handle{}, fmt.Errorf("add hinge constraint: %w", err)
	}
	h, err := w.constraints.AddHingeFromGlobalPoints(a, b, anchor, axis, minLimit, maxLimit)
	return w.added(h, a, b, err)
}

// AddConeTwistConstraint joins a and b at a world point, limiting the swing of
// b's axis and its twist. Negative limits disable them.
func (w *World) AddConeTwistConstraint(a, b *actor.Body, anchor, axis mgl64.Vec3, swingLimit, twistLimit float64) (constraint.Handle, error) {
	if err := w.checkJointBodies(a, b); err != nil {
		return constraint.Handle{}, fmt.Errorf("add cone-twist constraint: %w", err)
	}
	h, err := w.constraints.AddConeTwistFromGlobalPoints(a, b, anchor, axis, swingLimit, twistLimit)
	return w.added(h, a, b, err)
}

func (w *World) DeleteConstraint(h constraint.Handle) error {
	if err := w.constraints.Delete(h); err != nil {
		return fmt.Errorf("delete %s constraint: %w", h.Kind, err)
	}
	w.logger.Debug("constraint deleted", "kind", h.Kind, "index", h.Index)
	return nil
}
