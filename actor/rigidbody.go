package actor

import (
	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultGravityFactor  = 1.0
	DefaultLinearDamping  = 0.4
	DefaultAngularDamping = 0.4
)

// RigidBody holds the persistent motion state of a body, in body space.
// Velocities are given at the center of gravity.
type RigidBody struct {
	LocalCOG   mgl64.Vec3
	InvMass    float64
	InvInertia mgl64.Mat3

	GravityFactor  float64
	LinearDamping  float64
	AngularDamping float64

	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3

	forceAccumulator  mgl64.Vec3
	torqueAccumulator mgl64.Vec3
}

// GlobalState is the per-step world-space snapshot of a rigid body, shared with the solver.
// The zero value is the dummy body: infinite mass, no velocity.
type GlobalState struct {
	Rotation        mgl64.Quat
	Position        mgl64.Vec3 // world center of gravity
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	InvMass         float64
	InvInertia      mgl64.Mat3
	LocalCOG        mgl64.Vec3
}

// NewRigidBody returns a unit mass body, or an infinite mass one when kinematic.
// Mass properties are refined by RecalculateProperties once colliders are known.
func NewRigidBody(kinematic bool) *RigidBody {
	rb := &RigidBody{
		GravityFactor:  DefaultGravityFactor,
		LinearDamping:  DefaultLinearDamping,
		AngularDamping: DefaultAngularDamping,
	}

	if !kinematic {
		rb.InvMass = 1
		rb.InvInertia = mgl64.Ident3()
	}

	return rb
}

func (rb *RigidBody) IsKinematic() bool {
	return rb.InvMass == 0
}

// RecalculateProperties sums collider masses, moves the combined inertia to the
// common center of gravity with the parallel axis theorem, then inverts it.
// Colliders share the body frame, so their tensors can be added directly.
func (rb *RigidBody) RecalculateProperties(colliders []Collider) {
	if rb.IsKinematic() || len(colliders) == 0 {
		return
	}

	var mass float64
	var cog mgl64.Vec3
	props := make([]geometry.MassProperties, len(colliders))

	for i, c := range colliders {
		p := c.MassProperties()
		props[i] = p

		mass += p.Mass
		cog = cog.Add(p.COG.Mul(p.Mass))
	}

	if mass <= 0 {
		return
	}

	rb.InvMass = 1 / mass
	cog = cog.Mul(rb.InvMass)
	rb.LocalCOG = cog

	var inertia mgl64.Mat3
	for _, p := range props {
		r := p.COG.Sub(cog)
		offset := mgl64.Ident3().Mul(r.Dot(r)).Sub(r.OuterProd3(r))
		inertia = inertia.Add(p.Inertia).Add(offset.Mul(p.Mass))
	}

	rb.InvInertia = inertia.Inv()
}

// GlobalCOG returns the center of gravity in world space.
func (rb *RigidBody) GlobalCOG(transform Transform) mgl64.Vec3 {
	return transform.TransformPoint(rb.LocalCOG)
}

// PointVelocity returns the world velocity of a point given in body space.
func (rb *RigidBody) PointVelocity(transform Transform, localPoint mgl64.Vec3) mgl64.Vec3 {
	global := transform.TransformPoint(localPoint)
	return rb.LinearVelocity.Add(rb.AngularVelocity.Cross(global.Sub(rb.GlobalCOG(transform))))
}

func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	rb.forceAccumulator = rb.forceAccumulator.Add(force)
}

func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	rb.torqueAccumulator = rb.torqueAccumulator.Add(torque)
}

// AddForceAtPoint applies a world-space force at a world-space point, producing a torque about the COG.
func (rb *RigidBody) AddForceAtPoint(transform Transform, force, point mgl64.Vec3) {
	rb.AddForce(force)
	rb.AddTorque(point.Sub(rb.GlobalCOG(transform)).Cross(force))
}

func (rb *RigidBody) Force() mgl64.Vec3 {
	return rb.forceAccumulator
}

func (rb *RigidBody) Torque() mgl64.Vec3 {
	return rb.torqueAccumulator
}

func (rb *RigidBody) ClearForces() {
	rb.forceAccumulator = mgl64.Vec3{0, 0, 0}
	rb.torqueAccumulator = mgl64.Vec3{0, 0, 0}
}

// ApplyGravityAndIntegrateForces is the first integration pass. It fills the global
// state, adds gravity, integrates forces into velocities (semi-implicit Euler) and damps them.
func (rb *RigidBody) ApplyGravityAndIntegrateForces(global *GlobalState, transform Transform, gravity mgl64.Vec3, dt float64) {
	global.Rotation = transform.Rotation
	global.Position = rb.GlobalCOG(transform)

	rotation := mathutil.QuatToMat3(global.Rotation)
	global.InvInertia = rotation.Mul3(rb.InvInertia).Mul3(rotation.Transpose())
	global.InvMass = rb.InvMass

	if rb.InvMass > 0 {
		rb.forceAccumulator = rb.forceAccumulator.Add(gravity.Mul(rb.GravityFactor / rb.InvMass))
	}

	linearAcceleration := rb.forceAccumulator.Mul(rb.InvMass)
	angularAcceleration := global.InvInertia.Mul3x1(rb.torqueAccumulator)

	rb.LinearVelocity = rb.LinearVelocity.Add(linearAcceleration.Mul(dt))
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAcceleration.Mul(dt))

	rb.LinearVelocity = rb.LinearVelocity.Mul(1 / (1 + dt*rb.LinearDamping))
	rb.AngularVelocity = rb.AngularVelocity.Mul(1 / (1 + dt*rb.AngularDamping))

	global.LinearVelocity = rb.LinearVelocity
	global.AngularVelocity = rb.AngularVelocity
	global.LocalCOG = rb.LocalCOG
}

// IntegrateVelocity is the second integration pass. It takes the solved velocities
// back, advances the center of gravity and the rotation, and rebuilds the transform.
func (rb *RigidBody) IntegrateVelocity(global *GlobalState, transform *Transform, dt float64) {
	rb.LinearVelocity = global.LinearVelocity
	rb.AngularVelocity = global.AngularVelocity

	omega := mgl64.Quat{W: 0, V: rb.AngularVelocity.Mul(0.5)}
	qDot := omega.Mul(global.Rotation)

	rotation := global.Rotation.Add(qDot.Scale(dt)).Normalize()
	position := global.Position.Add(rb.LinearVelocity.Mul(dt))

	rb.ClearForces()

	transform.Rotation = rotation
	transform.Position = position.Sub(rotation.Rotate(rb.LocalCOG))
}
