// Package constraint holds the sequential-impulse velocity solver.
//
// Every constraint kind follows the same two phases. Initialize turns the
// persistent description of a constraint and the per-step global states of its
// bodies into a solver row with precomputed effective masses and bias terms.
// Solve then applies one velocity correction per call, clamping the accumulated
// impulse where the constraint is one-sided. Contacts and the simple joints also
// come in a float32 lane-batched flavor, where rows that share no body are
// packed four by four.
package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	distanceBeta    = 0.1
	ballBeta        = 0.1
	hingeRotateBeta = 0.3
	hingeLimitBeta  = 0.1
	twistLimitBeta  = 0.1
	contactBeta     = 0.1
	contactSlop     = -0.001
	minDistance     = 0.001
	swingMotorDamp  = 0.2
	dtThreshold     = 1e-5
)

// MotorType selects what a joint motor drives.
type MotorType uint8

const (
	// MotorTypeVelocity drives the relative angular velocity toward a target velocity.
	MotorTypeVelocity MotorType = iota
	// MotorTypePosition drives the joint angle toward a target angle.
	MotorTypePosition
)

func (m MotorType) String() string {
	switch m {
	case MotorTypeVelocity:
		return "velocity"
	case MotorTypePosition:
		return "position"
	default:
		return "unknown"
	}
}

// anchors returns the anchor offsets from each center of gravity and the world
// anchors. Local anchors are expressed in body space.
func anchors(globalA, globalB *actor.GlobalState, localA, localB mgl64.Vec3) (relA, relB, worldA, worldB mgl64.Vec3) {
	relA = globalA.Rotation.Rotate(localA.Sub(globalA.LocalCOG))
	relB = globalB.Rotation.Rotate(localB.Sub(globalB.LocalCOG))
	return relA, relB, globalA.Position.Add(relA), globalB.Position.Add(relB)
}

// pointMass returns the inverse of the 3x3 point-coincidence matrix
// K = mA + [rA] IA [rA]^T + mB + [rB] IB [rB]^T, or zero when K is singular.
func pointMass(globalA, globalB *actor.GlobalState, relA, relB mgl64.Vec3) mgl64.Mat3 {
	skewA := mathutil.Skew(relA)
	skewB := mathutil.Skew(relB)

	k := mgl64.Ident3().Mul(globalA.InvMass + globalB.InvMass).
		Add(skewA.Mul3(globalA.InvInertia).Mul3(skewA.Transpose())).
		Add(skewB.Mul3(globalB.InvInertia).Mul3(skewB.Transpose()))

	return k.Inv()
}

// axialMass returns the effective mass of a rotation about axis.
func axialMass(globalA, globalB *actor.GlobalState, axis mgl64.Vec3) float64 {
	inv := axis.Dot(globalA.InvInertia.Mul3x1(axis)) + axis.Dot(globalB.InvInertia.Mul3x1(axis))
	if inv == 0 {
		return 0
	}
	return 1 / inv
}

// directionMass returns the effective mass of a linear impulse along dir applied at rA and rB.
func directionMass(globalA, globalB *actor.GlobalState, relA, relB, dir mgl64.Vec3) float64 {
	crA := relA.Cross(dir)
	crB := relB.Cross(dir)
	inv := globalA.InvMass + crA.Dot(globalA.InvInertia.Mul3x1(crA)) +
		globalB.InvMass + crB.Dot(globalB.InvInertia.Mul3x1(crB))
	if inv == 0 {
		return 0
	}
	return 1 / inv
}

// point is the shared translational row of the ball, hinge and cone-twist joints.
type point struct {
	RelGlobalAnchorA mgl64.Vec3
	RelGlobalAnchorB mgl64.Vec3
	EffectiveMass    mgl64.Mat3
	Bias             mgl64.Vec3
}

func newPoint(globalA, globalB *actor.GlobalState, localA, localB mgl64.Vec3, dt float64) point {
	relA, relB, worldA, worldB := anchors(globalA, globalB, localA, localB)

	p := point{
		RelGlobalAnchorA: relA,
		RelGlobalAnchorB: relB,
		EffectiveMass:    pointMass(globalA, globalB, relA, relB),
	}
	if dt > dtThreshold {
		p.Bias = worldB.Sub(worldA).Mul(ballBeta / dt)
	}
	return p
}

func (p *point) solve(rbA, rbB *actor.GlobalState, vA, wA, vB, wB *mgl64.Vec3) {
	anchorVelocityA := vA.Add(wA.Cross(p.RelGlobalAnchorA))
	anchorVelocityB := vB.Add(wB.Cross(p.RelGlobalAnchorB))
	cdot := anchorVelocityB.Sub(anchorVelocityA).Add(p.Bias)

	impulse := p.EffectiveMass.Mul3x1(cdot.Mul(-1))

	*vA = vA.Sub(impulse.Mul(rbA.InvMass))
	*wA = wA.Sub(rbA.InvInertia.Mul3x1(p.RelGlobalAnchorA.Cross(impulse)))
	*vB = vB.Add(impulse.Mul(rbB.InvMass))
	*wB = wB.Add(rbB.InvInertia.Mul3x1(p.RelGlobalAnchorB.Cross(impulse)))
}

// axial is a one-dimensional angular row used by motors and limits.
type axial struct {
	Axis          mgl64.Vec3
	EffectiveMass float64
	Impulse       float64
}

// motor drives the relative angular velocity about the axis toward velocity,
// with the accumulated impulse limited to maxImpulse.
func (a *axial) motor(rbA, rbB *actor.GlobalState, wA, wB *mgl64.Vec3, velocity, maxImpulse float64) {
	cdot := a.Axis.Dot(*wB) - a.Axis.Dot(*wA) - velocity

	lambda := -a.EffectiveMass * cdot
	old := a.Impulse
	a.Impulse = mathutil.Clamp(a.Impulse+lambda, -maxImpulse, maxImpulse)
	lambda = a.Impulse - old

	p := a.Axis.Mul(lambda)
	*wA = wA.Sub(rbA.InvInertia.Mul3x1(p))
	*wB = wB.Add(rbB.InvInertia.Mul3x1(p))
}

// limit pushes the relative angular velocity about the axis in the direction of
// sign only, with the accumulated impulse kept non-negative.
func (a *axial) limit(rbA, rbB *actor.GlobalState, wA, wB *mgl64.Vec3, sign, bias float64) {
	cdot := sign*(a.Axis.Dot(*wB)-a.Axis.Dot(*wA)) + bias

	lambda := -a.EffectiveMass * cdot
	impulse := max(a.Impulse+lambda, 0)
	lambda = impulse - a.Impulse
	a.Impulse = impulse

	p := a.Axis.Mul(lambda * sign)
	*wA = wA.Sub(rbA.InvInertia.Mul3x1(p))
	*wB = wB.Add(rbB.InvInertia.Mul3x1(p))
}

func store(rbA, rbB *actor.GlobalState, vA, wA, vB, wB mgl64.Vec3) {
	rbA.LinearVelocity = vA
	rbA.AngularVelocity = wA
	rbB.LinearVelocity = vB
	rbB.AngularVelocity = wB
}
