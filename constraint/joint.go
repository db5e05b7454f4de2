package constraint

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

// DistanceConstraint keeps two anchors at a fixed distance.
// Anchors are given in the body space of each body.
type DistanceConstraint struct {
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	GlobalLength float64
}

// BallConstraint keeps two anchors at the same world position.
type BallConstraint struct {
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
}

// HingeConstraint lets two bodies rotate about one shared axis.
//
// The rotation angle is measured in A's tangent plane, from LocalHingeTangentA
// toward LocalHingeBitangentA. A limit side is active when MinRotationLimit <= 0
// or MaxRotationLimit >= 0, and the motor when MaxMotorTorque > 0.
type HingeConstraint struct {
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3

	LocalHingeAxisA      mgl64.Vec3
	LocalHingeAxisB      mgl64.Vec3
	LocalHingeTangentA   mgl64.Vec3
	LocalHingeBitangentA mgl64.Vec3
	LocalHingeTangentB   mgl64.Vec3

	MinRotationLimit float64
	MaxRotationLimit float64

	MaxMotorTorque   float64
	MotorType        MotorType
	MotorVelocity    float64
	MotorTargetAngle float64
}

// ConeTwistConstraint keeps two anchors together, limits the swing of B's axis
// to a cone around A's axis and limits the twist about it.
//
// SwingLimit and TwistLimit are half angles, negative to disable. Motors are
// active when their maximum torque is positive. SwingMotorAxis is the angle, in
// A's tangent plane, of the axis the swing motor turns about.
type ConeTwistConstraint struct {
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3

	LocalSwingAxisA      mgl64.Vec3
	LocalSwingAxisB      mgl64.Vec3
	LocalTwistAxisA      mgl64.Vec3
	LocalTwistBitangentA mgl64.Vec3
	LocalTwistAxisB      mgl64.Vec3

	SwingLimit float64
	TwistLimit float64

	MaxSwingMotorTorque   float64
	SwingMotorType        MotorType
	SwingMotorVelocity    float64
	SwingMotorTargetAngle float64
	SwingMotorAxis        float64

	MaxTwistMotorTorque   float64
	TwistMotorType        MotorType
	TwistMotorVelocity    float64
	TwistMotorTargetAngle float64
}

// DistanceUpdate is the solver row of a distance constraint.
type DistanceUpdate struct {
	RelGlobalAnchorA mgl64.Vec3
	RelGlobalAnchorB mgl64.Vec3
	U                mgl64.Vec3
	EffectiveMass    float64
	Bias             float64
}

func InitializeDistance(joints []DistanceConstraint, pairs []narrowphase.BodyPair, globals []actor.GlobalState, dt float64, a *arena.Arena) []DistanceUpdate {
	updates := arena.Alloc[DistanceUpdate](a, len(joints))
	for i := range updates {
		initializeDistance(&updates[i], &joints[i], &globals[pairs[i].A], &globals[pairs[i].B], dt)
	}
	return updates
}

func initializeDistance(d *DistanceUpdate, joint *DistanceConstraint, rbA, rbB *actor.GlobalState, dt float64) {
	relA, relB, worldA, worldB := anchors(rbA, rbB, joint.LocalAnchorA, joint.LocalAnchorB)
	d.RelGlobalAnchorA = relA
	d.RelGlobalAnchorB = relB

	d.U = worldB.Sub(worldA)
	l := d.U.Len()
	if l > minDistance {
		d.U = d.U.Mul(1 / l)
	} else {
		d.U = mgl64.Vec3{}
	}

	d.EffectiveMass = directionMass(rbA, rbB, relA, relB, d.U)

	d.Bias = 0
	if dt > dtThreshold {
		d.Bias = (l - joint.GlobalLength) * distanceBeta / dt
	}
}

func SolveDistance(updates []DistanceUpdate, pairs []narrowphase.BodyPair, globals []actor.GlobalState) {
	for i := range updates {
		d := &updates[i]
		rbA, rbB := &globals[pairs[i].A], &globals[pairs[i].B]

		anchorVelocityA := rbA.LinearVelocity.Add(rbA.AngularVelocity.Cross(d.RelGlobalAnchorA))
		anchorVelocityB := rbB.LinearVelocity.Add(rbB.AngularVelocity.Cross(d.RelGlobalAnchorB))
		cdot := d.U.Dot(anchorVelocityB.Sub(anchorVelocityA)) + d.Bias

		lambda := -d.EffectiveMass * cdot
		p := d.U.Mul(lambda)

		rbA.LinearVelocity = rbA.LinearVelocity.Sub(p.Mul(rbA.InvMass))
		rbA.AngularVelocity = rbA.AngularVelocity.Sub(rbA.InvInertia.Mul3x1(d.RelGlobalAnchorA.Cross(p)))
		rbB.LinearVelocity = rbB.LinearVelocity.Add(p.Mul(rbB.InvMass))
		rbB.AngularVelocity = rbB.AngularVelocity.Add(rbB.InvInertia.Mul3x1(d.RelGlobalAnchorB.Cross(p)))
	}
}

// BallUpdate is the solver row of a ball constraint.
type BallUpdate struct {
	point
}

func InitializeBall(joints []BallConstraint, pairs []narrowphase.BodyPair, globals []actor.GlobalState, dt float64, a *arena.Arena) []BallUpdate {
	updates := arena.Alloc[BallUpdate](a, len(joints))
	for i := range updates {
		joint := &joints[i]
		updates[i].point = newPoint(&globals[pairs[i].A], &globals[pairs[i].B], joint.LocalAnchorA, joint.LocalAnchorB, dt)
	}
	return updates
}

func SolveBall(updates []BallUpdate, pairs []narrowphase.BodyPair, globals []actor.GlobalState) {
	for i := range updates {
		rbA, rbB := &globals[pairs[i].A], &globals[pairs[i].B]
		vA, wA := rbA.LinearVelocity, rbA.AngularVelocity
		vB, wB := rbB.LinearVelocity, rbB.AngularVelocity

		updates[i].solve(rbA, rbB, &vA, &wA, &vB, &wB)

		store(rbA, rbB, vA, wA, vB, wB)
	}
}

// HingeUpdate is the solver row of a hinge constraint.
type HingeUpdate struct {
	point

	// 2-DOF rotation lock
	BxA                   mgl64.Vec3
	CxA                   mgl64.Vec3
	EffectiveRotationMass mgl64.Mat2
	RotationBias          mgl64.Vec2

	SolveLimit bool
	SolveMotor bool
	Limit      axial
	LimitSign  float64
	LimitBias  float64

	Motor           axial
	MotorVelocity   float64
	MaxMotorImpulse float64
}

func InitializeHinge(joints []HingeConstraint, pairs []narrowphase.BodyPair, globals []actor.GlobalState, dt float64, a *arena.Arena) []HingeUpdate {
	updates := arena.Alloc[HingeUpdate](a, len(joints))
	for i := range updates {
		initializeHinge(&updates[i], &joints[i], &globals[pairs[i].A], &globals[pairs[i].B], dt)
	}
	return updates
}

func initializeHinge(h *HingeUpdate, joint *HingeConstraint, rbA, rbB *actor.GlobalState, dt float64) {
	h.point = newPoint(rbA, rbB, joint.LocalAnchorA, joint.LocalAnchorB, dt)

	axisA := rbA.Rotation.Rotate(joint.LocalHingeAxisA)
	axisB := rbB.Rotation.Rotate(joint.LocalHingeAxisB)
	tangentB, bitangentB := mathutil.TangentBasis(axisB)

	h.BxA = tangentB.Cross(axisA)
	h.CxA = bitangentB.Cross(axisA)
	invInertia := rbA.InvInertia.Add(rbB.InvInertia)
	iBxA := invInertia.Mul3x1(h.BxA)
	iCxA := invInertia.Mul3x1(h.CxA)

	// column major: m00, m10, m01, m11
	k := mgl64.Mat2{h.BxA.Dot(iBxA), h.CxA.Dot(iBxA), h.BxA.Dot(iCxA), h.CxA.Dot(iCxA)}
	h.EffectiveRotationMass = k.Inv()

	h.RotationBias = mgl64.Vec2{}
	if dt > dtThreshold {
		h.RotationBias = mgl64.Vec2{axisA.Dot(tangentB), axisA.Dot(bitangentB)}.Mul(hingeRotateBeta / dt)
	}

	h.SolveLimit = false
	h.SolveMotor = false

	minEnabled := joint.MinRotationLimit <= 0
	maxEnabled := joint.MaxRotationLimit >= 0
	if !minEnabled && !maxEnabled && joint.MaxMotorTorque <= 0 {
		return
	}

	angle := hingeAngle(joint, rbA.Rotation, rbB.Rotation)

	minViolated := minEnabled && angle <= joint.MinRotationLimit
	maxViolated := maxEnabled && angle >= joint.MaxRotationLimit

	h.SolveLimit = minViolated || maxViolated
	h.SolveMotor = joint.MaxMotorTorque > 0
	if !h.SolveLimit && !h.SolveMotor {
		return
	}

	mass := axialMass(rbA, rbB, axisA)
	h.Limit = axial{Axis: axisA, EffectiveMass: mass}
	h.Motor = axial{Axis: axisA, EffectiveMass: mass}

	h.LimitSign = -1
	if minViolated {
		h.LimitSign = 1
	}

	h.MaxMotorImpulse = joint.MaxMotorTorque * dt
	h.MotorVelocity = joint.MotorVelocity
	if joint.MotorType == MotorTypePosition {
		low, high := -math.Pi, math.Pi
		if minEnabled {
			low = joint.MinRotationLimit
		}
		if maxEnabled {
			high = joint.MaxRotationLimit
		}
		h.MotorVelocity = 0
		if dt > dtThreshold {
			h.MotorVelocity = (mathutil.Clamp(joint.MotorTargetAngle, low, high) - angle) / dt
		}
	}

	h.LimitBias = 0
	if dt > dtThreshold {
		d := joint.MaxRotationLimit - angle
		if minViolated {
			d = angle - joint.MinRotationLimit
		}
		h.LimitBias = d * hingeLimitBeta / dt
	}
}

// hingeAngle returns the rotation of B about the hinge, measured in A's frame.
func hingeAngle(joint *HingeConstraint, rotationA, rotationB mgl64.Quat) float64 {
	compare := rotationA.Conjugate().Rotate(rotationB.Rotate(joint.LocalHingeTangentB))
	return math.Atan2(compare.Dot(joint.LocalHingeBitangentA), compare.Dot(joint.LocalHingeTangentA))
}

// SolveHinge solves, per row, the motor, the limit, the rotation lock and the
// anchor, so that the anchor wins over everything else.
func SolveHinge(updates []HingeUpdate, pairs []narrowphase.BodyPair, globals []actor.GlobalState) {
	for i := range updates {
		h := &updates[i]
		rbA, rbB := &globals[pairs[i].A], &globals[pairs[i].B]
		vA, wA := rbA.LinearVelocity, rbA.AngularVelocity
		vB, wB := rbB.LinearVelocity, rbB.AngularVelocity

		if h.SolveMotor {
			h.Motor.motor(rbA, rbB, &wA, &wB, h.MotorVelocity, h.MaxMotorImpulse)
		}

		if h.SolveLimit {
			h.Limit.limit(rbA, rbB, &wA, &wB, h.LimitSign, h.LimitBias)
		}

		// rotation lock
		{
			dw := wB.Sub(wA)
			cdot := mgl64.Vec2{h.BxA.Dot(dw), h.CxA.Dot(dw)}
			lambda := h.EffectiveRotationMass.Mul2x1(cdot.Add(h.RotationBias).Mul(-1))

			p := h.BxA.Mul(lambda[0]).Add(h.CxA.Mul(lambda[1]))
			wA = wA.Sub(rbA.InvInertia.Mul3x1(p))
			wB = wB.Add(rbB.InvInertia.Mul3x1(p))
		}

		h.point.solve(rbA, rbB, &vA, &wA, &vB, &wB)

		store(rbA, rbB, vA, wA, vB, wB)
	}
}

// ConeTwistUpdate is the solver row of a cone-twist constraint.
type ConeTwistUpdate struct {
	point

	SolveSwingLimit bool
	SwingLimit      axial
	SwingLimitBias  float64

	SolveSwingMotor      bool
	SwingMotor           axial
	SwingMotorVelocity   float64
	MaxSwingMotorImpulse float64

	SolveTwistLimit bool
	TwistLimit      axial
	TwistLimitSign  float64
	TwistLimitBias  float64

	SolveTwistMotor      bool
	TwistMotor           axial
	TwistMotorVelocity   float64
	MaxTwistMotorImpulse float64
}

func InitializeConeTwist(joints []ConeTwistConstraint, pairs []narrowphase.BodyPair, globals []actor.GlobalState, dt float64, a *arena.Arena) []ConeTwistUpdate {
	updates := arena.Alloc[ConeTwistUpdate](a, len(joints))
	for i := range updates {
		initializeConeTwist(&updates[i], &joints[i], &globals[pairs[i].A], &globals[pairs[i].B], dt)
	}
	return updates
}

// swingTwist splits the relative rotation of B into a swing of A's axis and a
// twist angle about it, both expressed in A's frame.
func swingTwist(joint *ConeTwistConstraint, rotationA, rotationB mgl64.Quat) (swing mgl64.Quat, compareAxis mgl64.Vec3, twistAngle float64) {
	btoa := rotationA.Conjugate().Mul(rotationB)

	compareAxis = btoa.Rotate(joint.LocalSwingAxisB)
	swing = mathutil.RotateFromTo(joint.LocalSwingAxisA, compareAxis)

	tangent := swing.Rotate(joint.LocalTwistAxisA)
	bitangent := swing.Rotate(joint.LocalTwistBitangentA)
	compare := btoa.Rotate(joint.LocalTwistAxisB)
	twistAngle = math.Atan2(compare.Dot(bitangent), compare.Dot(tangent))

	return swing, compareAxis, twistAngle
}

func initializeConeTwist(c *ConeTwistUpdate, joint *ConeTwistConstraint, rbA, rbB *actor.GlobalState, dt float64) {
	c.point = newPoint(rbA, rbB, joint.LocalAnchorA, joint.LocalAnchorB, dt)

	swing, compareAxis, twistAngle := swingTwist(joint, rbA.Rotation, rbB.Rotation)

	// swing limit, the angle is in [0, pi]
	swingAxis, swingAngle := mathutil.AxisAngle(swing)

	c.SolveSwingLimit = joint.SwingLimit >= 0 && swingAngle >= joint.SwingLimit
	if c.SolveSwingLimit {
		axis := rbA.Rotation.Rotate(swingAxis)
		c.SwingLimit = axial{Axis: axis, EffectiveMass: axialMass(rbA, rbB, axis)}
		c.SwingLimitBias = 0
		if dt > dtThreshold {
			c.SwingLimitBias = (joint.SwingLimit - swingAngle) * hingeLimitBeta / dt
		}
	}

	// swing motor
	c.SolveSwingMotor = joint.MaxSwingMotorTorque > 0
	if c.SolveSwingMotor {
		c.MaxSwingMotorImpulse = joint.MaxSwingMotorTorque * dt

		sin, cos := math.Sincos(joint.SwingMotorAxis)
		localMotorAxis := joint.LocalTwistAxisA.Mul(cos).Add(joint.LocalTwistBitangentA.Mul(sin))

		var axis mgl64.Vec3
		if joint.SwingMotorType == MotorTypeVelocity {
			axis = rbA.Rotation.Rotate(localMotorAxis)
			c.SwingMotorVelocity = joint.SwingMotorVelocity
		} else {
			target := joint.SwingMotorTargetAngle
			if joint.SwingLimit >= 0 {
				target = mathutil.Clamp(target, -joint.SwingLimit, joint.SwingLimit)
			}

			targetDirection := mgl64.QuatRotate(target, localMotorAxis).Rotate(joint.LocalSwingAxisA)
			axis = rbA.Rotation.Rotate(mathutil.Noz(compareAxis.Cross(targetDirection)))

			delta := math.Acos(mathutil.Clamp01(targetDirection.Dot(compareAxis)))
			c.SwingMotorVelocity = 0
			if dt > dtThreshold {
				c.SwingMotorVelocity = delta / dt * swingMotorDamp
			}
		}

		c.SwingMotor = axial{Axis: axis, EffectiveMass: axialMass(rbA, rbB, axis)}
	}

	// twist limit and motor
	minViolated := joint.TwistLimit >= 0 && twistAngle <= -joint.TwistLimit
	maxViolated := joint.TwistLimit >= 0 && twistAngle >= joint.TwistLimit

	c.SolveTwistLimit = minViolated || maxViolated
	c.SolveTwistMotor = joint.MaxTwistMotorTorque > 0
	if !c.SolveTwistLimit && !c.SolveTwistMotor {
		return
	}

	axis := rbA.Rotation.Rotate(joint.LocalSwingAxisA)
	mass := axialMass(rbA, rbB, axis)
	c.TwistLimit = axial{Axis: axis, EffectiveMass: mass}
	c.TwistMotor = axial{Axis: axis, EffectiveMass: mass}

	c.TwistLimitSign = -1
	if minViolated {
		c.TwistLimitSign = 1
	}

	c.MaxTwistMotorImpulse = joint.MaxTwistMotorTorque * dt
	c.TwistMotorVelocity = joint.TwistMotorVelocity
	if joint.TwistMotorType == MotorTypePosition {
		limit := math.Pi
		if joint.TwistLimit >= 0 {
			limit = joint.TwistLimit
		}
		c.TwistMotorVelocity = 0
		if dt > dtThreshold {
			c.TwistMotorVelocity = (mathutil.Clamp(joint.TwistMotorTargetAngle, -limit, limit) - twistAngle) / dt
		}
	}

	c.TwistLimitBias = 0
	if dt > dtThreshold {
		d := joint.TwistLimit - twistAngle
		if minViolated {
			d = joint.TwistLimit + twistAngle
		}
		c.TwistLimitBias = d * twistLimitBeta / dt
	}
}

// SolveConeTwist solves, per row, the motors, the limits and the anchor.
func SolveConeTwist(updates []ConeTwistUpdate, pairs []narrowphase.BodyPair, globals []actor.GlobalState) {
	for i := range updates {
		c := &updates[i]
		rbA, rbB := &globals[pairs[i].A], &globals[pairs[i].B]
		vA, wA := rbA.LinearVelocity, rbA.AngularVelocity
		vB, wB := rbB.LinearVelocity, rbB.AngularVelocity

		if c.SolveTwistMotor {
			c.TwistMotor.motor(rbA, rbB, &wA, &wB, c.TwistMotorVelocity, c.MaxTwistMotorImpulse)
		}

		if c.SolveSwingMotor {
			c.SwingMotor.motor(rbA, rbB, &wA, &wB, c.SwingMotorVelocity, c.MaxSwingMotorImpulse)
		}

		if c.SolveTwistLimit {
			c.TwistLimit.limit(rbA, rbB, &wA, &wB, c.TwistLimitSign, c.TwistLimitBias)
		}

		// The swing axis turns B's axis away from A's, so the limit pushes the
		// other way round.
		if c.SolveSwingLimit {
			c.SwingLimit.limit(rbA, rbB, &wA, &wB, -1, c.SwingLimitBias)
		}

		c.point.solve(rbA, rbB, &vA, &wA, &vB, &wB)

		store(rbA, rbB, vA, wA, vB, wB)
	}
}
