package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
)

// ContactBatch holds Lanes contact rows in float32 lanes.
type ContactBatch struct {
	RelGlobalAnchorA LaneVec3
	RelGlobalAnchorB LaneVec3
	Normal           LaneVec3
	Tangent          LaneVec3

	NormalImpulseToAngularVelocityA  LaneVec3
	TangentImpulseToAngularVelocityA LaneVec3
	NormalImpulseToAngularVelocityB  LaneVec3
	TangentImpulseToAngularVelocityB LaneVec3

	EffectiveMassInNormalDir  LaneFloat
	EffectiveMassInTangentDir LaneFloat
	Friction                  LaneFloat
	ImpulseInNormalDir        LaneFloat
	ImpulseInTangentDir       LaneFloat
	Bias                      LaneFloat

	BodyA [Lanes]uint16
	BodyB [Lanes]uint16
}

// InitializeContactsBatched builds one ContactBatch per scheduled batch. Bodies
// with no mass on either side get zero effective masses, which turns their
// lanes into no-ops.
func InitializeContactsBatched(contacts []narrowphase.Contact, pairs []narrowphase.BodyPair, globals []actor.GlobalState, schedule Schedule, dt float64, a *arena.Arena) []ContactBatch {
	batches := arena.Alloc[ContactBatch](a, len(schedule.Batches))

	for b := range batches {
		c := &batches[b]

		var point, posA, posB LaneVec3
		var invMassA, invMassB, restitution, penetration LaneFloat
		var invInertiaA, invInertiaB LaneMat3

		for lane, index := range schedule.Batches[b] {
			contact := &contacts[index]
			pair := pairs[index]
			rbA, rbB := &globals[pair.A], &globals[pair.B]

			c.BodyA[lane] = pair.A
			c.BodyB[lane] = pair.B

			point.set(lane, contact.Point)
			c.Normal.set(lane, contact.Normal)
			c.Friction[lane] = float32(contact.Friction())
			restitution[lane] = float32(contact.Restitution())
			penetration[lane] = float32(contact.Penetration)

			posA.set(lane, rbA.Position)
			posB.set(lane, rbB.Position)
			invMassA[lane] = float32(rbA.InvMass)
			invMassB[lane] = float32(rbB.InvMass)
			invInertiaA.set(lane, rbA.InvInertia)
			invInertiaB.set(lane, rbB.InvInertia)
		}

		bodiesA := gather(globals, c.BodyA)
		bodiesB := gather(globals, c.BodyB)

		c.RelGlobalAnchorA = point.sub(posA)
		c.RelGlobalAnchorB = point.sub(posB)

		anchorVelocityA := bodiesA.v.add(bodiesA.w.cross(c.RelGlobalAnchorA))
		anchorVelocityB := bodiesB.v.add(bodiesB.w.cross(c.RelGlobalAnchorB))
		relVelocity := anchorVelocityB.sub(anchorVelocityA)

		vRel := c.Normal.dot(relVelocity)
		c.Tangent = relVelocity.sub(c.Normal.scale(vRel)).noz()

		crAt := c.RelGlobalAnchorA.cross(c.Tangent)
		crBt := c.RelGlobalAnchorB.cross(c.Tangent)
		c.TangentImpulseToAngularVelocityA = invInertiaA.mulVec(crAt)
		c.TangentImpulseToAngularVelocityB = invInertiaB.mulVec(crBt)
		c.EffectiveMassInTangentDir = invMassA.add(crAt.dot(c.TangentImpulseToAngularVelocityA)).
			add(invMassB).add(crBt.dot(c.TangentImpulseToAngularVelocityB)).reciprocal()

		crAn := c.RelGlobalAnchorA.cross(c.Normal)
		crBn := c.RelGlobalAnchorB.cross(c.Normal)
		c.NormalImpulseToAngularVelocityA = invInertiaA.mulVec(crAn)
		c.NormalImpulseToAngularVelocityB = invInertiaB.mulVec(crBn)
		c.EffectiveMassInNormalDir = invMassA.add(crAn.dot(c.NormalImpulseToAngularVelocityA)).
			add(invMassB).add(crBn.dot(c.NormalImpulseToAngularVelocityB)).reciprocal()

		if dt > dtThreshold {
			for lane := 0; lane < Lanes; lane++ {
				if -penetration[lane] < contactSlop && vRel[lane] < 0 {
					c.Bias[lane] = -restitution[lane]*vRel[lane] - float32(contactBeta)*(-penetration[lane]-float32(contactSlop))/float32(dt)
				}
			}
		}
	}

	return batches
}

// SolveContactsBatched applies one friction and one non-penetration impulse per
// lane: the velocities of a batch are gathered, solved in float32 and scattered.
func SolveContactsBatched(batches []ContactBatch, globals []actor.GlobalState) {
	for b := range batches {
		c := &batches[b]

		bodiesA := gather(globals, c.BodyA)
		bodiesB := gather(globals, c.BodyB)
		vA, wA := bodiesA.v, bodiesA.w
		vB, wB := bodiesB.v, bodiesB.w

		// friction
		{
			relVelocity := vB.add(wB.cross(c.RelGlobalAnchorB)).sub(vA.add(wA.cross(c.RelGlobalAnchorA)))
			vt := relVelocity.dot(c.Tangent)
			lambda := c.EffectiveMassInTangentDir.mul(vt).neg()

			maxFriction := c.Friction.mul(c.ImpulseInNormalDir)
			impulse := c.ImpulseInTangentDir.add(lambda).clampAbs(maxFriction)
			lambda = impulse.sub(c.ImpulseInTangentDir)
			c.ImpulseInTangentDir = impulse

			p := c.Tangent.scale(lambda)
			vA = vA.sub(p.scale(bodiesA.invMass))
			wA = wA.sub(c.TangentImpulseToAngularVelocityA.scale(lambda))
			vB = vB.add(p.scale(bodiesB.invMass))
			wB = wB.add(c.TangentImpulseToAngularVelocityB.scale(lambda))
		}

		// non-penetration
		{
			relVelocity := vB.add(wB.cross(c.RelGlobalAnchorB)).sub(vA.add(wA.cross(c.RelGlobalAnchorA)))
			vn := relVelocity.dot(c.Normal)
			lambda := c.EffectiveMassInNormalDir.mul(vn.sub(c.Bias)).neg()

			impulse := c.ImpulseInNormalDir.add(lambda).maxScalar(0)
			lambda = impulse.sub(c.ImpulseInNormalDir)
			c.ImpulseInNormalDir = impulse

			p := c.Normal.scale(lambda)
			vA = vA.sub(p.scale(bodiesA.invMass))
			wA = wA.sub(c.NormalImpulseToAngularVelocityA.scale(lambda))
			vB = vB.add(p.scale(bodiesB.invMass))
			wB = wB.add(c.NormalImpulseToAngularVelocityB.scale(lambda))
		}

		bodiesA.scatter(globals, vA, wA)
		bodiesB.scatter(globals, vB, wB)
	}
}

// DistanceBatch holds Lanes distance rows in float32 lanes.
type DistanceBatch struct {
	RelGlobalAnchorA LaneVec3
	RelGlobalAnchorB LaneVec3
	U                LaneVec3

	ImpulseToAngularVelocityA LaneVec3
	ImpulseToAngularVelocityB LaneVec3

	EffectiveMass LaneFloat
	Bias          LaneFloat

	BodyA [Lanes]uint16
	BodyB [Lanes]uint16
}

// InitializeDistanceBatched initializes the scheduled rows in float64 and packs
// them into lanes.
func InitializeDistanceBatched(joints []DistanceConstraint, pairs []narrowphase.BodyPair, globals []actor.GlobalState, schedule Schedule, dt float64, a *arena.Arena) []DistanceBatch {
	batches := arena.Alloc[DistanceBatch](a, len(schedule.Batches))

	for b := range batches {
		d := &batches[b]
		for lane, index := range schedule.Batches[b] {
			pair := pairs[index]
			rbA, rbB := &globals[pair.A], &globals[pair.B]

			var row DistanceUpdate
			initializeDistance(&row, &joints[index], rbA, rbB, dt)

			d.BodyA[lane] = pair.A
			d.BodyB[lane] = pair.B
			d.RelGlobalAnchorA.set(lane, row.RelGlobalAnchorA)
			d.RelGlobalAnchorB.set(lane, row.RelGlobalAnchorB)
			d.U.set(lane, row.U)
			d.ImpulseToAngularVelocityA.set(lane, rbA.InvInertia.Mul3x1(row.RelGlobalAnchorA.Cross(row.U)))
			d.ImpulseToAngularVelocityB.set(lane, rbB.InvInertia.Mul3x1(row.RelGlobalAnchorB.Cross(row.U)))
			d.EffectiveMass[lane] = float32(row.EffectiveMass)
			d.Bias[lane] = float32(row.Bias)
		}
	}

	return batches
}

func SolveDistanceBatched(batches []DistanceBatch, globals []actor.GlobalState) {
	for b := range batches {
		d := &batches[b]

		bodiesA := gather(globals, d.BodyA)
		bodiesB := gather(globals, d.BodyB)
		vA, wA := bodiesA.v, bodiesA.w
		vB, wB := bodiesB.v, bodiesB.w

		anchorVelocityA := vA.add(wA.cross(d.RelGlobalAnchorA))
		anchorVelocityB := vB.add(wB.cross(d.RelGlobalAnchorB))
		cdot := d.U.dot(anchorVelocityB.sub(anchorVelocityA)).add(d.Bias)
		lambda := d.EffectiveMass.mul(cdot).neg()

		p := d.U.scale(lambda)
		vA = vA.sub(p.scale(bodiesA.invMass))
		wA = wA.sub(d.ImpulseToAngularVelocityA.scale(lambda))
		vB = vB.add(p.scale(bodiesB.invMass))
		wB = wB.add(d.ImpulseToAngularVelocityB.scale(lambda))

		bodiesA.scatter(globals, vA, wA)
		bodiesB.scatter(globals, vB, wB)
	}
}

// BallBatch holds Lanes ball rows in float32 lanes.
type BallBatch struct {
	RelGlobalAnchorA LaneVec3
	RelGlobalAnchorB LaneVec3
	Bias             LaneVec3

	EffectiveMass LaneMat3
	InvInertiaA   LaneMat3
	InvInertiaB   LaneMat3

	BodyA [Lanes]uint16
	BodyB [Lanes]uint16
}

// InitializeBallBatched initializes the scheduled rows in float64 and packs
// them into lanes.
func InitializeBallBatched(joints []BallConstraint, pairs []narrowphase.BodyPair, globals []actor.GlobalState, schedule Schedule, dt float64, a *arena.Arena) []BallBatch {
	batches := arena.Alloc[BallBatch](a, len(schedule.Batches))

	for b := range batches {
		d := &batches[b]
		for lane, index := range schedule.Batches[b] {
			pair := pairs[index]
			rbA, rbB := &globals[pair.A], &globals[pair.B]
			joint := &joints[index]

			row := newPoint(rbA, rbB, joint.LocalAnchorA, joint.LocalAnchorB, dt)

			d.BodyA[lane] = pair.A
			d.BodyB[lane] = pair.B
			d.RelGlobalAnchorA.set(lane, row.RelGlobalAnchorA)
			d.RelGlobalAnchorB.set(lane, row.RelGlobalAnchorB)
			d.Bias.set(lane, row.Bias)
			d.EffectiveMass.set(lane, row.EffectiveMass)
			d.InvInertiaA.set(lane, rbA.InvInertia)
			d.InvInertiaB.set(lane, rbB.InvInertia)
		}
	}

	return batches
}

func SolveBallBatched(batches []BallBatch, globals []actor.GlobalState) {
	for b := range batches {
		d := &batches[b]

		bodiesA := gather(globals, d.BodyA)
		bodiesB := gather(globals, d.BodyB)
		vA, wA := bodiesA.v, bodiesA.w
		vB, wB := bodiesB.v, bodiesB.w

		anchorVelocityA := vA.add(wA.cross(d.RelGlobalAnchorA))
		anchorVelocityB := vB.add(wB.cross(d.RelGlobalAnchorB))
		cdot := anchorVelocityB.sub(anchorVelocityA).add(d.Bias)

		var zero LaneVec3
		p := d.EffectiveMass.mulVec(zero.sub(cdot))

		vA = vA.sub(p.scale(bodiesA.invMass))
		wA = wA.sub(d.InvInertiaA.mulVec(d.RelGlobalAnchorA.cross(p)))
		vB = vB.add(p.scale(bodiesB.invMass))
		wB = wB.add(d.InvInertiaB.mulVec(d.RelGlobalAnchorB.cross(p)))

		bodiesA.scatter(globals, vA, wA)
		bodiesB.scatter(globals, vB, wB)
	}
}
