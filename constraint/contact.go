package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactUpdate is the solver row of one contact point.
type ContactUpdate struct {
	RelGlobalAnchorA mgl64.Vec3
	RelGlobalAnchorB mgl64.Vec3
	Normal           mgl64.Vec3
	Tangent          mgl64.Vec3

	TangentImpulseToAngularVelocityA mgl64.Vec3
	TangentImpulseToAngularVelocityB mgl64.Vec3
	NormalImpulseToAngularVelocityA  mgl64.Vec3
	NormalImpulseToAngularVelocityB  mgl64.Vec3

	ImpulseInNormalDir        float64
	ImpulseInTangentDir       float64
	EffectiveMassInNormalDir  float64
	EffectiveMassInTangentDir float64
	Friction                  float64
	Bias                      float64
}

// InitializeContacts builds one row per contact. pairs is parallel to contacts.
// The rows are carved from a and may be fewer than the contacts when the arena
// budget is exhausted.
func InitializeContacts(contacts []narrowphase.Contact, pairs []narrowphase.BodyPair, globals []actor.GlobalState, dt float64, a *arena.Arena) []ContactUpdate {
	updates := arena.Alloc[ContactUpdate](a, len(contacts))

	for i := range updates {
		initializeContact(&updates[i], &contacts[i], &globals[pairs[i].A], &globals[pairs[i].B], dt)
	}

	return updates
}

func initializeContact(c *ContactUpdate, contact *narrowphase.Contact, rbA, rbB *actor.GlobalState, dt float64) {
	c.ImpulseInNormalDir = 0
	c.ImpulseInTangentDir = 0
	c.Normal = contact.Normal
	c.Friction = contact.Friction()

	c.RelGlobalAnchorA = contact.Point.Sub(rbA.Position)
	c.RelGlobalAnchorB = contact.Point.Sub(rbB.Position)

	anchorVelocityA := rbA.LinearVelocity.Add(rbA.AngularVelocity.Cross(c.RelGlobalAnchorA))
	anchorVelocityB := rbB.LinearVelocity.Add(rbB.AngularVelocity.Cross(c.RelGlobalAnchorB))
	relVelocity := anchorVelocityB.Sub(anchorVelocityA)

	c.Tangent = mathutil.Noz(relVelocity.Sub(c.Normal.Mul(c.Normal.Dot(relVelocity))))

	c.EffectiveMassInTangentDir = directionMass(rbA, rbB, c.RelGlobalAnchorA, c.RelGlobalAnchorB, c.Tangent)
	c.TangentImpulseToAngularVelocityA = rbA.InvInertia.Mul3x1(c.RelGlobalAnchorA.Cross(c.Tangent))
	c.TangentImpulseToAngularVelocityB = rbB.InvInertia.Mul3x1(c.RelGlobalAnchorB.Cross(c.Tangent))

	c.EffectiveMassInNormalDir = directionMass(rbA, rbB, c.RelGlobalAnchorA, c.RelGlobalAnchorB, c.Normal)
	c.NormalImpulseToAngularVelocityA = rbA.InvInertia.Mul3x1(c.RelGlobalAnchorA.Cross(c.Normal))
	c.NormalImpulseToAngularVelocityB = rbB.InvInertia.Mul3x1(c.RelGlobalAnchorB.Cross(c.Normal))

	c.Bias = 0
	if dt > dtThreshold {
		vRel := c.Normal.Dot(relVelocity)
		if -contact.Penetration < contactSlop && vRel < 0 {
			c.Bias = -contact.Restitution()*vRel - contactBeta*(-contact.Penetration-contactSlop)/dt
		}
	}
}

// SolveContact applies one friction then one non-penetration impulse.
func SolveContact(c *ContactUpdate, rbA, rbB *actor.GlobalState) {
	if rbA.InvMass == 0 && rbB.InvMass == 0 {
		return
	}

	vA, wA := rbA.LinearVelocity, rbA.AngularVelocity
	vB, wB := rbB.LinearVelocity, rbB.AngularVelocity

	// friction
	{
		relVelocity := vB.Add(wB.Cross(c.RelGlobalAnchorB)).Sub(vA.Add(wA.Cross(c.RelGlobalAnchorA)))
		vt := relVelocity.Dot(c.Tangent)
		lambda := -c.EffectiveMassInTangentDir * vt

		maxFriction := c.Friction * c.ImpulseInNormalDir
		impulse := mathutil.Clamp(c.ImpulseInTangentDir+lambda, -maxFriction, maxFriction)
		lambda = impulse - c.ImpulseInTangentDir
		c.ImpulseInTangentDir = impulse

		p := c.Tangent.Mul(lambda)
		vA = vA.Sub(p.Mul(rbA.InvMass))
		wA = wA.Sub(c.TangentImpulseToAngularVelocityA.Mul(lambda))
		vB = vB.Add(p.Mul(rbB.InvMass))
		wB = wB.Add(c.TangentImpulseToAngularVelocityB.Mul(lambda))
	}

	// non-penetration
	{
		relVelocity := vB.Add(wB.Cross(c.RelGlobalAnchorB)).Sub(vA.Add(wA.Cross(c.RelGlobalAnchorA)))
		vn := relVelocity.Dot(c.Normal)
		lambda := -c.EffectiveMassInNormalDir * (vn - c.Bias)

		impulse := max(c.ImpulseInNormalDir+lambda, 0)
		lambda = impulse - c.ImpulseInNormalDir
		c.ImpulseInNormalDir = impulse

		p := c.Normal.Mul(lambda)
		vA = vA.Sub(p.Mul(rbA.InvMass))
		wA = wA.Sub(c.NormalImpulseToAngularVelocityA.Mul(lambda))
		vB = vB.Add(p.Mul(rbB.InvMass))
		wB = wB.Add(c.NormalImpulseToAngularVelocityB.Mul(lambda))
	}

	store(rbA, rbB, vA, wA, vB, wB)
}

// SolveContacts runs SolveContact over every row. pairs is parallel to updates.
func SolveContacts(updates []ContactUpdate, pairs []narrowphase.BodyPair, globals []actor.GlobalState) {
	for i := range updates {
		SolveContact(&updates[i], &globals[pairs[i].A], &globals[pairs[i].B])
	}
}
