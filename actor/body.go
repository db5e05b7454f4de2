package actor

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ForceField pushes the rigid bodies it overlaps with Force, expressed in the
// local space of its body. A field without colliders is global.
type ForceField struct {
	Force mgl64.Vec3
}

// WorldForce returns the force rotated by the field's transform.
func (f ForceField) WorldForce(transform Transform) mgl64.Vec3 {
	return transform.TransformDirection(f.Force)
}

// Body is an entity taking part in the simulation.
type Body struct {
	ID        uint64
	Transform Transform
	Colliders []Collider
	Kind      ObjectType

	RigidBody  *RigidBody
	ForceField *ForceField

	UserData any
}

// NewDynamicBody creates a body moved by forces, contacts and constraints.
func NewDynamicBody(transform Transform, colliders ...Collider) *Body {
	return &Body{
		Transform: transform,
		Colliders: colliders,
		Kind:      ObjectTypeRigidBody,
		RigidBody: NewRigidBody(false),
	}
}

// NewKinematicBody creates a rigid body with infinite mass, driven only by its velocity.
func NewKinematicBody(transform Transform, colliders ...Collider) *Body {
	return &Body{
		Transform: transform,
		Colliders: colliders,
		Kind:      ObjectTypeRigidBody,
		RigidBody: NewRigidBody(true),
	}
}

// NewStaticBody creates an immovable collision body. Its contacts use the dummy slot.
func NewStaticBody(transform Transform, colliders ...Collider) *Body {
	return &Body{
		Transform: transform,
		Colliders: colliders,
		Kind:      ObjectTypeStatic,
	}
}

// NewTrigger creates a body that reports overlaps without colliding.
func NewTrigger(transform Transform, colliders ...Collider) *Body {
	return &Body{
		Transform: transform,
		Colliders: colliders,
		Kind:      ObjectTypeTrigger,
	}
}

// NewForceField creates a force field. Without colliders it applies to every rigid body.
func NewForceField(transform Transform, force mgl64.Vec3, colliders ...Collider) *Body {
	return &Body{
		Transform:  transform,
		Colliders:  colliders,
		Kind:       ObjectTypeForceField,
		ForceField: &ForceField{Force: force},
	}
}

func (b *Body) IsRigidBody() bool {
	return b.Kind == ObjectTypeRigidBody && b.RigidBody != nil
}

// RecalculateProperties refreshes mass, center of gravity and inertia from the colliders.
func (b *Body) RecalculateProperties() {
	if b.RigidBody != nil {
		b.RigidBody.RecalculateProperties(b.Colliders)
	}
}
