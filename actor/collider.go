package actor

import (
	"github.com/akmonengine/impulse/geometry"
)

// ObjectType classifies what a collider belongs to. A collider has exactly one.
type ObjectType uint8

const (
	ObjectTypeNone ObjectType = iota
	ObjectTypeRigidBody
	ObjectTypeStatic
	ObjectTypeTrigger
	ObjectTypeForceField
)

func (o ObjectType) String() string {
	switch o {
	case ObjectTypeRigidBody:
		return "RigidBody"
	case ObjectTypeStatic:
		return "Static"
	case ObjectTypeTrigger:
		return "Trigger"
	case ObjectTypeForceField:
		return "ForceField"
	default:
		return "None"
	}
}

// Material describes the surface and bulk of a collider.
type Material struct {
	Restitution float64 // 0 = no rebound, 1 = perfect restitution
	Friction    float64
	Density     float64
}

func DefaultMaterial() Material {
	return Material{Restitution: 0.1, Friction: 0.5, Density: 1}
}

// Collider is a shape attached to a body, expressed in the body's local space.
type Collider struct {
	Shape    geometry.Shape
	Material Material
}

func NewCollider(shape geometry.Shape, material Material) Collider {
	return Collider{Shape: shape, Material: material}
}

func (c Collider) MassProperties() geometry.MassProperties {
	return c.Shape.MassProperties(c.Material.Density)
}

// WorldCollider is the world-space copy of a collider, rebuilt at the start of every step.
// ObjectIndex indexes the per-kind arrays of the step (rigid bodies, force fields or
// triggers); Body indexes the world's body list.
type WorldCollider struct {
	Shape       geometry.Shape
	Material    Material
	ObjectType  ObjectType
	ObjectIndex int
	Body        int
}

// NewWorldCollider moves the collider by the body transform.
func NewWorldCollider(c Collider, transform Transform, objectType ObjectType, objectIndex, body int) WorldCollider {
	return WorldCollider{
		Shape:       c.Shape.Transformed(transform.Position, transform.Rotation),
		Material:    c.Material,
		ObjectType:  objectType,
		ObjectIndex: objectIndex,
		Body:        body,
	}
}
