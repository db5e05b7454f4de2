package impulse

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// RaycastHit is the nearest collider crossed by a ray.
type RaycastHit struct {
	Body     *actor.Body
	Collider int
	Point    mgl64.Vec3
	Distance float64
}

// raycast tests the colliders of every body accepted by filter against the
// current transforms.
func (w *World) raycast(ray geometry.Ray, filter func(*actor.Body) bool) (RaycastHit, bool) {
	hit := RaycastHit{Distance: math.Inf(1)}
	found := false

	for _, ref := range w.colliders {
		if filter != nil && !filter(ref.body) {
			continue
		}
		transform := ref.body.Transform
		shape := ref.body.Colliders[ref.collider].Shape.Transformed(transform.Position, transform.Rotation)

		t, ok := ray.Intersect(shape)
		if !ok || t < 0 || t >= hit.Distance {
			continue
		}
		hit = RaycastHit{Body: ref.body, Collider: ref.collider, Distance: t}
		found = true
	}

	if found {
		hit.Point = ray.At(hit.Distance)
	}
	return hit, found
}

// Raycast returns the nearest collider hit by the ray, among all bodies.
// The direction of the ray must be normalized for Distance to be in meters.
func (w *World) Raycast(ray geometry.Ray) (RaycastHit, bool) {
	return w.raycast(ray, nil)
}

// ApplyInteraction pushes the first rigid body hit by the ray along the ray
// direction, as if poked at the hit point. The force and the torque are applied
// during the next step.
func (w *World) ApplyInteraction(ray geometry.Ray, strength float64) (*actor.Body, bool) {
	hit, ok := w.raycast(ray, (*actor.Body).IsRigidBody)
	if !ok {
		return nil, false
	}

	rb := hit.Body.RigidBody
	force := ray.Direction.Mul(strength)
	rb.AddForce(force)
	rb.AddTorque(hit.Point.Sub(rb.GlobalCOG(hit.Body.Transform)).Cross(force))

	return hit.Body, true
}
