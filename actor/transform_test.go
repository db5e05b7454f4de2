package actor

import (
	"math"
	"testing"

	"github.com/akmonengine/impulse/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformPoints(t *testing.T) {
	transform := NewTransformAt(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))

	world := transform.TransformPoint(mgl64.Vec3{1, 0, 0})
	if !vec3AlmostEqual(world, mgl64.Vec3{1, 3, 3}, 1e-12) {
		t.Errorf("TransformPoint = %v, want (1, 3, 3)", world)
	}

	local := transform.InverseTransformPoint(world)
	if !vec3AlmostEqual(local, mgl64.Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("InverseTransformPoint = %v, want (1, 0, 0)", local)
	}

	dir := transform.TransformDirection(mgl64.Vec3{0, 1, 0})
	if !vec3AlmostEqual(dir, mgl64.Vec3{-1, 0, 0}, 1e-12) {
		t.Errorf("TransformDirection = %v, want (-1, 0, 0)", dir)
	}
}

func TestTransformInterpolate(t *testing.T) {
	a := NewTransform()
	b := NewTransformAt(mgl64.Vec3{2, 0, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}))

	mid := a.Interpolate(b, 0.5)
	if !vec3AlmostEqual(mid.Position, mgl64.Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("Position = %v, want (1, 0, 0)", mid.Position)
	}
	expected := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})
	if !mid.Rotation.ApproxEqualThreshold(expected, 1e-9) {
		t.Errorf("Rotation = %v, want %v", mid.Rotation, expected)
	}
}

func TestNewWorldCollider(t *testing.T) {
	c := createSphereCollider(mgl64.Vec3{1, 0, 0}, 0.5, 1)
	transform := NewTransformAt(mgl64.Vec3{0, 5, 0}, mgl64.QuatRotate(math.Pi, mgl64.Vec3{0, 1, 0}))

	wc := NewWorldCollider(c, transform, ObjectTypeRigidBody, 3, 7)
	sphere, ok := wc.Shape.(geometry.Sphere)
	if !ok {
		t.Fatalf("Expected a sphere, got %T", wc.Shape)
	}
	if !vec3AlmostEqual(sphere.Center, mgl64.Vec3{-1, 5, 0}, 1e-12) {
		t.Errorf("Center = %v, want (-1, 5, 0)", sphere.Center)
	}
	if wc.ObjectIndex != 3 || wc.Body != 7 {
		t.Errorf("indices = %d/%d, want 3/7", wc.ObjectIndex, wc.Body)
	}
}

func TestBodyConstructors(t *testing.T) {
	c := createSphereCollider(mgl64.Vec3{}, 1, 2)

	dynamic := NewDynamicBody(NewTransform(), c)
	dynamic.RecalculateProperties()
	if !dynamic.IsRigidBody() {
		t.Error("Expected a rigid body")
	}
	if !almostEqual(1/dynamic.RigidBody.InvMass, c.MassProperties().Mass, 1e-9) {
		t.Errorf("mass = %v, want %v", 1/dynamic.RigidBody.InvMass, c.MassProperties().Mass)
	}

	if NewStaticBody(NewTransform(), c).IsRigidBody() {
		t.Error("Expected a static body not to be a rigid body")
	}

	field := NewForceField(NewTransformAt(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})), mgl64.Vec3{1, 0, 0})
	if got := field.ForceField.WorldForce(field.Transform); !vec3AlmostEqual(got, mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("WorldForce = %v, want (0, 1, 0)", got)
	}
	if field.Kind.String() != "ForceField" {
		t.Errorf("Kind = %s, want ForceField", field.Kind)
	}
}
