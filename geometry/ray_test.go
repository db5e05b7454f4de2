package geometry

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestRayIntersect(t *testing.T) {
	unitBox := AABB{Min: mgl64.Vec3{-1, -1, -1}, Max: mgl64.Vec3{1, 1, 1}}
	torus := Torus{UpAxis: mgl64.Vec3{0, 1, 0}, MajorRadius: 2, TubeRadius: 0.5}

	tests := []struct {
		name     string
		ray      Ray
		query    func(Ray) (float64, bool)
		expectOk bool
		expectT  float64
	}{
		{
			name:     "sphere head on",
			ray:      NewRay(mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 0, 1}),
			query:    func(r Ray) (float64, bool) { return r.IntersectSphere(Sphere{Radius: 1}) },
			expectOk: true,
			expectT:  4,
		},
		{
			name:     "sphere origin inside",
			ray:      NewRay(mgl64.Vec3{0, 0, 0.5}, mgl64.Vec3{0, 0, 1}),
			query:    func(r Ray) (float64, bool) { return r.IntersectSphere(Sphere{Radius: 1}) },
			expectOk: true,
			expectT:  0,
		},
		{
			name:  "sphere pointing away",
			ray:   NewRay(mgl64.Vec3{0, 0, -5}, mgl64.Vec3{0, 0, -1}),
			query: func(r Ray) (float64, bool) { return r.IntersectSphere(Sphere{Radius: 1}) },
		},
		{
			name:     "aabb from outside",
			ray:      NewRay(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 0, 0}),
			query:    func(r Ray) (float64, bool) { return r.IntersectAABB(unitBox) },
			expectOk: true,
			expectT:  4,
		},
		{
			name:     "aabb origin inside",
			ray:      NewRay(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}),
			query:    func(r Ray) (float64, bool) { return r.IntersectAABB(unitBox) },
			expectOk: true,
			expectT:  0,
		},
		{
			name:  "aabb behind",
			ray:   NewRay(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{1, 0, 0}),
			query: func(r Ray) (float64, bool) { return r.IntersectAABB(unitBox) },
		},
		{
			name:  "aabb parallel outside slab",
			ray:   NewRay(mgl64.Vec3{-5, 2, 0}, mgl64.Vec3{1, 0, 0}),
			query: func(r Ray) (float64, bool) { return r.IntersectAABB(unitBox) },
		},
		{
			name: "obb rotated",
			ray:  NewRay(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 0, 0}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectOBB(OBB{Radius: mgl64.Vec3{1, 1, 1}, Rotation: mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})})
			},
			expectOk: true,
			expectT:  5 - math.Sqrt2,
		},
		{
			name: "cylinder side",
			ray:  NewRay(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 0, 0}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectCylinder(Cylinder{PositionA: mgl64.Vec3{0, -1, 0}, PositionB: mgl64.Vec3{0, 1, 0}, Radius: 1})
			},
			expectOk: true,
			expectT:  4,
		},
		{
			name: "cylinder cap along axis",
			ray:  NewRay(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -1, 0}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectCylinder(Cylinder{PositionA: mgl64.Vec3{0, -1, 0}, PositionB: mgl64.Vec3{0, 1, 0}, Radius: 1})
			},
			expectOk: true,
			expectT:  4,
		},
		{
			name: "cylinder above the top",
			ray:  NewRay(mgl64.Vec3{-5, 2, 0}, mgl64.Vec3{1, 0, 0}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectCylinder(Cylinder{PositionA: mgl64.Vec3{0, -1, 0}, PositionB: mgl64.Vec3{0, 1, 0}, Radius: 1})
			},
		},
		{
			name: "capsule end sphere",
			ray:  NewRay(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -1, 0}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectCapsule(Capsule{PositionA: mgl64.Vec3{0, -1, 0}, PositionB: mgl64.Vec3{0, 1, 0}, Radius: 0.5})
			},
			expectOk: true,
			expectT:  3.5,
		},
		{
			name: "disk",
			ray:  NewRay(mgl64.Vec3{0.5, 3, 0}, mgl64.Vec3{0, -1, 0}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectDisk(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0}, 1)
			},
			expectOk: true,
			expectT:  3,
		},
		{
			name: "rectangle outside half extent",
			ray:  NewRay(mgl64.Vec3{0, 3, 1.5}, mgl64.Vec3{0, -1, 0}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectRectangle(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 1}, mgl64.Vec2{2, 1})
			},
		},
		{
			name:     "torus tube",
			ray:      NewRay(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{1, 0, 0}),
			query:    func(r Ray) (float64, bool) { return r.IntersectTorus(torus) },
			expectOk: true,
			expectT:  2.5,
		},
		{
			name:  "torus through the hole",
			ray:   NewRay(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -1, 0}),
			query: func(r Ray) (float64, bool) { return r.IntersectTorus(torus) },
		},
		{
			name: "hull",
			ray:  NewRay(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, -1}),
			query: func(r Ray) (float64, bool) {
				return r.IntersectHull(Hull{Geometry: NewBoxHullGeometry(mgl64.Vec3{1, 1, 1}), Rotation: mgl64.QuatIdent()})
			},
			expectOk: true,
			expectT:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.query(tt.ray)
			if ok != tt.expectOk {
				t.Fatalf("Expected hit %v, got %v (t=%v)", tt.expectOk, ok, got)
			}
			if ok && !floatEqual(got, tt.expectT, 1e-5) {
				t.Errorf("Expected t %v, got %v", tt.expectT, got)
			}
		})
	}
}

func TestRayIntersectTriangle(t *testing.T) {
	a := mgl64.Vec3{-1, 0, -1}
	b := mgl64.Vec3{0, 0, 1}
	c := mgl64.Vec3{1, 0, -1}

	down := NewRay(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{0, -1, 0})
	tHit, front, ok := down.IntersectTriangle(a, b, c)
	if !ok || !floatEqual(tHit, 2, 1e-9) {
		t.Fatalf("Expected hit at 2, got %v %v", tHit, ok)
	}
	if !front {
		t.Error("Expected a front facing hit from above")
	}

	up := NewRay(mgl64.Vec3{0, -2, 0}, mgl64.Vec3{0, 1, 0})
	if _, front, ok := up.IntersectTriangle(a, b, c); !ok || front {
		t.Errorf("Expected back facing hit, got front=%v ok=%v", front, ok)
	}

	miss := NewRay(mgl64.Vec3{3, 2, 0}, mgl64.Vec3{0, -1, 0})
	if _, _, ok := miss.IntersectTriangle(a, b, c); ok {
		t.Error("Expected miss outside the triangle")
	}
}

func TestRayIntersectDispatch(t *testing.T) {
	r := NewRay(mgl64.Vec3{0, 10, 0}, mgl64.Vec3{0, -1, 0})
	got, ok := r.Intersect(Sphere{Radius: 2})
	if !ok || !floatEqual(got, 8, 1e-9) {
		t.Errorf("Expected 8, got %v (%v)", got, ok)
	}
}

func TestPlane(t *testing.T) {
	p := PlaneFromPoints(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 1}, mgl64.Vec3{1, 1, 0})
	if !vec3Equal(p.Normal, mgl64.Vec3{0, 1, 0}, 1e-9) {
		t.Fatalf("Expected normal +Y, got %v", p.Normal)
	}
	if d := p.SignedDistance(mgl64.Vec3{4, 3, 4}); !floatEqual(d, 2, 1e-9) {
		t.Errorf("Expected distance 2, got %v", d)
	}
	if proj := p.Project(mgl64.Vec3{4, 3, 4}); !vec3Equal(proj, mgl64.Vec3{4, 1, 4}, 1e-9) {
		t.Errorf("Expected projection %v, got %v", mgl64.Vec3{4, 1, 4}, proj)
	}
}
