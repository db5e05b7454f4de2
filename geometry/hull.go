package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrEmptyHull   = errors.New("hull has no triangles")
	ErrOpenHull    = errors.New("hull mesh is not closed")
	ErrHullIndex   = errors.New("hull triangle index out of range")
	ErrNonManifold = errors.New("hull edge shared by more than two faces")
)

const noFace = -1

type HullFace struct {
	A, B, C int
	// Normal is the unnormalized face normal, (B-A) x (C-A).
	Normal mgl64.Vec3
}

type HullEdge struct {
	From, To     int
	FaceA, FaceB int
}

// HullGeometry is the shared, immutable mesh of a convex hull in its local space.
// The mesh must be convex, closed and wound counter-clockwise seen from outside.
type HullGeometry struct {
	Vertices []mgl64.Vec3
	Faces    []HullFace
	Edges    []HullEdge
	AABB     AABB
}

// NewHullGeometry builds the geometry from a triangle mesh. Every undirected
// edge is stored once with the two faces sharing it.
func NewHullGeometry(vertices []mgl64.Vec3, triangles [][3]int) (*HullGeometry, error) {
	if len(triangles) == 0 {
		return nil, ErrEmptyHull
	}

	hull := &HullGeometry{
		Vertices: make([]mgl64.Vec3, len(vertices)),
		Faces:    make([]HullFace, len(triangles)),
		Edges:    make([]HullEdge, 0, len(vertices)+len(triangles)-2),
		AABB:     NegativeInfinity(),
	}

	for i, v := range vertices {
		hull.Vertices[i] = v
		hull.AABB = hull.AABB.Grow(v)
	}

	edgeMap := make(map[[2]int]int, cap(hull.Edges))

	addEdge := func(a, b, face int) error {
		key := [2]int{min(a, b), max(a, b)}
		index, ok := edgeMap[key]
		if !ok {
			edgeMap[key] = len(hull.Edges)
			hull.Edges = append(hull.Edges, HullEdge{From: key[0], To: key[1], FaceA: face, FaceB: noFace})
			return nil
		}
		if hull.Edges[index].FaceB != noFace {
			return fmt.Errorf("edge %d-%d: %w", key[0], key[1], ErrNonManifold)
		}
		hull.Edges[index].FaceB = face
		return nil
	}

	for i, tri := range triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("triangle %d: %w", i, ErrHullIndex)
			}
		}

		a, b, c := tri[0], tri[1], tri[2]
		va, vb, vc := vertices[a], vertices[b], vertices[c]

		hull.Faces[i] = HullFace{A: a, B: b, C: c, Normal: vb.Sub(va).Cross(vc.Sub(va))}

		if err := addEdge(a, b, i); err != nil {
			return nil, err
		}
		if err := addEdge(b, c, i); err != nil {
			return nil, err
		}
		if err := addEdge(a, c, i); err != nil {
			return nil, err
		}
	}

	for _, e := range hull.Edges {
		if e.FaceB == noFace {
			return nil, fmt.Errorf("edge %d-%d: %w", e.From, e.To, ErrOpenHull)
		}
	}

	return hull, nil
}

// Hull places a HullGeometry in space.
type Hull struct {
	Geometry *HullGeometry
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

func (h Hull) Type() ShapeType {
	return ShapeTypeHull
}

func (h Hull) Centroid() mgl64.Vec3 {
	return h.Rotation.Rotate(h.Geometry.AABB.Centroid()).Add(h.Position)
}

func (h Hull) Support(direction mgl64.Vec3) mgl64.Vec3 {
	local := h.Rotation.Conjugate().Rotate(direction)

	best := 0
	bestDot := -math.MaxFloat64
	for i, v := range h.Geometry.Vertices {
		if d := v.Dot(local); d > bestDot {
			bestDot = d
			best = i
		}
	}

	return h.Rotation.Rotate(h.Geometry.Vertices[best]).Add(h.Position)
}

func (h Hull) Bounds() AABB {
	return h.Geometry.AABB.TransformToAABB(h.Rotation, h.Position)
}

func (h Hull) Transformed(position mgl64.Vec3, rotation mgl64.Quat) Shape {
	return Hull{
		Geometry: h.Geometry,
		Position: rotation.Rotate(h.Position).Add(position),
		Rotation: rotation.Mul(h.Rotation).Normalize(),
	}
}

// Vertex returns vertex i in world space.
func (h Hull) Vertex(i int) mgl64.Vec3 {
	return h.Rotation.Rotate(h.Geometry.Vertices[i]).Add(h.Position)
}

// MassProperties integrates the covariance of the tetrahedra spanned by the
// origin and every face, then converts it to an inertia tensor about the COG.
func (h Hull) MassProperties(density float64) MassProperties {
	const s60 = 1.0 / 60.0
	const s120 = 1.0 / 120.0

	// Covariance of the canonical tetrahedron (0, e_x, e_y, e_z).
	canonical := mgl64.Mat3{
		s60, s120, s120,
		s120, s60, s120,
		s120, s120, s60,
	}

	var totalMass float64
	var totalCOG mgl64.Vec3
	var totalCovariance mgl64.Mat3

	for i := range h.Geometry.Faces {
		face := h.Geometry.Faces[i]
		w1 := h.Vertex(face.A)
		w2 := h.Vertex(face.B)
		w3 := h.Vertex(face.C)

		a := mgl64.Mat3FromCols(w1, w2, w3)
		det := a.Det()

		covariance := a.Mul3(canonical).Mul3(a.Transpose()).Mul(det)
		volume := det / 6

		totalMass += volume
		totalCovariance = totalCovariance.Add(covariance)
		totalCOG = totalCOG.Add(w1.Add(w2).Add(w3).Mul(0.25 * volume))
	}

	if math.Abs(totalMass) < 1e-12 {
		return MassProperties{COG: h.Centroid()}
	}

	totalCOG = totalCOG.Mul(1 / totalMass)
	shifted := totalCovariance.Sub(totalCOG.OuterProd3(totalCOG).Mul(totalMass))

	inertia := mgl64.Ident3().Mul(shifted.Trace()).Sub(shifted)

	return MassProperties{
		Mass:    totalMass * density,
		COG:     totalCOG,
		Inertia: inertia.Mul(density),
	}
}

var boxTriangles = [][3]int{
	{0, 4, 6}, {0, 6, 2}, // -X
	{1, 3, 7}, {1, 7, 5}, // +X
	{0, 1, 5}, {0, 5, 4}, // -Y
	{2, 6, 7}, {2, 7, 3}, // +Y
	{0, 2, 3}, {0, 3, 1}, // -Z
	{4, 5, 7}, {4, 7, 6}, // +Z
}

// NewBoxHullGeometry builds the 8 vertex, 12 triangle hull of a box centered on the origin.
func NewBoxHullGeometry(halfExtents mgl64.Vec3) *HullGeometry {
	vertices := make([]mgl64.Vec3, 8)
	for i := range vertices {
		v := halfExtents
		if i&1 == 0 {
			v[0] = -v[0]
		}
		if i&2 == 0 {
			v[1] = -v[1]
		}
		if i&4 == 0 {
			v[2] = -v[2]
		}
		vertices[i] = v
	}

	hull, err := NewHullGeometry(vertices, boxTriangles)
	if err != nil {
		panic(err)
	}
	return hull
}
