// Package narrowphase turns broadphase pairs into contacts.
//
// Every pair is sorted so that the first shape has the lower ShapeType, then
// dispatched to a specialized routine: analytic tests for spheres and capsules,
// separating axes with polygon clipping for boxes, and GJK/EPA for everything
// involving cylinders or hulls. Pairs involving a trigger or a force field only
// get a boolean overlap test and produce an Interaction.
package narrowphase

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/internal/mathutil"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxContactsPerManifold bounds the number of points produced for one collider pair.
const MaxContactsPerManifold = 4

// TerrainCollider is the collider index standing for the heightmap in a ColliderPair.
const TerrainCollider = -1

// Contact is a single contact point between two bodies.
type Contact struct {
	Point       mgl64.Vec3
	Penetration float64
	// Normal points from body A to body B.
	Normal mgl64.Vec3
	// FrictionRestitution packs the combined friction in the high 16 bits and the
	// combined restitution in the low 16 bits.
	FrictionRestitution uint32
}

func (c Contact) Friction() float64 {
	return float64(c.FrictionRestitution>>16) / 0xFFFF
}

func (c Contact) Restitution() float64 {
	return float64(c.FrictionRestitution&0xFFFF) / 0xFFFF
}

// PackMaterial clamps friction and restitution to [0, 1] and packs them in 16 bits each.
func PackMaterial(friction, restitution float64) uint32 {
	f := mathutil.Clamp01(friction)
	r := mathutil.Clamp01(restitution)
	return uint32(f*0xFFFF)<<16 | uint32(r*0xFFFF)
}

// CombineMaterials mixes two materials: the geometric mean of the frictions and
// the largest restitution.
func CombineMaterials(a, b actor.Material) uint32 {
	return PackMaterial(math.Sqrt(a.Friction*b.Friction), math.Max(a.Restitution, b.Restitution))
}

// BodyPair holds the rigid body indices of a contact or a constraint.
// Static geometry uses the dummy index.
type BodyPair struct {
	A, B uint16
}

// ColliderPair holds the collider indices of a collision, in the order of the contact normal.
type ColliderPair struct {
	A, B int
}

// Interaction records a rigid body overlapping a trigger or a force field.
type Interaction struct {
	RigidBody  int
	Other      actor.ObjectType
	OtherIndex int
}

// Result counts what one narrowphase call wrote.
type Result struct {
	Collisions   int
	Contacts     int
	Interactions int

	// Dropped counts contacts and interactions that did not fit in the output.
	Dropped int
	// EPAFailures counts overlapping pairs whose penetration could not be
	// resolved. They are treated as separated.
	EPAFailures int
}

// Output holds fixed capacity buffers filled by Narrowphase and HeightmapCollision.
//
// BodyPairs is parallel to Contacts. ColliderPairs and ContactCounts are parallel
// and hold one entry per collision: the contacts of collision i follow those of
// collision i-1 in Contacts.
type Output struct {
	Contacts      []Contact
	BodyPairs     []BodyPair
	ColliderPairs []ColliderPair
	ContactCounts []uint8
	Interactions  []Interaction

	total Result
}

// NewOutput carves the output buffers from a. A truncated arena gives a smaller
// output, and the narrowphase drops what does not fit.
func NewOutput(a *arena.Arena, maxContacts, maxCollisions, maxInteractions int) *Output {
	contacts := arena.Alloc[Contact](a, maxContacts)
	bodyPairs := arena.Alloc[BodyPair](a, maxContacts)
	colliderPairs := arena.Alloc[ColliderPair](a, maxCollisions)
	counts := arena.Alloc[uint8](a, maxCollisions)

	n := min(len(contacts), len(bodyPairs))
	m := min(len(colliderPairs), len(counts))

	return &Output{
		Contacts:      contacts[:n],
		BodyPairs:     bodyPairs[:n],
		ColliderPairs: colliderPairs[:m],
		ContactCounts: counts[:m],
		Interactions:  arena.Alloc[Interaction](a, maxInteractions),
	}
}

// Total returns everything written since the output was created or reset.
func (o *Output) Total() Result {
	return o.total
}

func (o *Output) Reset() {
	o.total = Result{}
}

// WrittenContacts returns the contacts written so far with their body pairs.
func (o *Output) WrittenContacts() ([]Contact, []BodyPair) {
	return o.Contacts[:o.total.Contacts], o.BodyPairs[:o.total.Contacts]
}

// WrittenCollisions returns the collider pairs written so far with their contact counts.
func (o *Output) WrittenCollisions() ([]ColliderPair, []uint8) {
	return o.ColliderPairs[:o.total.Collisions], o.ContactCounts[:o.total.Collisions]
}

func (o *Output) WrittenInteractions() []Interaction {
	return o.Interactions[:o.total.Interactions]
}

// addCollision writes a whole manifold, or nothing when it does not fit.
func (o *Output) addCollision(colliders ColliderPair, bodies BodyPair, material uint32, m *manifold, res *Result) {
	if m.count == 0 {
		return
	}

	if o.total.Contacts+m.count > len(o.Contacts) || o.total.Collisions >= len(o.ColliderPairs) {
		res.Dropped += m.count
		o.total.Dropped += m.count
		return
	}

	for i := 0; i < m.count; i++ {
		index := o.total.Contacts + i
		o.Contacts[index] = Contact{
			Point:               m.points[i].point,
			Penetration:         m.points[i].penetration,
			Normal:              m.normal,
			FrictionRestitution: material,
		}
		o.BodyPairs[index] = bodies
	}

	o.ColliderPairs[o.total.Collisions] = colliders
	o.ContactCounts[o.total.Collisions] = uint8(m.count)

	o.total.Contacts += m.count
	o.total.Collisions++
	res.Contacts += m.count
	res.Collisions++
}

func (o *Output) addInteraction(interaction Interaction, res *Result) {
	if o.total.Interactions >= len(o.Interactions) {
		res.Dropped++
		o.total.Dropped++
		return
	}

	o.Interactions[o.total.Interactions] = interaction
	o.total.Interactions++
	res.Interactions++
}
