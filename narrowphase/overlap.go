package narrowphase

import (
	"github.com/akmonengine/impulse/geometry"
	"github.com/akmonengine/impulse/gjk"
)

// Overlap reports whether two shapes touch or intersect, without computing contacts.
// Sphere, capsule and box pairs are tested analytically, everything else with GJK.
func Overlap(a, b geometry.Shape) bool {
	if a.Type() > b.Type() {
		a, b = b, a
	}

	switch sa := a.(type) {
	case geometry.Sphere:
		switch sb := b.(type) {
		case geometry.Sphere:
			return sa.Overlaps(sb)
		case geometry.Capsule:
			return geometry.SphereCapsuleOverlap(sa, sb)
		case geometry.AABB:
			return geometry.SphereAABBOverlap(sa, sb)
		case geometry.OBB:
			local := geometry.Sphere{Center: sb.ToLocal(sa.Center), Radius: sa.Radius}
			return geometry.SphereAABBOverlap(local, sb.LocalAABB())
		}
	case geometry.Capsule:
		if sb, ok := b.(geometry.Capsule); ok {
			closest := geometry.ClosestPointsSegmentSegment(sa.PositionA, sa.PositionB, sb.PositionA, sb.PositionB)
			radiusSum := sa.Radius + sb.Radius
			return closest.SqDist <= radiusSum*radiusSum
		}
	case geometry.AABB:
		switch sb := b.(type) {
		case geometry.AABB:
			return sa.Overlaps(sb)
		case geometry.OBB:
			_, ok := satOBB(asOBB(sa), sb)
			return ok
		}
	case geometry.OBB:
		if sb, ok := b.(geometry.OBB); ok {
			_, ok := satOBB(sa, sb)
			return ok
		}
	}

	return gjk.Overlap(a, b)
}
