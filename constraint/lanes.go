package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl64"
)

// LaneFloat holds one float32 per lane.
type LaneFloat [Lanes]float32

// LaneVec3 holds one vector per lane, component by component.
type LaneVec3 [3]LaneFloat

// LaneMat3 holds one column-major 3x3 matrix per lane.
type LaneMat3 [9]LaneFloat

func (a LaneFloat) add(b LaneFloat) LaneFloat {
	for i := range a {
		a[i] += b[i]
	}
	return a
}

func (a LaneFloat) sub(b LaneFloat) LaneFloat {
	for i := range a {
		a[i] -= b[i]
	}
	return a
}

func (a LaneFloat) mul(b LaneFloat) LaneFloat {
	for i := range a {
		a[i] *= b[i]
	}
	return a
}

func (a LaneFloat) neg() LaneFloat {
	for i := range a {
		a[i] = -a[i]
	}
	return a
}

// reciprocal returns 1/a per lane, or 0 where a is 0.
func (a LaneFloat) reciprocal() LaneFloat {
	for i := range a {
		if a[i] != 0 {
			a[i] = 1 / a[i]
		}
	}
	return a
}

func (a LaneFloat) maxScalar(s float32) LaneFloat {
	for i := range a {
		a[i] = math32.Max(a[i], s)
	}
	return a
}

// clampAbs clamps every lane to [-limit, limit].
func (a LaneFloat) clampAbs(limit LaneFloat) LaneFloat {
	for i := range a {
		a[i] = math32.Max(-limit[i], math32.Min(a[i], limit[i]))
	}
	return a
}

func (a LaneVec3) add(b LaneVec3) LaneVec3 {
	return LaneVec3{a[0].add(b[0]), a[1].add(b[1]), a[2].add(b[2])}
}

func (a LaneVec3) sub(b LaneVec3) LaneVec3 {
	return LaneVec3{a[0].sub(b[0]), a[1].sub(b[1]), a[2].sub(b[2])}
}

func (a LaneVec3) scale(s LaneFloat) LaneVec3 {
	return LaneVec3{a[0].mul(s), a[1].mul(s), a[2].mul(s)}
}

func (a LaneVec3) dot(b LaneVec3) LaneFloat {
	return a[0].mul(b[0]).add(a[1].mul(b[1])).add(a[2].mul(b[2]))
}

func (a LaneVec3) cross(b LaneVec3) LaneVec3 {
	return LaneVec3{
		a[1].mul(b[2]).sub(a[2].mul(b[1])),
		a[2].mul(b[0]).sub(a[0].mul(b[2])),
		a[0].mul(b[1]).sub(a[1].mul(b[0])),
	}
}

// noz normalizes every lane, leaving zero the lanes too short to normalize.
func (a LaneVec3) noz() LaneVec3 {
	for i := 0; i < Lanes; i++ {
		l := math32.Sqrt(a[0][i]*a[0][i] + a[1][i]*a[1][i] + a[2][i]*a[2][i])
		if l < 1e-6 {
			a[0][i], a[1][i], a[2][i] = 0, 0, 0
			continue
		}
		a[0][i] /= l
		a[1][i] /= l
		a[2][i] /= l
	}
	return a
}

func (m *LaneMat3) mulVec(v LaneVec3) LaneVec3 {
	var out LaneVec3
	for row := 0; row < 3; row++ {
		out[row] = m[row].mul(v[0]).add(m[3+row].mul(v[1])).add(m[6+row].mul(v[2]))
	}
	return out
}

func (v *LaneVec3) set(lane int, x mgl64.Vec3) {
	v[0][lane] = float32(x[0])
	v[1][lane] = float32(x[1])
	v[2][lane] = float32(x[2])
}

func (v *LaneVec3) lane(lane int) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0][lane]), float64(v[1][lane]), float64(v[2][lane])}
}

func (m *LaneMat3) set(lane int, x mgl64.Mat3) {
	for i := range x {
		m[i][lane] = float32(x[i])
	}
}

// laneBodies is the gathered velocity state of the bodies of a batch. The
// float64 copies are kept so that scattering adds the float32 velocity change
// to the untouched original.
type laneBodies struct {
	indices [Lanes]uint16
	v, w    LaneVec3
	v64     [Lanes]mgl64.Vec3
	w64     [Lanes]mgl64.Vec3
	invMass LaneFloat
}

func gather(globals []actor.GlobalState, indices [Lanes]uint16) laneBodies {
	b := laneBodies{indices: indices}
	for lane, index := range indices {
		g := &globals[index]
		b.v64[lane] = g.LinearVelocity
		b.w64[lane] = g.AngularVelocity
		b.v.set(lane, g.LinearVelocity)
		b.w.set(lane, g.AngularVelocity)
		b.invMass[lane] = float32(g.InvMass)
	}
	return b
}

// scatter writes back the gathered velocities plus the change accumulated in
// v and w since the gather. Lanes holding the same body carry the same change.
func (b *laneBodies) scatter(globals []actor.GlobalState, v, w LaneVec3) {
	dv := v.sub(b.v)
	dw := w.sub(b.w)
	for lane, index := range b.indices {
		g := &globals[index]
		g.LinearVelocity = b.v64[lane].Add(dv.lane(lane))
		g.AngularVelocity = b.w64[lane].Add(dw.lane(lane))
	}
}
