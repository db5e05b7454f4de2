package geometry

import (
	"math"
)

// polynomialEpsilon is the threshold under which a discriminant or coefficient is treated as zero.
const polynomialEpsilon = 1e-9

func isZero(x float64) bool {
	return math.Abs(x) < polynomialEpsilon
}

// SolveQuadratic solves c0 + c1*x + c2*x² = 0. It returns the real roots and
// how many of them are valid. A double root is reported once.
func SolveQuadratic(c0, c1, c2 float64) ([2]float64, int) {
	p := c1 / (2 * c2)
	q := c0 / c2

	d := p*p - q

	switch {
	case isZero(d):
		return [2]float64{-p}, 1
	case d < 0:
		return [2]float64{}, 0
	default:
		sqrtD := math.Sqrt(d)
		return [2]float64{sqrtD - p, -sqrtD - p}, 2
	}
}

// SolveCubic solves c0 + c1*x + c2*x² + c3*x³ = 0 with Cardano's formula.
func SolveCubic(c0, c1, c2, c3 float64) ([3]float64, int) {
	a := c2 / c3
	b := c1 / c3
	c := c0 / c3

	// substitute x = y - a/3 to get y³ + 3py + 2q = 0
	sqA := a * a
	p := 1.0 / 3 * (-1.0/3*sqA + b)
	q := 1.0 / 2 * (2.0/27*a*sqA - 1.0/3*a*b + c)

	cbP := p * p * p
	d := q*q + cbP

	var roots [3]float64
	var n int

	switch {
	case isZero(d):
		if isZero(q) {
			roots[0], n = 0, 1
		} else {
			u := math.Cbrt(-q)
			roots[0], roots[1], n = 2*u, -u, 2
		}
	case d < 0:
		// three real roots
		phi := 1.0 / 3 * math.Acos(-q/math.Sqrt(-cbP))
		t := 2 * math.Sqrt(-p)
		roots[0] = t * math.Cos(phi)
		roots[1] = -t * math.Cos(phi+math.Pi/3)
		roots[2] = -t * math.Cos(phi-math.Pi/3)
		n = 3
	default:
		sqrtD := math.Sqrt(d)
		u := math.Cbrt(sqrtD - q)
		v := -math.Cbrt(sqrtD + q)
		roots[0], n = u+v, 1
	}

	sub := a / 3
	for i := 0; i < n; i++ {
		roots[i] -= sub
	}
	return roots, n
}

// SolveQuartic solves c0 + c1*x + c2*x² + c3*x³ + c4*x⁴ = 0 with Ferrari's
// method. Roots are not sorted.
func SolveQuartic(c0, c1, c2, c3, c4 float64) ([4]float64, int) {
	a := c3 / c4
	b := c2 / c4
	c := c1 / c4
	d := c0 / c4

	// substitute x = y - a/4 to get y⁴ + py² + qy + r = 0
	sqA := a * a
	p := -3.0/8*sqA + b
	q := 1.0/8*sqA*a - 1.0/2*a*b + c
	r := -3.0/256*sqA*sqA + 1.0/16*sqA*b - 1.0/4*a*c + d

	var roots [4]float64
	var n int

	if isZero(r) {
		// y(y³ + py + q) = 0
		cubic, cn := SolveCubic(q, p, 0, 1)
		n = copy(roots[:], cubic[:cn])
		roots[n] = 0
		n++
	} else {
		cubic, _ := SolveCubic(1.0/2*r*p-1.0/8*q*q, -r, -0.5*p, 1)
		z := cubic[0]

		u := z*z - r
		v := 2*z - p

		switch {
		case isZero(u):
			u = 0
		case u > 0:
			u = math.Sqrt(u)
		default:
			return roots, 0
		}

		switch {
		case isZero(v):
			v = 0
		case v > 0:
			v = math.Sqrt(v)
		default:
			return roots, 0
		}

		signedV := v
		if q < 0 {
			signedV = -v
		}

		first, fn := SolveQuadratic(z-u, signedV, 1)
		n = copy(roots[:], first[:fn])
		second, sn := SolveQuadratic(z+u, -signedV, 1)
		n += copy(roots[n:], second[:sn])
	}

	sub := a / 4
	for i := 0; i < n; i++ {
		roots[i] -= sub
	}
	return roots, n
}
