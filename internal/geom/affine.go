package geom

import "math"

// Affine is a 2x3 affine transform in row-major order:
//
//	| A  B  C |
//	| D  E  F |
//
// x' = A*x + B*y + C, y' = D*x + E*y + F.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, E: 1}
}

func Translate(x, y float64) Affine {
	return Affine{A: 1, C: x, E: 1, F: y}
}

func Scale(x, y float64) Affine {
	return Affine{A: x, E: y}
}

// Rotate rotates by angle radians.
func Rotate(angle float64) Affine {
	c, s := math.Cos(angle), math.Sin(angle)
	return Affine{A: c, B: -s, D: s, E: c}
}

// Mul returns m*o: o is applied first, then m.
func (m Affine) Mul(o Affine) Affine {
	return Affine{
		A: m.A*o.A + m.B*o.D,
		B: m.A*o.B + m.B*o.E,
		C: m.A*o.C + m.B*o.F + m.C,
		D: m.D*o.A + m.E*o.D,
		E: m.D*o.B + m.E*o.E,
		F: m.D*o.C + m.E*o.F + m.F,
	}
}

// Apply transforms a point.
func (m Affine) Apply(p Vec2) Vec2 {
	return Vec2{X: m.A*p.X + m.B*p.Y + m.C, Y: m.D*p.X + m.E*p.Y + m.F}
}

// IsIdentity reports whether m leaves every point unchanged.
func (m Affine) IsIdentity() bool {
	return m == Identity()
}

// IsZero reports whether m is the zero value, which callers treat as identity.
func (m Affine) IsZero() bool {
	return m == Affine{}
}

// Or returns m, or the identity when m is the zero value.
func (m Affine) Or() Affine {
	if m.IsZero() {
		return Identity()
	}
	return m
}

// TransformRect returns the bounding box of r's transformed corners.
func (m Affine) TransformRect(r Rect) Rect {
	if r.IsEmpty() {
		return Rect{}
	}
	c := r.Corners()
	pts := make([]Vec2, 0, 4)
	for _, p := range c {
		pts = append(pts, m.Apply(p))
	}
	return BoundsOf(pts)
}

// Invert returns the inverse transform and false when m is singular.
func (m Affine) Invert() (Affine, bool) {
	det := m.A*m.E - m.B*m.D
	if math.Abs(det) < 1e-12 {
		return Affine{}, false
	}
	inv := 1 / det
	return Affine{
		A: m.E * inv,
		B: -m.B * inv,
		C: (m.B*m.F - m.E*m.C) * inv,
		D: -m.D * inv,
		E: m.A * inv,
		F: (m.D*m.C - m.A*m.F) * inv,
	}, true
}
