package animation

import (
	"math"

	"github.com/ivlev/compositor/internal/geom"
)

// Lerper blends two endpoint values by eased progress p.
type Lerper[T any] func(a, b T, p float64) T

func LerpFloat(a, b, p float64) float64 {
	return a + (b-a)*p
}

// LerpInt rounds the numeric blend to the nearest integer.
func LerpInt(a, b int, p float64) int {
	return int(math.Round(float64(a) + float64(b-a)*p))
}

// Discrete selects the nearest endpoint instead of blending. Used for values
// that cannot be mixed, such as enums, strings and flags.
func Discrete[T any](a, b T, p float64) T {
	if p >= 0.5 {
		return b
	}
	return a
}

// DefaultLerp returns the interpolation strategy for T: numeric for scalars,
// component-wise for vectors, colors and rectangles, discrete otherwise.
func DefaultLerp[T any]() Lerper[T] {
	var zero T
	var f any
	switch any(zero).(type) {
	case float64:
		f = Lerper[float64](LerpFloat)
	case int:
		f = Lerper[int](LerpInt)
	case geom.Vec2:
		f = Lerper[geom.Vec2](geom.Vec2.Lerp)
	case geom.Color:
		f = Lerper[geom.Color](geom.LerpColor)
	case geom.Rect:
		f = Lerper[geom.Rect](geom.LerpRect)
	default:
		return Discrete[T]
	}
	return f.(Lerper[T])
}
