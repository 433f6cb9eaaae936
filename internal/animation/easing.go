package animation

import (
	"fmt"
	"sort"

	"github.com/tanema/gween/ease"
)

// Easing maps linear progress in [0, 1] to eased progress.
type Easing func(p float64) float64

var easings = map[string]ease.TweenFunc{
	"linear":       ease.Linear,
	"in-quad":      ease.InQuad,
	"out-quad":     ease.OutQuad,
	"in-out-quad":  ease.InOutQuad,
	"in-cubic":     ease.InCubic,
	"out-cubic":    ease.OutCubic,
	"in-out-cubic": ease.InOutCubic,
	"in-sine":      ease.InSine,
	"out-sine":     ease.OutSine,
	"in-out-sine":  ease.InOutSine,
	"in-expo":      ease.InExpo,
	"out-expo":     ease.OutExpo,
	"in-out-expo":  ease.InOutExpo,
	"in-back":      ease.InBack,
	"out-back":     ease.OutBack,
	"in-out-back":  ease.InOutBack,
	"in-bounce":    ease.InBounce,
	"out-bounce":   ease.OutBounce,
	"in-elastic":   ease.InElastic,
	"out-elastic":  ease.OutElastic,
}

// Linear is the identity easing.
func Linear(p float64) float64 { return p }

// Hold keeps the segment's start value until the segment ends.
func Hold(p float64) float64 {
	if p >= 1 {
		return 1
	}
	return 0
}

// EasingByName resolves a named easing. The empty name is linear.
func EasingByName(name string) (Easing, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "hold":
		return Hold, nil
	}
	fn, ok := easings[name]
	if !ok {
		return nil, fmt.Errorf("unknown easing %q", name)
	}
	return fromTween(fn), nil
}

// EasingNames lists every accepted easing name.
func EasingNames() []string {
	names := []string{"hold"}
	for k := range easings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// fromTween adapts a gween easing over (t, begin, change, duration) to a
// unit progress curve.
func fromTween(fn ease.TweenFunc) Easing {
	return func(p float64) float64 {
		switch {
		case p <= 0:
			return 0
		case p >= 1:
			return 1
		}
		return float64(fn(float32(p), 0, 1, 1))
	}
}
