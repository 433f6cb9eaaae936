// Package animation samples keyframed property values at arbitrary times.
//
// Sampling is a pure function of the animation and the time: animations are
// immutable once built and hold no cursor, so any number of callers may
// sample the same animation concurrently.
package animation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ivlev/compositor/internal/timebase"
)

var ErrNegativeTime = errors.New("keyframe time is negative")

// Keyframe pins a value at a time. Easing shapes the segment that ends at
// this keyframe.
type Keyframe[T any] struct {
	Time   timebase.Time `yaml:"time"`
	Value  T             `yaml:"value"`
	Easing string        `yaml:"easing,omitempty"`
}

type segment[T any] struct {
	start  timebase.Time
	length timebase.Time
	from   T
	to     T
	ease   Easing
}

// Animation is an ordered sequence of segments between keyframes.
type Animation[T any] struct {
	keys     []Keyframe[T]
	segments []segment[T]
	lerp     Lerper[T]
}

// New builds an animation from keyframes in any order. A nil lerp selects
// DefaultLerp for T.
func New[T any](lerp Lerper[T], keys ...Keyframe[T]) (*Animation[T], error) {
	if lerp == nil {
		lerp = DefaultLerp[T]()
	}
	sorted := make([]Keyframe[T], len(keys))
	copy(sorted, keys)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	a := &Animation[T]{keys: sorted, lerp: lerp}
	for i, k := range sorted {
		if k.Time.Negative() {
			return nil, fmt.Errorf("%w: keyframe %d at %s", ErrNegativeTime, i, k.Time)
		}
		if i == 0 {
			continue
		}
		fn, err := EasingByName(k.Easing)
		if err != nil {
			return nil, fmt.Errorf("keyframe %d: %w", i, err)
		}
		prev := sorted[i-1]
		length := k.Time.Sub(prev.Time)
		if length.IsZero() {
			// coincident keys jump
			continue
		}
		a.segments = append(a.segments, segment[T]{
			start:  prev.Time,
			length: length,
			from:   prev.Value,
			to:     k.Value,
			ease:   fn,
		})
	}
	return a, nil
}

// MustNew is New for static tables; it panics on error.
func MustNew[T any](lerp Lerper[T], keys ...Keyframe[T]) *Animation[T] {
	a, err := New(lerp, keys...)
	if err != nil {
		panic(err)
	}
	return a
}

// Len returns the number of keyframes.
func (a *Animation[T]) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Keyframes returns a copy of the sorted keyframes.
func (a *Animation[T]) Keyframes() []Keyframe[T] {
	if a == nil {
		return nil
	}
	out := make([]Keyframe[T], len(a.keys))
	copy(out, a.keys)
	return out
}

// Duration is the time of the last keyframe.
func (a *Animation[T]) Duration() timebase.Time {
	if a.Len() == 0 {
		return timebase.Zero
	}
	return a.keys[len(a.keys)-1].Time
}

// Sample returns the value at t. Times before the first keyframe yield the
// first value and times at or after the last keyframe yield the last value.
// Coincident keyframes are a jump: at their shared time Sample returns the
// value of the later one, at the first key time as anywhere else.
// An empty animation yields the zero value; use Property for a static
// fallback.
func (a *Animation[T]) Sample(t timebase.Time) T {
	var zero T
	n := a.Len()
	if n == 0 {
		return zero
	}
	first, last := a.keys[0], a.keys[n-1]
	if n == 1 || t.Before(first.Time) {
		return first.Value
	}
	if t.Equal(first.Time) {
		i := 1
		for i < n && a.keys[i].Time.Equal(first.Time) {
			i++
		}
		return a.keys[i-1].Value
	}
	if !t.Before(last.Time) {
		return last.Value
	}
	i := sort.Search(len(a.segments), func(i int) bool {
		return a.segments[i].start.After(t)
	}) - 1
	if i < 0 {
		return first.Value
	}
	s := a.segments[i]
	if !t.Before(s.start.Add(s.length)) {
		// only reachable between coincident keys
		return s.to
	}
	p := t.Sub(s.start).Ratio(s.length)
	return a.lerp(s.from, s.to, s.ease(p))
}

// Sample is the free-function form of Animation.Sample.
func Sample[T any](a *Animation[T], t timebase.Time) T {
	return a.Sample(t)
}

// SampleBuffer fills out with count evenly spaced samples over span without
// caching. It returns the number of samples written.
func SampleBuffer[T any](a *Animation[T], span timebase.Range, count int, out []T) int {
	n := min(count, len(out))
	for i := 0; i < n; i++ {
		out[i] = a.Sample(sampleTime(span, i, count))
	}
	return n
}

func sampleTime(span timebase.Range, i, count int) timebase.Time {
	if count <= 0 {
		return span.Start
	}
	return span.Start.Add(span.Length.Mul(int64(i)).Div(int64(count)))
}
