package animation

import (
	"fmt"

	"github.com/ivlev/compositor/internal/timebase"
	"gopkg.in/yaml.v3"
)

// Property is a value that is either static or driven by an animation.
//
// In a document it is written as a plain value, or as a mapping with a
// "keyframes" list and an optional "value" used when the list is empty:
//
//	opacity: 0.5
//	opacity:
//	  keyframes:
//	    - {time: 0, value: 0}
//	    - {time: 1s, value: 1, easing: out-cubic}
type Property[T any] struct {
	Static T
	Anim   *Animation[T]
}

// Static returns a property that never changes.
func Static[T any](v T) Property[T] {
	return Property[T]{Static: v}
}

// Animated wraps a. The static fallback is the first keyframe's value.
func Animated[T any](a *Animation[T]) Property[T] {
	p := Property[T]{Anim: a}
	if a.Len() > 0 {
		p.Static = a.keys[0].Value
	}
	return p
}

// IsAnimated reports whether the property has at least one keyframe.
func (p Property[T]) IsAnimated() bool {
	return p.Anim.Len() > 0
}

// At samples the property at t.
func (p Property[T]) At(t timebase.Time) T {
	if !p.IsAnimated() {
		return p.Static
	}
	return p.Anim.Sample(t)
}

type propertyDoc[T any] struct {
	Value     *T            `yaml:"value,omitempty"`
	Keyframes []Keyframe[T] `yaml:"keyframes"`
}

func (p *Property[T]) UnmarshalYAML(value *yaml.Node) error {
	if !hasKey(value, "keyframes") {
		var v T
		if err := value.Decode(&v); err != nil {
			return err
		}
		*p = Static(v)
		return nil
	}

	var doc propertyDoc[T]
	if err := value.Decode(&doc); err != nil {
		return err
	}
	anim, err := New[T](nil, doc.Keyframes...)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*p = Animated(anim)
	if doc.Value != nil {
		p.Static = *doc.Value
	}
	return nil
}

func (p Property[T]) MarshalYAML() (any, error) {
	if !p.IsAnimated() {
		return p.Static, nil
	}
	return propertyDoc[T]{Keyframes: p.Anim.Keyframes()}, nil
}

func hasKey(n *yaml.Node, key string) bool {
	if n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}
