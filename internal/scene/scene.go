// Package scene collects what a layer's operations produce during one
// evaluation: drawables for the compositor and audio blocks for the mixer.
package scene

import (
	"image"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/timebase"
)

// Content is a resource the raster backend can draw.
type Content interface {
	resource.Resource
	Draw(dst *image.RGBA, clip image.Rectangle, xf geom.Affine, opacity float64)
}

// Drawable places content in the frame.
type Drawable struct {
	Node      string
	Content   Content
	Transform geom.Affine
	Opacity   float64
	Filters   resource.FilterChain
}

// Bounds in frame coordinates, including filter spill.
func (d Drawable) Bounds() geom.Rect {
	if d.Content == nil || d.Opacity <= 0 {
		return geom.Rect{}
	}
	r := d.Transform.Or().TransformRect(d.Content.Bounds())
	return d.Filters.Expand(r)
}

// Key identifies everything about a drawable that affects its pixels.
type Key struct {
	ID        resource.ID
	Version   uint64
	Filters   uint64
	Transform geom.Affine
	Opacity   float64
	Bounds    geom.Rect
}

func (d Drawable) Key() Key {
	k := Key{
		Transform: d.Transform.Or(),
		Opacity:   d.Opacity,
		Filters:   d.Filters.Key(),
		Bounds:    d.Bounds(),
	}
	if d.Content != nil {
		k.ID, k.Version = d.Content.ID(), d.Content.Version()
	}
	return k
}

// AudioBlock is the audio span rendered alongside one frame.
type AudioBlock struct {
	Span       timebase.Range
	SampleRate int
	Count      int
}

// Audio is one node's contribution to a block.
type Audio struct {
	Node    string
	Samples []float32
	Gain    float64
}

// Scope is the ordered output of one layer. It is reset at the start of
// every evaluation of the layer.
type Scope struct {
	drawables []Drawable
	audio     []Audio
}

func (s *Scope) Reset() {
	clear(s.drawables)
	s.drawables = s.drawables[:0]
	clear(s.audio)
	s.audio = s.audio[:0]
}

func (s *Scope) Add(d Drawable) {
	if d.Transform.IsZero() {
		d.Transform = geom.Identity()
	}
	s.drawables = append(s.drawables, d)
}

func (s *Scope) AddAudio(a Audio) {
	s.audio = append(s.audio, a)
}

func (s *Scope) Drawables() []Drawable { return s.drawables }
func (s *Scope) Audio() []Audio        { return s.audio }

// Mark captures the scope length so a failed node's partial output can be
// rolled back.
type Mark struct {
	drawables int
	audio     int
}

func (s *Scope) Mark() Mark {
	return Mark{drawables: len(s.drawables), audio: len(s.audio)}
}

// Since returns copies of the entries added after m.
func (s *Scope) Since(m Mark) ([]Drawable, []Audio) {
	d := append([]Drawable(nil), s.drawables[m.drawables:]...)
	a := append([]Audio(nil), s.audio[m.audio:]...)
	return d, a
}

// Rollback drops the entries added after m and appends the replacement.
func (s *Scope) Rollback(m Mark, d []Drawable, a []Audio) {
	s.drawables = append(s.drawables[:m.drawables], d...)
	s.audio = append(s.audio[:m.audio], a...)
}

// Transform applies m and multiplies opacity for drawables added since
// from. m is applied after each drawable's own transform.
func (s *Scope) Transform(from Mark, m geom.Affine, opacity float64) {
	for i := from.drawables; i < len(s.drawables); i++ {
		d := &s.drawables[i]
		d.Transform = m.Mul(d.Transform.Or())
		d.Opacity *= opacity
	}
}

// Filter wraps the filter chain of drawables added since from with chain.
func (s *Scope) Filter(from Mark, chain resource.FilterChain) {
	for i := from.drawables; i < len(s.drawables); i++ {
		d := &s.drawables[i]
		out := make(resource.FilterChain, 0, len(d.Filters)+len(chain))
		out = append(out, d.Filters...)
		d.Filters = append(out, chain...)
	}
}

// Bounds is the union of all drawable bounds.
func (s *Scope) Bounds() geom.Rect {
	var r geom.Rect
	for _, d := range s.drawables {
		r = r.Union(d.Bounds())
	}
	return r
}

func (s *Scope) Keys() []Key {
	keys := make([]Key, len(s.drawables))
	for i, d := range s.drawables {
		keys[i] = d.Key()
	}
	return keys
}

// Snapshot copies the drawables for use after the scope is reset.
func (s *Scope) Snapshot() []Drawable {
	return append([]Drawable(nil), s.drawables...)
}
