package resource

import (
	"fmt"
	"image"
	"math"

	"github.com/ivlev/compositor/internal/geom"
)

type FilterKind string

const (
	FilterBlur        FilterKind = "blur"
	FilterColorMatrix FilterKind = "colormatrix"
	FilterShadow      FilterKind = "shadow"
)

type FilterParams struct {
	Kind   FilterKind
	Radius float64     // blur, shadow
	Matrix ColorMatrix // colormatrix
	Offset geom.Vec2   // shadow
	Color  geom.Color  // shadow
}

// Filter is an image effect applied to a drawable's rasterized pixels. The
// kind is its shape; radius, matrix, offset and color change in place.
type Filter struct {
	Base
	p      FilterParams
	kernel []float32
}

func NewFilter(p FilterParams, _ *RenderContext) (*Filter, error) {
	switch p.Kind {
	case FilterBlur, FilterColorMatrix, FilterShadow:
	default:
		return nil, fmt.Errorf("unknown filter kind %q", p.Kind)
	}
	f := &Filter{Base: newBase()}
	f.set(p)
	return f, nil
}

func (f *Filter) Update(p FilterParams, _ *RenderContext) (bool, error) {
	if p.Kind != f.p.Kind {
		return false, nil
	}
	p.Radius = max(p.Radius, 0)
	if p == f.p {
		return true, nil
	}
	f.set(p)
	f.touch()
	return true, nil
}

func (f *Filter) set(p FilterParams) {
	p.Radius = max(p.Radius, 0)
	if p.Kind != FilterColorMatrix && p.Radius != f.p.Radius || f.kernel == nil {
		f.kernel = gaussianKernel(f.kernel[:0], p.Radius)
	}
	f.p = p
}

func (f *Filter) Kind() FilterKind     { return f.p.Kind }
func (f *Filter) Params() FilterParams { return f.p }

// Bounds is empty: a filter has no extent of its own.
func (f *Filter) Bounds() geom.Rect { return geom.Rect{} }

func (f *Filter) Release() {
	if f.release() {
		f.kernel = nil
	}
}

// Pad is how far the filter can move content in any direction.
func (f *Filter) Pad() float64 {
	switch f.p.Kind {
	case FilterBlur:
		return math.Ceil(f.p.Radius)
	case FilterShadow:
		return math.Ceil(f.p.Radius + max(math.Abs(f.p.Offset.X), math.Abs(f.p.Offset.Y)))
	}
	return 0
}

// Expand returns the area covered by filtering content that covers r.
func (f *Filter) Expand(r geom.Rect) geom.Rect {
	if r.IsEmpty() {
		return r
	}
	switch f.p.Kind {
	case FilterBlur:
		return r.Inset(-math.Ceil(f.p.Radius))
	case FilterShadow:
		return r.Union(r.Translate(f.p.Offset).Inset(-math.Ceil(f.p.Radius)))
	}
	return r
}

// Apply runs the filter over area of img in place.
func (f *Filter) Apply(img *image.RGBA, area image.Rectangle, rc *RenderContext) error {
	area = area.Intersect(img.Rect)
	if area.Empty() || f.released {
		return nil
	}
	switch f.p.Kind {
	case FilterBlur:
		return blur(img, area, f.kernel, rc)
	case FilterColorMatrix:
		return applyMatrix(img, area, &f.p.Matrix, rc.workers())
	case FilterShadow:
		return dropShadow(img, area, f.kernel, f.p.Offset, f.p.Color, rc)
	}
	return nil
}

// FilterChain is a stack of filters applied innermost first.
type FilterChain []*Filter

// Compose wraps inner with outer. outer runs after every filter in inner.
func Compose(outer *Filter, inner FilterChain) FilterChain {
	out := make(FilterChain, 0, len(inner)+1)
	out = append(out, inner...)
	return append(out, outer)
}

func (c FilterChain) Apply(img *image.RGBA, area image.Rectangle, rc *RenderContext) error {
	for _, f := range c {
		if err := f.Apply(img, area, rc); err != nil {
			return fmt.Errorf("%s filter %d: %w", f.Kind(), f.ID(), err)
		}
	}
	return nil
}

func (c FilterChain) Expand(r geom.Rect) geom.Rect {
	for _, f := range c {
		r = f.Expand(r)
	}
	return r
}

func (c FilterChain) Pad() float64 {
	var pad float64
	for _, f := range c {
		pad += f.Pad()
	}
	return pad
}

// Key folds the identity and version of every filter into one value for
// change detection.
func (c FilterChain) Key() uint64 {
	var h uint64 = 14695981039346656037
	for _, f := range c {
		h = (h ^ uint64(f.ID())) * 1099511628211
		h = (h ^ f.Version()) * 1099511628211
	}
	return h
}
