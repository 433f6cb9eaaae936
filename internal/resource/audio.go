package resource

import "github.com/ivlev/compositor/internal/geom"

type AudioParams struct {
	Samples int
}

// AudioBuffer holds one block of mono samples. The block length is its
// shape; the owning node rewrites Samples every frame and calls MarkWritten.
type AudioBuffer struct {
	Base
	Samples []float32
}

func NewAudioBuffer(p AudioParams, _ *RenderContext) (*AudioBuffer, error) {
	return &AudioBuffer{Base: newBase(), Samples: make([]float32, max(p.Samples, 0))}, nil
}

func (a *AudioBuffer) Update(p AudioParams, _ *RenderContext) (bool, error) {
	return p.Samples == len(a.Samples), nil
}

// MarkWritten bumps the version after the samples were rewritten.
func (a *AudioBuffer) MarkWritten() { a.touch() }

func (a *AudioBuffer) Bounds() geom.Rect { return geom.Rect{} }

func (a *AudioBuffer) Release() {
	if a.release() {
		a.Samples = nil
	}
}
