package ops

import (
	"fmt"
	"slices"

	"github.com/ivlev/compositor/internal/animation"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/source"
	"github.com/ivlev/compositor/internal/timebase"
)

// gain applies an audio-rate gain curve. Animated gains are sampled once
// per output sample through a session so re-rendering a frame reuses them.
type gain struct {
	prop    animation.Property[float64]
	session *animation.Session[float64]
	buf     []float64
}

func newGain(p animation.Property[float64]) *gain {
	g := &gain{prop: p}
	if p.IsAnimated() {
		g.session = animation.NewSession(p.Anim, 0)
	}
	return g
}

func (g *gain) apply(span timebase.Range, samples []float32) {
	if g.session == nil {
		k := float32(g.prop.Static)
		for i := range samples {
			samples[i] *= k
		}
		return
	}
	g.session.Prepare(span, len(samples))
	g.buf = slices.Grow(g.buf[:0], len(samples))[:len(samples)]
	g.session.SampleBuffer(g.buf)
	for i := range samples {
		samples[i] *= float32(g.buf[i])
	}
}

// audioState is shared by the audio producing operations.
type audioState struct {
	buf  *audioSlot
	gain *gain
	src  source.Source
}

func (s *audioState) Release() {
	s.buf.Release()
	if s.src != nil {
		_ = s.src.Close()
	}
}

// block prepares the node's sample buffer for the current audio block.
func (s *audioState) block(c *graph.Context) (*resource.AudioBuffer, bool, error) {
	blk := c.Args.Audio
	if blk.Count <= 0 {
		return nil, false, nil
	}
	buf, err := s.buf.Ensure(resource.AudioParams{Samples: blk.Count}, c.Args.Render)
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

func (s *audioState) publish(c *graph.Context, buf *resource.AudioBuffer) {
	s.gain.apply(c.Args.Audio.Span, buf.Samples)
	buf.MarkWritten()
	c.Args.Scope.AddAudio(scene.Audio{Node: c.Key, Samples: buf.Samples, Gain: 1})
}

type ToneParams struct {
	Freq animation.Property[float64] `yaml:"freq"`
	Gain animation.Property[float64] `yaml:"gain"`
}

func defaultTone() ToneParams {
	return ToneParams{Freq: animation.Static(440.0), Gain: animation.Static(0.5)}
}

// Tone is a sine generator. Frequency is sampled once per block.
type Tone struct {
	p ToneParams
}

func newTone(p ToneParams) (graph.Operation, error) { return &Tone{p: p}, nil }

func (o *Tone) InitializeForContext(c *graph.Context) error {
	c.State = &audioState{buf: resource.NewSlot(resource.NewAudioBuffer), gain: newGain(o.p.Gain)}
	return nil
}

func (o *Tone) Evaluate(c *graph.Context) error {
	st := c.State.(*audioState)
	buf, ok, err := st.block(c)
	if !ok {
		return err
	}
	gen, err := source.NewToneSource(o.p.Freq.At(c.Args.Audio.Span.Start))
	if err != nil {
		return err
	}
	if err := gen.Samples(c.Args.Audio.Span, buf.Samples); err != nil {
		return err
	}
	st.publish(c, buf)
	return nil
}

func (o *Tone) UninitializeForContext(c *graph.Context) { release(c) }

// AudioClipParams play samples from an asset, shifted by Offset.
type AudioClipParams struct {
	Source string                      `yaml:"source"`
	Offset timebase.Time               `yaml:"offset"`
	Gain   animation.Property[float64] `yaml:"gain"`
}

func defaultAudio() AudioClipParams {
	return AudioClipParams{Gain: animation.Static(1.0)}
}

type AudioClip struct {
	p      AudioClipParams
	assets source.Opener
}

func newAudio(p AudioClipParams, env Env) (graph.Operation, error) {
	if p.Source == "" {
		return nil, fmt.Errorf("audio: empty source")
	}
	if env.Assets == nil {
		return nil, fmt.Errorf("audio: no asset provider")
	}
	return &AudioClip{p: p, assets: env.Assets}, nil
}

func (o *AudioClip) InitializeForContext(c *graph.Context) error {
	src, err := o.assets.Open(o.p.Source)
	if err != nil {
		return err
	}
	if _, ok := src.(source.AudioSource); !ok || !src.Info().HasAudio {
		_ = src.Close()
		return fmt.Errorf("%w: %s", source.ErrNoAudio, o.p.Source)
	}
	c.State = &audioState{
		buf:  resource.NewSlot(resource.NewAudioBuffer),
		gain: newGain(o.p.Gain),
		src:  src,
	}
	return nil
}

func (o *AudioClip) Evaluate(c *graph.Context) error {
	st := c.State.(*audioState)
	buf, ok, err := st.block(c)
	if !ok {
		return err
	}
	span := c.Args.Audio.Span
	span.Start = span.Start.Add(o.p.Offset)
	if err := st.src.(source.AudioSource).Samples(span, buf.Samples); err != nil {
		return err
	}
	st.publish(c, buf)
	return nil
}

func (o *AudioClip) UninitializeForContext(c *graph.Context) { release(c) }
