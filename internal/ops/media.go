package ops

import (
	"fmt"
	"image"

	"github.com/ivlev/compositor/internal/animation"
	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/source"
	"github.com/ivlev/compositor/internal/timebase"
)

// MediaParams show frames of a video source. Offset shifts the source
// against the layer start. Fit is contain, cover, stretch or none.
type MediaParams struct {
	Source  string                      `yaml:"source"`
	Offset  timebase.Time               `yaml:"offset"`
	Fit     string                      `yaml:"fit"`
	Opacity animation.Property[float64] `yaml:"opacity"`
}

func defaultMedia() MediaParams {
	return MediaParams{Fit: "contain", Opacity: animation.Static(1.0)}
}

type Media struct {
	p      MediaParams
	assets source.Opener
}

func newMedia(p MediaParams, env Env) (graph.Operation, error) {
	if p.Source == "" {
		return nil, fmt.Errorf("media: empty source")
	}
	switch p.Fit {
	case "contain", "cover", "stretch", "none":
	default:
		return nil, fmt.Errorf("media: unknown fit %q", p.Fit)
	}
	if env.Assets == nil {
		return nil, fmt.Errorf("media: no asset provider")
	}
	return &Media{p: p, assets: env.Assets}, nil
}

// mediaState holds the decoder for as long as the layer is active.
type mediaState struct {
	src    source.Source
	bitmap *bitmapSlot
}

func (s *mediaState) Release() {
	s.bitmap.Release()
	_ = s.src.Close()
}

func (o *Media) InitializeForContext(c *graph.Context) error {
	src, err := o.assets.Open(o.p.Source)
	if err != nil {
		return err
	}
	if !src.Info().HasVideo {
		_ = src.Close()
		return fmt.Errorf("%w: %s has no video", source.ErrUnsupported, o.p.Source)
	}
	c.State = &mediaState{src: src, bitmap: resource.NewSlot(resource.NewBitmap)}
	c.Logger().Debug("Decoder opened", "source", o.p.Source, "frames", src.Info().Frames)
	return nil
}

func (o *Media) Evaluate(c *graph.Context) error {
	st := c.State.(*mediaState)
	idx := source.FrameAt(st.src.Info(), c.Args.Local.Add(o.p.Offset))
	img, err := st.src.Frame(idx)
	if err != nil {
		return err
	}
	b, err := st.bitmap.Ensure(resource.BitmapParams{Image: img, Stamp: uint64(idx) + 1}, c.Args.Render)
	if err != nil {
		return err
	}
	emit(c, scene.Drawable{
		Content:   b,
		Transform: fit(o.p.Fit, b.Bounds(), c.Args.Render.Size),
		Opacity:   o.p.Opacity.At(c.Args.Local),
	})
	return nil
}

func (o *Media) UninitializeForContext(c *graph.Context) { release(c) }

// fit places content into a frame of the given size, centered.
func fit(mode string, content geom.Rect, frame image.Point) geom.Affine {
	if content.IsEmpty() {
		return geom.Identity()
	}
	fw, fh := float64(frame.X), float64(frame.Y)
	sx, sy := fw/content.W, fh/content.H
	switch mode {
	case "contain":
		sx = min(sx, sy)
		sy = sx
	case "cover":
		sx = max(sx, sy)
		sy = sx
	case "none":
		sx, sy = 1, 1
	}
	w, h := content.W*sx, content.H*sy
	return geom.Translate((fw-w)/2, (fh-h)/2).
		Mul(geom.Scale(sx, sy)).
		Mul(geom.Translate(-content.X, -content.Y))
}
