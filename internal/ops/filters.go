package ops

import (
	"github.com/ivlev/compositor/internal/animation"
	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/resource"
)

// applyFilter ensures the node's filter resource for p and wraps the
// upstream drawable with it.
func applyFilter(c *graph.Context, p resource.FilterParams) error {
	in, err := input(c)
	if err != nil {
		return err
	}
	f, err := c.State.(*filterSlot).Ensure(p, c.Args.Render)
	if err != nil {
		return err
	}
	in.Filters = resource.Compose(f, in.Filters)
	emit(c, in)
	return nil
}

func initFilter(c *graph.Context) error {
	c.State = resource.NewSlot(resource.NewFilter)
	return nil
}

type BlurParams struct {
	Radius animation.Property[float64] `yaml:"radius"`
}

func defaultBlur() BlurParams {
	return BlurParams{Radius: animation.Static(4.0)}
}

type Blur struct {
	wraps
	p BlurParams
}

func newBlur(p BlurParams) (graph.Operation, error) { return &Blur{p: p}, nil }

func (o *Blur) InitializeForContext(c *graph.Context) error { return initFilter(c) }

func (o *Blur) Evaluate(c *graph.Context) error {
	return applyFilter(c, resource.FilterParams{
		Kind:   resource.FilterBlur,
		Radius: max(o.p.Radius.At(c.Args.Local), 0),
	})
}

func (o *Blur) UninitializeForContext(c *graph.Context) { release(c) }

// ColorMatrixParams adjust color. Contrast, saturation and opacity of 1
// leave the image unchanged.
type ColorMatrixParams struct {
	Brightness animation.Property[float64] `yaml:"brightness"`
	Contrast   animation.Property[float64] `yaml:"contrast"`
	Saturation animation.Property[float64] `yaml:"saturation"`
	Opacity    animation.Property[float64] `yaml:"opacity"`
}

func defaultColorMatrix() ColorMatrixParams {
	return ColorMatrixParams{
		Contrast:   animation.Static(1.0),
		Saturation: animation.Static(1.0),
		Opacity:    animation.Static(1.0),
	}
}

type ColorMatrix struct {
	wraps
	p ColorMatrixParams
}

func newColorMatrix(p ColorMatrixParams) (graph.Operation, error) { return &ColorMatrix{p: p}, nil }

func (o *ColorMatrix) InitializeForContext(c *graph.Context) error { return initFilter(c) }

func (o *ColorMatrix) Evaluate(c *graph.Context) error {
	t := c.Args.Local
	return applyFilter(c, resource.FilterParams{
		Kind:   resource.FilterColorMatrix,
		Matrix: resource.Adjust(o.p.Brightness.At(t), o.p.Contrast.At(t), o.p.Saturation.At(t), o.p.Opacity.At(t)),
	})
}

func (o *ColorMatrix) UninitializeForContext(c *graph.Context) { release(c) }

type ShadowParams struct {
	Radius animation.Property[float64]    `yaml:"radius"`
	Offset animation.Property[geom.Vec2]  `yaml:"offset"`
	Color  animation.Property[geom.Color] `yaml:"color"`
}

func defaultShadow() ShadowParams {
	return ShadowParams{
		Radius: animation.Static(6.0),
		Offset: animation.Static(geom.Vec2{X: 4, Y: 4}),
		Color:  animation.Static(geom.Black.WithAlpha(0.6)),
	}
}

type Shadow struct {
	wraps
	p ShadowParams
}

func newShadow(p ShadowParams) (graph.Operation, error) { return &Shadow{p: p}, nil }

func (o *Shadow) InitializeForContext(c *graph.Context) error { return initFilter(c) }

func (o *Shadow) Evaluate(c *graph.Context) error {
	t := c.Args.Local
	return applyFilter(c, resource.FilterParams{
		Kind:   resource.FilterShadow,
		Radius: max(o.p.Radius.At(t), 0),
		Offset: o.p.Offset.At(t),
		Color:  o.p.Color.At(t),
	})
}

func (o *Shadow) UninitializeForContext(c *graph.Context) { release(c) }
