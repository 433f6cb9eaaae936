package ops

import (
	"fmt"
	"image"
	"math/rand/v2"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ivlev/compositor/internal/analyzer"
	"github.com/ivlev/compositor/internal/animation"
	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/timebase"
)

// TransformParams move the upstream drawable: Anchor (in content
// coordinates) lands on Position after scaling and rotating about it.
type TransformParams struct {
	Position animation.Property[geom.Vec2] `yaml:"position"`
	Anchor   animation.Property[geom.Vec2] `yaml:"anchor"`
	Scale    animation.Property[float64]   `yaml:"scale"`
	Rotation animation.Property[float64]   `yaml:"rotation"`
	Opacity  animation.Property[float64]   `yaml:"opacity"`
}

func defaultTransform() TransformParams {
	return TransformParams{
		Scale:   animation.Static(1.0),
		Opacity: animation.Static(1.0),
	}
}

type Transform struct {
	wraps
	p TransformParams
}

func newTransform(p TransformParams) (graph.Operation, error) { return &Transform{p: p}, nil }

func (o *Transform) InitializeForContext(c *graph.Context) error {
	c.State = resource.NewSlot(resource.NewCamera)
	return nil
}

func (o *Transform) Evaluate(c *graph.Context) error {
	t := c.Args.Local
	return applyCamera(c, resource.CameraParams{
		Center:   o.p.Anchor.At(t),
		Zoom:     o.p.Scale.At(t),
		Rotation: o.p.Rotation.At(t),
		Viewport: o.p.Position.At(t).Scale(2),
	}, o.p.Opacity.At(t))
}

func (o *Transform) UninitializeForContext(c *graph.Context) { release(c) }

func applyCamera(c *graph.Context, p resource.CameraParams, opacity float64) error {
	in, err := input(c)
	if err != nil {
		return err
	}
	cam, err := c.State.(*cameraSlot).Ensure(p, c.Args.Render)
	if err != nil {
		return err
	}
	in.Transform = cam.Matrix().Mul(in.Transform.Or())
	in.Opacity *= opacity
	emit(c, in)
	return nil
}

// Режимы наезда камеры: точка кадра, которая остается на месте.
var kenBurnsAnchors = map[string]geom.Vec2{
	"center":       {X: 0.5, Y: 0.5},
	"top-left":     {X: 0, Y: 0},
	"top-right":    {X: 1, Y: 0},
	"bottom-left":  {X: 0, Y: 1},
	"bottom-right": {X: 1, Y: 1},
}

var kenBurnsModes = []string{"center", "top-left", "top-right", "bottom-left", "bottom-right"}

// maxPeak ограничивает зум.
const maxPeak = 1.5

// KenBurnsParams: наезд от 1:1 до Peak за Ramp, удержание, и возврат к
// 1:1 за Outro до конца слоя. Режим "focus" наезжает на самый крупный
// блок контента входного изображения.
type KenBurnsParams struct {
	Mode   string        `yaml:"mode"`
	Peak   float64       `yaml:"peak"`
	Ramp   timebase.Time `yaml:"ramp"`
	Outro  timebase.Time `yaml:"outro"`
	Easing string        `yaml:"easing"`
}

func defaultKenBurns() KenBurnsParams {
	return KenBurnsParams{
		Mode:   "center",
		Peak:   1.2,
		Ramp:   timebase.Seconds(2),
		Outro:  timebase.Seconds(1),
		Easing: "in-out-sine",
	}
}

type KenBurns struct {
	wraps
	p        KenBurnsParams
	detector analyzer.Detector
}

func newKenBurns(p KenBurnsParams) (graph.Operation, error) {
	p.Mode = strings.ToLower(p.Mode)
	if _, ok := kenBurnsAnchors[p.Mode]; !ok && p.Mode != "random" && p.Mode != "out-random" && p.Mode != "focus" {
		return nil, fmt.Errorf("kenburns: unknown mode %q", p.Mode)
	}
	if _, err := animation.EasingByName(p.Easing); err != nil {
		return nil, fmt.Errorf("kenburns: %w", err)
	}
	if p.Peak <= 0 {
		p.Peak = 1
	}
	p.Peak = min(p.Peak, maxPeak)
	return &KenBurns{p: p, detector: analyzer.NewContrastDetector()}, nil
}

type kenBurnsState struct {
	cam    *cameraSlot
	zoom   *animation.Animation[float64]
	length timebase.Time
	anchor geom.Vec2
	focus  bool // anchor not resolved yet
}

func (s *kenBurnsState) Release() { s.cam.Release() }

func (o *KenBurns) InitializeForContext(c *graph.Context) error {
	mode := o.p.Mode
	if mode == "random" || mode == "out-random" {
		// Случайный режим стабилен для слоя и узла
		seed := xxhash.Sum64String(c.Args.Layer + "/" + c.Key)
		r := rand.New(rand.NewPCG(seed, seed>>1))
		mode = kenBurnsModes[r.IntN(len(kenBurnsModes))]
	}
	st := &kenBurnsState{cam: resource.NewSlot(resource.NewCamera), anchor: kenBurnsAnchors[mode]}
	if mode == "focus" {
		st.anchor, st.focus = kenBurnsAnchors["center"], true
	}
	c.State = st
	return nil
}

// focusAnchor finds the content block of a bitmap input and maps its
// center to frame-relative coordinates.
func (o *KenBurns) focusAnchor(c *graph.Context, st *kenBurnsState, in scene.Drawable) {
	bm, ok := in.Content.(interface{ Image() *image.RGBA })
	if !ok || bm.Image() == nil {
		return
	}
	st.focus = false
	img := bm.Image()
	blocks, err := o.detector.Detect(img)
	if err != nil {
		c.Logger().Warn("Focus detection failed", "error", err)
		return
	}
	f, ok := analyzer.Focus(blocks, img.Bounds())
	if !ok {
		return
	}
	size := c.Args.Render.Size
	local := geom.Vec2{X: f.X * float64(img.Bounds().Dx()), Y: f.Y * float64(img.Bounds().Dy())}
	p := in.Transform.Or().Apply(local)
	st.anchor = geom.Vec2{
		X: min(max(p.X/float64(size.X), 0), 1),
		Y: min(max(p.Y/float64(size.Y), 0), 1),
	}
}

// curve строит кривую зума под длительность слоя.
func (o *KenBurns) curve(length timebase.Time) (*animation.Animation[float64], error) {
	peakAt := o.p.Ramp
	// Если слой короткий, пик ставим в середину активной части
	if active := length.Sub(o.p.Outro); peakAt.After(active.Div(2)) && active.After(timebase.Zero) {
		peakAt = active.Div(2)
	}
	peakAt = timebase.Min(peakAt, length)
	outroAt := timebase.Max(length.Sub(o.p.Outro), peakAt)
	return animation.New(nil,
		animation.Keyframe[float64]{Time: timebase.Zero, Value: 1},
		animation.Keyframe[float64]{Time: peakAt, Value: o.p.Peak, Easing: o.p.Easing},
		animation.Keyframe[float64]{Time: outroAt, Value: o.p.Peak},
		animation.Keyframe[float64]{Time: length, Value: 1, Easing: o.p.Easing},
	)
}

func (o *KenBurns) Evaluate(c *graph.Context) error {
	st := c.State.(*kenBurnsState)
	if length := c.Args.Span.Length; st.zoom == nil || !st.length.Equal(length) {
		zoom, err := o.curve(length)
		if err != nil {
			return err
		}
		st.zoom, st.length = zoom, length
	}
	in, err := input(c)
	if err != nil {
		return err
	}
	if st.focus {
		o.focusAnchor(c, st, in)
	}
	size := c.Args.Render.Size
	anchor := geom.Vec2{X: st.anchor.X * float64(size.X), Y: st.anchor.Y * float64(size.Y)}
	cam, err := st.cam.Ensure(resource.CameraParams{
		Center:   anchor,
		Zoom:     st.zoom.Sample(c.Args.Local),
		Viewport: anchor.Scale(2),
	}, c.Args.Render)
	if err != nil {
		return err
	}
	in.Transform = cam.Matrix().Mul(in.Transform.Or())
	emit(c, in)
	return nil
}

func (o *KenBurns) UninitializeForContext(c *graph.Context) { release(c) }
