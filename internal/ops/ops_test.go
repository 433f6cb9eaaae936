package ops

import (
	"image"
	"image/color"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/source"
	"github.com/ivlev/compositor/internal/timebase"
)

type fakeSource struct {
	info   source.Info
	frames []image.Image
	closed int
}

func (f *fakeSource) Info() source.Info { return f.info }

func (f *fakeSource) Frame(i int) (image.Image, error) {
	if i >= len(f.frames) {
		return nil, source.ErrFrameOutOfRange
	}
	return f.frames[i], nil
}

func (f *fakeSource) Close() error {
	f.closed++
	return nil
}

type fakeOpener map[string]source.Source

func (o fakeOpener) Open(ref string) (source.Source, error) {
	s, ok := o[ref]
	if !ok {
		return nil, os.ErrNotExist
	}
	return s, nil
}

func uniform(c color.Color, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		r, g, b, a := c.RGBA()
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8)
	}
	return img
}

func registry(t *testing.T, env Env) *graph.Registry {
	t.Helper()
	reg := graph.NewRegistry()
	require.NoError(t, Register(reg, env))
	return reg
}

func newOp(t *testing.T, reg *graph.Registry, typ, doc string) (graph.Operation, error) {
	t.Helper()
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(doc), &n))
	decode := func(v any) error {
		if len(n.Content) == 0 {
			return nil
		}
		return n.Content[0].Decode(v)
	}
	return reg.New(typ, decode)
}

func mustOp(t *testing.T, reg *graph.Registry, typ, doc string) graph.Operation {
	t.Helper()
	op, err := newOp(t, reg, typ, doc)
	require.NoError(t, err)
	return op
}

func evalArgs(local timebase.Time) *graph.EvalArgs {
	return &graph.EvalArgs{
		Local:  local,
		Span:   timebase.Range{Length: timebase.Seconds(10)},
		Layer:  "L",
		Render: &resource.RenderContext{Size: image.Pt(100, 50)},
		Scope:  &scene.Scope{},
		Audio: scene.AudioBlock{
			Span:       timebase.Range{Start: local, Length: timebase.Millis(100)},
			SampleRate: 100,
			Count:      10,
		},
	}
}

func eval(t *testing.T, g *graph.Graph, local timebase.Time) *scene.Scope {
	t.Helper()
	args := evalArgs(local)
	require.Empty(t, g.Evaluate(args))
	return args.Scope
}

func TestRegisterCatalog(t *testing.T) {
	reg := registry(t, Env{Assets: fakeOpener{}})
	assert.Equal(t, []string{
		"audio", "blur", "colormatrix", "kenburns", "media", "polygon",
		"qrcode", "shadow", "solid", "tone", "transform",
	}, reg.Types())
	assert.ErrorIs(t, Register(reg, Env{}), graph.ErrDuplicateType)
}

func TestSolidAnimatedColorUpdatesInPlace(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().
		AddNode("bg", "solid", mustOp(t, reg, "solid", `
rect: {x: 0, y: 0, w: 10, h: 10}
color:
  keyframes:
    - {time: 0, value: "#ff0000"}
    - {time: 1, value: "#0000ff"}
`)).
		Build()
	require.NoError(t, err)

	first := eval(t, g, timebase.Zero).Drawables()
	require.Len(t, first, 1)
	id, version := first[0].Content.ID(), first[0].Content.Version()

	second := eval(t, g, timebase.Seconds(1)).Drawables()
	require.Len(t, second, 1)
	assert.Equal(t, id, second[0].Content.ID())
	assert.Greater(t, second[0].Content.Version(), version)
	assert.Equal(t, "bg", second[0].Node)

	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	second[0].Content.Draw(dst, dst.Rect, second[0].Transform.Or(), 1)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, dst.RGBAAt(5, 5))
}

func TestSolidDefaultsToFullFrame(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().AddNode("bg", "solid", mustOp(t, reg, "solid", "")).Build()
	require.NoError(t, err)

	d := eval(t, g, timebase.Zero).Drawables()
	require.Len(t, d, 1)
	assert.Equal(t, geom.XYWH(0, 0, 100, 50), d[0].Bounds())
}

func TestPolygonSideCountRebuilds(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().
		AddNode("p", "polygon", mustOp(t, reg, "polygon", `
center: {x: 50, y: 25}
radius: 10
sides:
  keyframes:
    - {time: 0, value: 3}
    - {time: 1, value: 6, easing: hold}
`)).
		Build()
	require.NoError(t, err)

	a := eval(t, g, timebase.Millis(500)).Drawables()[0]
	b := eval(t, g, timebase.Millis(700)).Drawables()[0]
	c := eval(t, g, timebase.Seconds(1)).Drawables()[0]
	assert.Equal(t, a.Content.ID(), b.Content.ID())
	assert.NotEqual(t, a.Content.ID(), c.Content.ID())
	assert.InDelta(t, 15, a.Bounds().Y, 1e-9)
}

func TestFiltersComposeAlongTheGraph(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().
		AddNode("shape", "solid", mustOp(t, reg, "solid", "rect: {x: 10, y: 10, w: 20, h: 20}")).
		AddNode("blur", "blur", mustOp(t, reg, "blur", "radius: 2")).
		AddNode("shadow", "shadow", mustOp(t, reg, "shadow", "{radius: 1, offset: {x: 3, y: 0}}")).
		Connect("shape", Out, "blur", In).
		Connect("blur", Out, "shadow", In).
		Build()
	require.NoError(t, err)

	first := eval(t, g, timebase.Zero).Drawables()
	require.Len(t, first, 1)
	d := first[0]
	assert.Equal(t, "shadow", d.Node)
	require.Len(t, d.Filters, 2)
	assert.Equal(t, resource.FilterBlur, d.Filters[0].Kind())
	assert.Equal(t, resource.FilterShadow, d.Filters[1].Kind())
	assert.True(t, d.Bounds().W > 20)

	again := eval(t, g, timebase.Seconds(1)).Drawables()[0]
	assert.Same(t, d.Filters[0], again.Filters[0])
	assert.Equal(t, d.Filters[0].Version(), again.Filters[0].Version())
	assert.Equal(t, d.Key(), again.Key())
}

func TestFilterWithoutInputFailsBuild(t *testing.T) {
	reg := registry(t, Env{})
	_, err := graph.NewBuilder().AddNode("blur", "blur", mustOp(t, reg, "blur", "")).Build()
	assert.ErrorIs(t, err, graph.ErrMissingInput)
}

func TestTransformPlacesDrawable(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().
		AddNode("shape", "solid", mustOp(t, reg, "solid", "rect: {x: 0, y: 0, w: 10, h: 10}")).
		AddNode("xf", "transform", mustOp(t, reg, "transform", `
position: {x: 50, y: 25}
anchor: {x: 5, y: 5}
scale: 2
opacity: 0.5
`)).
		Connect("shape", Out, "xf", In).
		Build()
	require.NoError(t, err)

	d := eval(t, g, timebase.Zero).Drawables()[0]
	b := d.Bounds()
	assert.InDelta(t, 40, b.X, 1e-9)
	assert.InDelta(t, 15, b.Y, 1e-9)
	assert.InDelta(t, 20, b.W, 1e-9)
	assert.InDelta(t, 0.5, d.Opacity, 1e-9)
}

func TestKenBurnsZoomCurve(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().
		AddNode("shape", "solid", mustOp(t, reg, "solid", "")).
		AddNode("kb", "kenburns", mustOp(t, reg, "kenburns", "{mode: bottom-right, peak: 3, ramp: 2s, outro: 1s, easing: linear}")).
		Connect("shape", Out, "kb", In).
		Build()
	require.NoError(t, err)

	at := func(local timebase.Time) geom.Affine {
		return eval(t, g, local).Drawables()[0].Transform
	}
	assert.InDelta(t, 1, at(timebase.Zero).A, 1e-9)
	assert.InDelta(t, 1.25, at(timebase.Seconds(1)).A, 1e-9)

	peak := at(timebase.Seconds(5))
	assert.InDelta(t, maxPeak, peak.A, 1e-9)
	// The bottom-right corner stays in place.
	corner := peak.Apply(geom.Vec2{X: 100, Y: 50})
	assert.InDelta(t, 100, corner.X, 1e-9)
	assert.InDelta(t, 50, corner.Y, 1e-9)

	assert.InDelta(t, 1, at(timebase.Seconds(10)).A, 1e-9)
}

func TestKenBurnsRandomModeIsStable(t *testing.T) {
	reg := registry(t, Env{})
	build := func() *graph.Graph {
		g, err := graph.NewBuilder().
			AddNode("shape", "solid", mustOp(t, reg, "solid", "")).
			AddNode("kb", "kenburns", mustOp(t, reg, "kenburns", "mode: random")).
			Connect("shape", Out, "kb", In).
			Build()
		require.NoError(t, err)
		return g
	}
	a := eval(t, build(), timebase.Seconds(3)).Drawables()[0].Transform
	b := eval(t, build(), timebase.Seconds(3)).Drawables()[0].Transform
	assert.Equal(t, a, b)
}

func TestKenBurnsFocusModeZoomsOnContent(t *testing.T) {
	frame := uniform(color.Black, 100, 50).(*image.RGBA)
	for y := 25; y < 45; y++ {
		for x := 60; x < 90; x++ {
			frame.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	src := &fakeSource{
		info:   source.Info{Size: image.Pt(100, 50), Frames: 1, Rate: timebase.FPS(1), HasVideo: true},
		frames: []image.Image{frame},
	}
	reg := registry(t, Env{Assets: fakeOpener{"slide": src}})
	g, err := graph.NewBuilder().
		AddNode("m", "media", mustOp(t, reg, "media", "source: slide")).
		AddNode("kb", "kenburns", mustOp(t, reg, "kenburns", "mode: focus")).
		Connect("m", Out, "kb", In).
		Build()
	require.NoError(t, err)

	args := evalArgs(timebase.Seconds(3))
	require.Empty(t, g.Initialize(args))
	require.Empty(t, g.Evaluate(args))

	xf := args.Scope.Drawables()[0].Transform
	assert.Greater(t, xf.A, 1.0)
	fixed := xf.Apply(geom.Vec2{X: 75, Y: 35})
	assert.InDelta(t, 75, fixed.X, 2)
	assert.InDelta(t, 35, fixed.Y, 2)
	require.Empty(t, g.Uninitialize(args))
}

func TestMediaOpensAndClosesDecoder(t *testing.T) {
	src := &fakeSource{
		info: source.Info{Size: image.Pt(10, 10), Frames: 2, Rate: timebase.FPS(1), HasVideo: true},
		frames: []image.Image{
			uniform(color.RGBA{R: 255, A: 255}, 10, 10),
			uniform(color.RGBA{G: 255, A: 255}, 10, 10),
		},
	}
	reg := registry(t, Env{Assets: fakeOpener{"clip": src}})
	g, err := graph.NewBuilder().AddNode("m", "media", mustOp(t, reg, "media", "source: clip")).Build()
	require.NoError(t, err)

	args := evalArgs(timebase.Millis(1500))
	require.Empty(t, g.Initialize(args))
	require.Empty(t, g.Evaluate(args))

	d := args.Scope.Drawables()[0]
	bmp := d.Content.(*resource.Bitmap)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, bmp.Image().RGBAAt(0, 0))
	assert.InDelta(t, 5, d.Transform.A, 1e-9)
	assert.InDelta(t, 25, d.Transform.C, 1e-9)

	require.Empty(t, g.Uninitialize(args))
	assert.Equal(t, 1, src.closed)
	assert.False(t, bmp.Valid())
}

func TestMediaOpenFailureIsReported(t *testing.T) {
	reg := registry(t, Env{Assets: fakeOpener{}})
	g, err := graph.NewBuilder().AddNode("m", "media", mustOp(t, reg, "media", "source: missing")).Build()
	require.NoError(t, err)

	errs := g.Evaluate(evalArgs(timebase.Zero))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], os.ErrNotExist)
}

func TestToneWithAnimatedGain(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().
		AddNode("t", "tone", mustOp(t, reg, "tone", `
freq: 25
gain:
  keyframes:
    - {time: 0, value: 0}
    - {time: 100ms, value: 1}
`)).
		Build()
	require.NoError(t, err)

	audio := eval(t, g, timebase.Zero).Audio()
	require.Len(t, audio, 1)
	s := audio[0].Samples
	require.Len(t, s, 10)
	for i, v := range s {
		want := math.Sin(math.Pi/2*float64(i)) * float64(i) / 10
		assert.InDelta(t, want, v, 1e-6, "sample %d", i)
	}
}

func TestAudioClipRequiresAudio(t *testing.T) {
	video := &fakeSource{info: source.Info{HasVideo: true, Frames: 1, Rate: timebase.FPS(1)}}
	reg := registry(t, Env{Assets: fakeOpener{
		"video": video,
		"pcm":   source.NewPCMSource([]float32{0.5, 0.5, 0.5, 0.5}, 100),
	}})

	g, err := graph.NewBuilder().AddNode("a", "audio", mustOp(t, reg, "audio", "source: video")).Build()
	require.NoError(t, err)
	errs := g.Initialize(evalArgs(timebase.Zero))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], source.ErrNoAudio)
	assert.Equal(t, 1, video.closed)

	g, err = graph.NewBuilder().AddNode("a", "audio", mustOp(t, reg, "audio", "{source: pcm, gain: 0.5}")).Build()
	require.NoError(t, err)
	s := eval(t, g, timebase.Zero).Audio()[0].Samples
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25, 0, 0, 0, 0, 0, 0}, s)
}

func TestQRCodeBitmap(t *testing.T) {
	reg := registry(t, Env{})
	g, err := graph.NewBuilder().
		AddNode("qr", "qrcode", mustOp(t, reg, "qrcode", "{text: hello, size: 64, position: {x: 10, y: 5}}")).
		Build()
	require.NoError(t, err)

	d := eval(t, g, timebase.Zero).Drawables()[0]
	assert.Equal(t, geom.XYWH(10, 5, 64, 64), d.Bounds())
	v := d.Content.Version()
	d = eval(t, g, timebase.Seconds(1)).Drawables()[0]
	assert.Equal(t, v, d.Content.Version())
}

func TestInvalidParams(t *testing.T) {
	reg := registry(t, Env{Assets: fakeOpener{}})
	for _, tc := range []struct{ typ, doc string }{
		{"kenburns", "mode: sideways"},
		{"kenburns", "easing: wobble"},
		{"qrcode", "text: ''"},
		{"qrcode", "{text: x, level: extreme}"},
		{"polygon", "sides: 2"},
		{"media", "source: ''"},
		{"media", "{source: x, fit: tile}"},
		{"audio", "gain: {keyframes: [{time: 0, value: 1, easing: wobble}]}"},
	} {
		t.Run(tc.typ+" "+tc.doc, func(t *testing.T) {
			_, err := newOp(t, reg, tc.typ, tc.doc)
			assert.Error(t, err)
		})
	}
	_, err := newOp(t, reg, "nope", "")
	assert.ErrorIs(t, err, graph.ErrUnknownType)
}
