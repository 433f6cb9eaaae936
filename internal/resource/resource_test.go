package resource

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/system"
)

func testRC() *RenderContext {
	return &RenderContext{Size: image.Pt(32, 32), Pool: system.NewImagePool(), Workers: 2}
}

func square(size float64) []geom.Vec2 {
	return RectPoints(geom.XYWH(0, 0, size, size))
}

func TestSlotUpdateVersusRebuild(t *testing.T) {
	rc := testRC()
	slot := NewSlot(NewGeometry)

	g1, err := slot.Ensure(GeometryParams{Points: square(10), Fill: geom.White}, rc)
	require.NoError(t, err)
	id, v := g1.ID(), g1.Version()

	// only animatable values differ: in place
	g2, err := slot.Ensure(GeometryParams{Points: square(12), Fill: geom.Black}, rc)
	require.NoError(t, err)
	assert.Equal(t, id, g2.ID())
	assert.Greater(t, g2.Version(), v)
	assert.Equal(t, geom.XYWH(0, 0, 12, 12), g2.Bounds())

	// point count differs: new identity, old one released
	g3, err := slot.Ensure(GeometryParams{Points: RegularPolygon(5, 10, 0), Fill: geom.Black}, rc)
	require.NoError(t, err)
	assert.NotEqual(t, id, g3.ID())
	assert.False(t, g2.Valid())

	builds, updates := slot.Stats()
	assert.Equal(t, 2, builds)
	assert.Equal(t, 1, updates)
}

func TestSlotIdenticalParamsKeepIdentityAndVersion(t *testing.T) {
	rc := testRC()
	slot := NewSlot(NewFilter)
	p := FilterParams{Kind: FilterBlur, Radius: 3}

	f1, err := slot.Ensure(p, rc)
	require.NoError(t, err)
	f2, err := slot.Ensure(p, rc)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
	assert.Equal(t, f1.Version(), f2.Version())

	f3, err := slot.Ensure(FilterParams{Kind: FilterShadow, Radius: 3}, rc)
	require.NoError(t, err)
	assert.NotEqual(t, f1.ID(), f3.ID())
}

type flaky struct {
	Base
}

func (f *flaky) Update(p int, _ *RenderContext) (bool, error) {
	if p < 0 {
		return false, errors.New("allocation failed")
	}
	return true, nil
}

func (f *flaky) Bounds() geom.Rect { return geom.Rect{} }
func (f *flaky) Release()          { f.release() }

func TestSlotUpdateErrorInvalidates(t *testing.T) {
	slot := NewSlot(func(int, *RenderContext) (*flaky, error) {
		return &flaky{Base: newBase()}, nil
	})
	r1, err := slot.Ensure(1, nil)
	require.NoError(t, err)

	stale, err := slot.Ensure(-1, nil)
	require.Error(t, err)
	assert.Same(t, r1, stale)
	assert.False(t, r1.Valid())

	r2, err := slot.Ensure(2, nil)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID(), r2.ID())
}

func TestSlotBuildErrorKeepsOld(t *testing.T) {
	slot := NewSlot(NewGeometry)
	g, err := slot.Ensure(GeometryParams{Points: square(4)}, nil)
	require.NoError(t, err)

	_, err = slot.Ensure(GeometryParams{Points: square(4)[:2]}, nil)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	held, ok := slot.Get()
	require.True(t, ok)
	assert.Same(t, g, held)
}

func TestGeometryDraw(t *testing.T) {
	rc := testRC()
	g, err := NewGeometry(GeometryParams{Points: square(8), Fill: geom.RGBA8(255, 0, 0, 255)}, rc)
	require.NoError(t, err)

	dst := image.NewRGBA(image.Rect(0, 0, 32, 32))
	g.Draw(dst, dst.Rect, geom.Translate(4, 4), 1)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, dst.RGBAAt(8, 8))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(1, 1))

	// clip limits drawing
	dst2 := image.NewRGBA(image.Rect(0, 0, 32, 32))
	g.Draw(dst2, image.Rect(0, 0, 6, 32), geom.Translate(4, 4), 1)
	assert.Equal(t, color.RGBA{}, dst2.RGBAAt(8, 8))
	assert.Equal(t, uint8(255), dst2.RGBAAt(5, 8).A)
}

func TestGeometryDrawOffsetClipMatchesFullFrame(t *testing.T) {
	rc := testRC()
	g, err := NewGeometry(GeometryParams{
		Points: RegularPolygon(5, 6, 0.3),
		Fill:   geom.RGBA8(0, 0, 255, 255),
	}, rc)
	require.NoError(t, err)
	xf := geom.Translate(18.5, 17.25)

	full := image.NewRGBA(image.Rect(0, 0, 32, 32))
	g.Draw(full, full.Rect, xf, 1)

	clip := image.Rect(13, 12, 25, 24)
	part := image.NewRGBA(image.Rect(0, 0, 32, 32))
	g.Draw(part, clip, xf, 1)

	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			got := part.RGBAAt(x, y)
			if !image.Pt(x, y).In(clip) {
				require.Equal(t, color.RGBA{}, got, "pixel (%d,%d)", x, y)
				continue
			}
			want := full.RGBAAt(x, y)
			require.InDelta(t, want.B, got.B, 1, "pixel (%d,%d)", x, y)
			require.InDelta(t, want.A, got.A, 1, "pixel (%d,%d)", x, y)
		}
	}
	assert.Equal(t, uint8(255), part.RGBAAt(18, 17).B)
}

func TestBitmapDrawAndUpdate(t *testing.T) {
	rc := testRC()
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(1, 1, color.RGBA{G: 255, A: 255})

	b, err := NewBitmap(BitmapParams{Image: src, Stamp: 1}, rc)
	require.NoError(t, err)
	dst := image.NewRGBA(image.Rect(0, 0, 16, 16))
	b.Draw(dst, dst.Rect, geom.Translate(10, 5), 1)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, dst.RGBAAt(11, 6))

	v := b.Version()
	ok, err := b.Update(BitmapParams{Image: src, Stamp: 1}, rc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, b.Version())

	ok, err = b.Update(BitmapParams{Image: image.NewRGBA(image.Rect(0, 0, 5, 4)), Stamp: 2}, rc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlurSpreadsAndPreservesEnergy(t *testing.T) {
	rc := testRC()
	f, err := NewFilter(FilterParams{Kind: FilterBlur, Radius: 2}, rc)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.SetRGBA(8, 8, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	require.NoError(t, f.Apply(img, img.Rect, rc))

	assert.Less(t, img.RGBAAt(8, 8).A, uint8(255))
	assert.Greater(t, img.RGBAAt(9, 8).A, uint8(0))
	var sum int
	for i := 3; i < len(img.Pix); i += 4 {
		sum += int(img.Pix[i])
	}
	assert.InDelta(t, 255, sum, 12)
	assert.Equal(t, geom.XYWH(-2, -2, 14, 14), f.Expand(geom.XYWH(0, 0, 10, 10)))
}

func TestFilterNegativeRadiusIsStable(t *testing.T) {
	f, err := NewFilter(FilterParams{Kind: FilterBlur, Radius: -3}, nil)
	require.NoError(t, err)
	assert.Zero(t, f.Params().Radius)

	v := f.Version()
	ok, err := f.Update(FilterParams{Kind: FilterBlur, Radius: -3}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, f.Version())

	ok, err = f.Update(FilterParams{Kind: FilterBlur, Radius: 1}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, v, f.Version())
}

func TestColorMatrix(t *testing.T) {
	assert.Equal(t, IdentityMatrix(), Adjust(0, 1, 1, 1))

	rc := testRC()
	f, err := NewFilter(FilterParams{Kind: FilterColorMatrix, Matrix: Adjust(0, 1, 0, 0.5)}, rc)
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	require.NoError(t, f.Apply(img, img.Rect, rc))

	px := img.RGBAAt(0, 0)
	assert.Equal(t, px.R, px.G)
	assert.Equal(t, px.G, px.B)
	assert.InDelta(t, 128, px.A, 1)
	assert.Equal(t, color.RGBA{}, img.RGBAAt(1, 0))
}

func TestShadowKeepsContentOnTop(t *testing.T) {
	rc := testRC()
	f, err := NewFilter(FilterParams{
		Kind:   FilterShadow,
		Radius: 1,
		Offset: geom.Vec2{X: 3, Y: 3},
		Color:  geom.Black,
	}, rc)
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	require.NoError(t, f.Apply(img, img.Rect, rc))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(3, 3))
	assert.Greater(t, img.RGBAAt(7, 7).A, uint8(0))
	assert.Equal(t, uint8(0), img.RGBAAt(7, 7).R)
}

func TestComposeOrder(t *testing.T) {
	inner, _ := NewFilter(FilterParams{Kind: FilterBlur, Radius: 1}, nil)
	outer, _ := NewFilter(FilterParams{Kind: FilterColorMatrix, Matrix: IdentityMatrix()}, nil)
	chain := Compose(outer, FilterChain{inner})
	require.Len(t, chain, 2)
	assert.Same(t, inner, chain[0])
	assert.Same(t, outer, chain[1])

	k := chain.Key()
	_, _ = inner.Update(FilterParams{Kind: FilterBlur, Radius: 2}, nil)
	assert.NotEqual(t, k, chain.Key())
}

func TestCameraCentersContent(t *testing.T) {
	c, err := NewCamera(CameraParams{Center: geom.Vec2{X: 50, Y: 50}, Zoom: 2, Viewport: geom.Vec2{X: 100, Y: 60}}, nil)
	require.NoError(t, err)
	p := c.Matrix().Apply(geom.Vec2{X: 50, Y: 50})
	assert.InDelta(t, 50, p.X, 1e-9)
	assert.InDelta(t, 30, p.Y, 1e-9)
	q := c.Matrix().Apply(geom.Vec2{X: 60, Y: 50})
	assert.InDelta(t, 70, q.X, 1e-9)

	id := c.ID()
	ok, _ := c.Update(CameraParams{Zoom: 3, Viewport: geom.Vec2{X: 100, Y: 60}}, nil)
	assert.True(t, ok)
	assert.Equal(t, id, c.ID())
}
