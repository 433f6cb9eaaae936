package ops

import (
	"fmt"
	"image"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/skip2/go-qrcode"

	"github.com/ivlev/compositor/internal/animation"
	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
)

type (
	geometrySlot = resource.Slot[resource.GeometryParams, *resource.Geometry]
	bitmapSlot   = resource.Slot[resource.BitmapParams, *resource.Bitmap]
	filterSlot   = resource.Slot[resource.FilterParams, *resource.Filter]
	cameraSlot   = resource.Slot[resource.CameraParams, *resource.Camera]
	audioSlot    = resource.Slot[resource.AudioParams, *resource.AudioBuffer]
)

// release frees whatever the context state holds.
func release(c *graph.Context) {
	if r, ok := c.State.(interface{ Release() }); ok {
		r.Release()
	}
	c.State = nil
}

// SolidParams fill a rectangle. An empty rect covers the frame.
type SolidParams struct {
	Rect    animation.Property[geom.Rect]  `yaml:"rect"`
	Color   animation.Property[geom.Color] `yaml:"color"`
	Opacity animation.Property[float64]    `yaml:"opacity"`
}

func defaultSolid() SolidParams {
	return SolidParams{
		Color:   animation.Static(geom.White),
		Opacity: animation.Static(1.0),
	}
}

type Solid struct {
	p SolidParams
}

func newSolid(p SolidParams) (graph.Operation, error) {
	return &Solid{p: p}, nil
}

func (o *Solid) InitializeForContext(c *graph.Context) error {
	c.State = resource.NewSlot(resource.NewGeometry)
	return nil
}

func (o *Solid) Evaluate(c *graph.Context) error {
	t := c.Args.Local
	r := o.p.Rect.At(t)
	if r.IsEmpty() {
		r = geom.FromImage(image.Rectangle{Max: c.Args.Render.Size})
	}
	g, err := c.State.(*geometrySlot).Ensure(resource.GeometryParams{
		Points: resource.RectPoints(r),
		Fill:   o.p.Color.At(t),
	}, c.Args.Render)
	if err != nil {
		return err
	}
	emit(c, scene.Drawable{Content: g, Opacity: o.p.Opacity.At(t)})
	return nil
}

func (o *Solid) UninitializeForContext(c *graph.Context) { release(c) }

// PolygonParams describe a regular polygon around Center. Rotation is in
// degrees. Changing Sides rebuilds the geometry.
type PolygonParams struct {
	Sides    animation.Property[int]        `yaml:"sides"`
	Center   animation.Property[geom.Vec2]  `yaml:"center"`
	Radius   animation.Property[float64]    `yaml:"radius"`
	Rotation animation.Property[float64]    `yaml:"rotation"`
	Color    animation.Property[geom.Color] `yaml:"color"`
	Opacity  animation.Property[float64]    `yaml:"opacity"`
}

func defaultPolygon() PolygonParams {
	return PolygonParams{
		Sides:   animation.Static(6),
		Radius:  animation.Static(100.0),
		Color:   animation.Static(geom.White),
		Opacity: animation.Static(1.0),
	}
}

type Polygon struct {
	p PolygonParams
}

func newPolygon(p PolygonParams) (graph.Operation, error) {
	if !p.Sides.IsAnimated() && p.Sides.Static < 3 {
		return nil, fmt.Errorf("%w: %d sides", resource.ErrDegenerateGeometry, p.Sides.Static)
	}
	return &Polygon{p: p}, nil
}

func (o *Polygon) InitializeForContext(c *graph.Context) error {
	c.State = resource.NewSlot(resource.NewGeometry)
	return nil
}

func (o *Polygon) Evaluate(c *graph.Context) error {
	t := c.Args.Local
	pts := resource.RegularPolygon(o.p.Sides.At(t), o.p.Radius.At(t), o.p.Rotation.At(t)*math.Pi/180)
	g, err := c.State.(*geometrySlot).Ensure(resource.GeometryParams{
		Points: pts,
		Fill:   o.p.Color.At(t),
	}, c.Args.Render)
	if err != nil {
		return err
	}
	center := o.p.Center.At(t)
	emit(c, scene.Drawable{
		Content:   g,
		Transform: geom.Translate(center.X, center.Y),
		Opacity:   o.p.Opacity.At(t),
	})
	return nil
}

func (o *Polygon) UninitializeForContext(c *graph.Context) { release(c) }

// QRCodeParams encode Text once; only placement animates.
type QRCodeParams struct {
	Text     string                        `yaml:"text"`
	Size     int                           `yaml:"size"`
	Level    string                        `yaml:"level"`
	Position animation.Property[geom.Vec2] `yaml:"position"`
	Opacity  animation.Property[float64]   `yaml:"opacity"`
}

func defaultQRCode() QRCodeParams {
	return QRCodeParams{Size: 256, Level: "medium", Opacity: animation.Static(1.0)}
}

var qrLevels = map[string]qrcode.RecoveryLevel{
	"low":     qrcode.Low,
	"medium":  qrcode.Medium,
	"high":    qrcode.High,
	"highest": qrcode.Highest,
}

type QRCode struct {
	p     QRCodeParams
	img   image.Image
	stamp uint64
}

func newQRCode(p QRCodeParams) (graph.Operation, error) {
	if p.Text == "" {
		return nil, fmt.Errorf("qrcode: empty text")
	}
	level, ok := qrLevels[p.Level]
	if !ok {
		return nil, fmt.Errorf("qrcode: unknown level %q", p.Level)
	}
	q, err := qrcode.New(p.Text, level)
	if err != nil {
		return nil, fmt.Errorf("qrcode: %w", err)
	}
	return &QRCode{
		p:     p,
		img:   q.Image(p.Size),
		stamp: xxhash.Sum64String(fmt.Sprintf("%s\x00%d\x00%s", p.Text, p.Size, p.Level)),
	}, nil
}

func (o *QRCode) InitializeForContext(c *graph.Context) error {
	c.State = resource.NewSlot(resource.NewBitmap)
	return nil
}

func (o *QRCode) Evaluate(c *graph.Context) error {
	t := c.Args.Local
	b, err := c.State.(*bitmapSlot).Ensure(resource.BitmapParams{Image: o.img, Stamp: o.stamp}, c.Args.Render)
	if err != nil {
		return err
	}
	pos := o.p.Position.At(t)
	emit(c, scene.Drawable{
		Content:   b,
		Transform: geom.Translate(pos.X, pos.Y),
		Opacity:   o.p.Opacity.At(t),
	})
	return nil
}

func (o *QRCode) UninitializeForContext(c *graph.Context) { release(c) }
