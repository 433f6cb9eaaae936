package resource

import (
	"errors"
	"image"
	"math"
	"slices"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/ivlev/compositor/internal/geom"
)

var ErrDegenerateGeometry = errors.New("geometry needs at least 3 points")

type GeometryParams struct {
	Points []geom.Vec2
	Fill   geom.Color
}

// Geometry is a filled polygon. It owns an anti-aliasing rasterizer that is
// reused across frames. The point count is its shape: a different count
// needs a new Geometry.
type Geometry struct {
	Base
	points []geom.Vec2
	fill   geom.Color
	bounds geom.Rect
	z      *vector.Rasterizer
}

func NewGeometry(p GeometryParams, _ *RenderContext) (*Geometry, error) {
	if len(p.Points) < 3 {
		return nil, ErrDegenerateGeometry
	}
	g := &Geometry{
		Base:   newBase(),
		points: slices.Clone(p.Points),
		fill:   p.Fill,
	}
	g.bounds = geom.BoundsOf(g.points)
	return g, nil
}

func (g *Geometry) Update(p GeometryParams, _ *RenderContext) (bool, error) {
	if len(p.Points) != len(g.points) {
		return false, nil
	}
	if p.Fill == g.fill && slices.Equal(p.Points, g.points) {
		return true, nil
	}
	copy(g.points, p.Points)
	g.fill = p.Fill
	g.bounds = geom.BoundsOf(g.points)
	g.touch()
	return true, nil
}

func (g *Geometry) Bounds() geom.Rect { return g.bounds }

func (g *Geometry) Fill() geom.Color { return g.fill }

func (g *Geometry) Release() {
	if g.release() {
		g.z = nil
	}
}

// Draw rasterizes the polygon through xf onto dst, limited to clip. The
// rasterizer covers clip only, so points are shifted by clip.Min.
func (g *Geometry) Draw(dst *image.RGBA, clip image.Rectangle, xf geom.Affine, opacity float64) {
	if g.released || opacity <= 0 {
		return
	}
	clip = clip.Intersect(dst.Rect)
	if clip.Empty() {
		return
	}
	size := clip.Size()
	if g.z == nil {
		g.z = vector.NewRasterizer(size.X, size.Y)
	} else {
		g.z.Reset(size.X, size.Y)
	}
	g.z.DrawOp = draw.Over

	xf = xf.Or()
	ox, oy := float64(clip.Min.X), float64(clip.Min.Y)
	for i, pt := range g.points {
		q := xf.Apply(pt)
		x, y := float32(q.X-ox), float32(q.Y-oy)
		if i == 0 {
			g.z.MoveTo(x, y)
			continue
		}
		g.z.LineTo(x, y)
	}
	g.z.ClosePath()

	src := image.NewUniform(g.fill.WithAlpha(opacity).NRGBA())
	g.z.Draw(dst, clip, src, image.Point{})
}

// RegularPolygon returns the vertices of a regular polygon centered on the
// origin with the first vertex at angle rotation (radians).
func RegularPolygon(sides int, radius, rotation float64) []geom.Vec2 {
	pts := make([]geom.Vec2, sides)
	for i := range pts {
		a := rotation + 2*math.Pi*float64(i)/float64(sides) - math.Pi/2
		pts[i] = geom.Vec2{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}
	return pts
}

// RectPoints returns r's corners as a closed polygon.
func RectPoints(r geom.Rect) []geom.Vec2 {
	c := r.Corners()
	return c[:]
}
