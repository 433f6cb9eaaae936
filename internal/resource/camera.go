package resource

import (
	"math"

	"github.com/ivlev/compositor/internal/geom"
)

// CameraParams places a view over content. Center is the content point
// that lands on the viewport center; Rotation is in degrees.
type CameraParams struct {
	Center   geom.Vec2
	Zoom     float64
	Rotation float64
	Viewport geom.Vec2
}

// Camera has no shape: every parameter change is an in-place update.
type Camera struct {
	Base
	p CameraParams
	m geom.Affine
}

func NewCamera(p CameraParams, _ *RenderContext) (*Camera, error) {
	c := &Camera{Base: newBase()}
	c.set(p)
	return c, nil
}

func (c *Camera) Update(p CameraParams, _ *RenderContext) (bool, error) {
	if p != c.p {
		c.set(p)
		c.touch()
	}
	return true, nil
}

func (c *Camera) set(p CameraParams) {
	if p.Zoom <= 0 {
		p.Zoom = 1
	}
	c.p = p
	half := p.Viewport.Scale(0.5)
	c.m = geom.Translate(half.X, half.Y).
		Mul(geom.Rotate(p.Rotation * math.Pi / 180)).
		Mul(geom.Scale(p.Zoom, p.Zoom)).
		Mul(geom.Translate(-p.Center.X, -p.Center.Y))
}

// Matrix maps content coordinates to viewport coordinates.
func (c *Camera) Matrix() geom.Affine { return c.m }

func (c *Camera) Bounds() geom.Rect {
	return geom.Rect{W: c.p.Viewport.X, H: c.p.Viewport.Y}
}

func (c *Camera) Release() { c.release() }
