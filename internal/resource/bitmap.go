package resource

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/system"
)

var ErrEmptyBitmap = errors.New("bitmap source is empty")

// BitmapParams describes the pixels a Bitmap mirrors. Stamp identifies the
// source content; an unchanged non-zero stamp skips the copy.
type BitmapParams struct {
	Image image.Image
	Stamp uint64
}

// Bitmap is a pooled RGBA copy of a decoded frame. Its pixel size is its
// shape.
type Bitmap struct {
	Base
	img   *image.RGBA
	stamp uint64
	pool  *system.ImagePool
}

func NewBitmap(p BitmapParams, rc *RenderContext) (*Bitmap, error) {
	if p.Image == nil || p.Image.Bounds().Empty() {
		return nil, ErrEmptyBitmap
	}
	b := &Bitmap{
		Base: newBase(),
		pool: rc.pool(),
	}
	b.img = b.pool.GetDirty(p.Image.Bounds().Size())
	b.copyFrom(p)
	return b, nil
}

func (b *Bitmap) Update(p BitmapParams, _ *RenderContext) (bool, error) {
	if p.Image == nil || p.Image.Bounds().Size() != b.img.Rect.Size() {
		return false, nil
	}
	if p.Stamp != 0 && p.Stamp == b.stamp {
		return true, nil
	}
	b.copyFrom(p)
	b.touch()
	return true, nil
}

func (b *Bitmap) copyFrom(p BitmapParams) {
	src := p.Image
	draw.Draw(b.img, b.img.Rect, src, src.Bounds().Min, draw.Src)
	b.stamp = p.Stamp
}

func (b *Bitmap) Image() *image.RGBA { return b.img }

func (b *Bitmap) Bounds() geom.Rect {
	return geom.FromImage(b.img.Rect)
}

func (b *Bitmap) Release() {
	if b.release() {
		b.pool.Put(b.img)
		b.img = nil
	}
}

// Draw composites the bitmap through xf onto dst within clip.
func (b *Bitmap) Draw(dst *image.RGBA, clip image.Rectangle, xf geom.Affine, opacity float64) {
	if b.img == nil || opacity <= 0 {
		return
	}
	clip = clip.Intersect(dst.Rect)
	if clip.Empty() {
		return
	}
	xf = xf.Or()

	// Целочисленный сдвиг без прозрачности: обычный draw.Draw.
	if opacity >= 1 && xf.A == 1 && xf.B == 0 && xf.D == 0 && xf.E == 1 &&
		xf.C == float64(int(xf.C)) && xf.F == float64(int(xf.F)) {
		off := image.Pt(int(xf.C), int(xf.F))
		r := b.img.Rect.Add(off).Intersect(clip)
		draw.Draw(dst, r, b.img, r.Min.Sub(off), draw.Over)
		return
	}

	sub := dst.SubImage(clip).(*image.RGBA)
	var opts *draw.Options
	if opacity < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha16{A: uint16(opacity * 0xffff)})}
	}
	m := f64.Aff3{xf.A, xf.B, xf.C, xf.D, xf.E, xf.F}
	draw.BiLinear.Transform(sub, m, b.img, b.img.Rect, draw.Over, opts)
}
