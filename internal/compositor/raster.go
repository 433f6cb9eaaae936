package compositor

import (
	"errors"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
)

// Raster is the software backend. It owns the composited canvas and
// repaints only the regions it is asked to.
type Raster struct {
	canvas     *image.RGBA
	background geom.Color
	rc         *resource.RenderContext
}

func NewRaster(size image.Point, background geom.Color, rc *resource.RenderContext) *Raster {
	return &Raster{
		canvas:     image.NewRGBA(image.Rectangle{Max: size}),
		background: background,
		rc:         rc,
	}
}

func (r *Raster) Canvas() *image.RGBA { return r.canvas }

// Reset replaces the canvas when the size changes and updates the
// background. It reports whether anything changed.
func (r *Raster) Reset(size image.Point, background geom.Color) bool {
	changed := background != r.background
	r.background = background
	if r.canvas.Rect.Size() != size {
		r.canvas = image.NewRGBA(image.Rectangle{Max: size})
		changed = true
	}
	return changed
}

// Redraw clears each region to the background and composites every
// drawable that intersects it, bottom layer first.
func (r *Raster) Redraw(regions []image.Rectangle, layers [][]scene.Drawable) error {
	bg := image.NewUniform(r.background.NRGBA())
	var errs []error
	for _, region := range regions {
		region = region.Intersect(r.canvas.Rect)
		if region.Empty() {
			continue
		}
		draw.Draw(r.canvas, region, bg, image.Point{}, draw.Src)
		for _, drawables := range layers {
			for _, d := range drawables {
				if d.Content == nil || !d.Bounds().Image().Overlaps(region) {
					continue
				}
				if err := r.drawOne(region, d); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Raster) drawOne(clip image.Rectangle, d scene.Drawable) error {
	if len(d.Filters) == 0 {
		d.Content.Draw(r.canvas, clip, d.Transform, d.Opacity)
		return nil
	}

	// Filters read neighbouring pixels: render a padded area offscreen.
	pad := int(math.Ceil(d.Filters.Pad()))
	area := clip.Inset(-pad).Intersect(r.canvas.Rect)
	pool := r.rc.Pool
	tmp := pool.Get(r.canvas.Rect.Size())
	defer pool.Put(tmp)

	d.Content.Draw(tmp, area, d.Transform, 1)
	if err := d.Filters.Apply(tmp, area, r.rc); err != nil {
		return err
	}
	var mask image.Image
	if d.Opacity < 1 {
		mask = image.NewUniform(color.Alpha16{A: uint16(max(d.Opacity, 0) * 0xffff)})
	}
	draw.DrawMask(r.canvas, clip, tmp, clip.Min, mask, image.Point{}, draw.Over)
	return nil
}
