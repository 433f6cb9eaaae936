package resource

import (
	"image"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/compositor/internal/geom"
)

// ColorMatrix is a row-major 4x5 matrix over straight-alpha RGBA in [0, 1]
// with a constant column.
type ColorMatrix [20]float64

func IdentityMatrix() ColorMatrix {
	return ColorMatrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Luma weights (Rec. 709).
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// Adjust builds a matrix that applies saturation, then contrast around
// mid-gray, then a brightness offset, and scales alpha by opacity.
// Neutral values are 0, 1, 1, 1.
func Adjust(brightness, contrast, saturation, opacity float64) ColorMatrix {
	s := saturation
	sr, sg, sb := (1-s)*lumaR, (1-s)*lumaG, (1-s)*lumaB
	sat := [3][3]float64{
		{sr + s, sg, sb},
		{sr, sg + s, sb},
		{sr, sg, sb + s},
	}
	c := contrast
	offset := 0.5*(1-c) + brightness

	var m ColorMatrix
	for row := range 3 {
		for col := range 3 {
			m[row*5+col] = c * sat[row][col]
		}
		m[row*5+4] = offset
	}
	m[18] = opacity
	return m
}

func (m *ColorMatrix) apply(v [4]float64) [4]float64 {
	var out [4]float64
	for row := range 4 {
		r := m[row*5:]
		out[row] = r[0]*v[0] + r[1]*v[1] + r[2]*v[2] + r[3]*v[3] + r[4]
	}
	return out
}

// gaussianKernel fills buf with a normalized kernel of half-width
// ceil(radius).
func gaussianKernel(buf []float32, radius float64) []float32 {
	half := int(math.Ceil(radius))
	if half <= 0 {
		return append(buf, 1)
	}
	sigma := max(radius/2, 0.5)
	var sum float64
	for i := -half; i <= half; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		buf = append(buf, float32(w))
		sum += w
	}
	for i := range buf {
		buf[i] = float32(float64(buf[i]) / sum)
	}
	return buf
}

// parallelRows splits area into horizontal bands and runs fn on them with
// at most workers goroutines.
func parallelRows(area image.Rectangle, workers int, fn func(y0, y1 int)) error {
	rows := area.Dy()
	bands := min(workers*2, rows)
	if bands <= 1 {
		fn(area.Min.Y, area.Max.Y)
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	step := (rows + bands - 1) / bands
	for y := area.Min.Y; y < area.Max.Y; y += step {
		y0, y1 := y, min(y+step, area.Max.Y)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	return g.Wait()
}

// blur is a separable gaussian over premultiplied pixels. Pixels outside
// img count as transparent.
func blur(img *image.RGBA, area image.Rectangle, k []float32, rc *RenderContext) error {
	half := len(k) / 2
	if half == 0 {
		return nil
	}
	pool := rc.pool()
	tmp := pool.GetDirty(img.Rect.Size())
	defer pool.Put(tmp)

	// the vertical pass reads half rows above and below area
	rows := image.Rect(area.Min.X, area.Min.Y-half, area.Max.X, area.Max.Y+half).Intersect(img.Rect)
	err := parallelRows(rows, rc.workers(), func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := rows.Min.X; x < rows.Max.X; x++ {
				var acc [4]float32
				for j, w := range k {
					sx := x + j - half
					if sx < img.Rect.Min.X || sx >= img.Rect.Max.X {
						continue
					}
					i := img.PixOffset(sx, y)
					acc[0] += w * float32(img.Pix[i])
					acc[1] += w * float32(img.Pix[i+1])
					acc[2] += w * float32(img.Pix[i+2])
					acc[3] += w * float32(img.Pix[i+3])
				}
				store(tmp, x, y, acc)
			}
		}
	})
	if err != nil {
		return err
	}

	return parallelRows(area, rc.workers(), func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				var acc [4]float32
				for j, w := range k {
					sy := y + j - half
					if sy < rows.Min.Y || sy >= rows.Max.Y {
						continue
					}
					i := tmp.PixOffset(x, sy)
					acc[0] += w * float32(tmp.Pix[i])
					acc[1] += w * float32(tmp.Pix[i+1])
					acc[2] += w * float32(tmp.Pix[i+2])
					acc[3] += w * float32(tmp.Pix[i+3])
				}
				store(img, x, y, acc)
			}
		}
	})
}

func store(img *image.RGBA, x, y int, acc [4]float32) {
	i := img.PixOffset(x, y)
	for c, v := range acc {
		img.Pix[i+c] = uint8(min(max(v+0.5, 0), 255))
	}
}

func applyMatrix(img *image.RGBA, area image.Rectangle, m *ColorMatrix, workers int) error {
	return parallelRows(area, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				i := img.PixOffset(x, y)
				a := img.Pix[i+3]
				if a == 0 {
					continue
				}
				af := float64(a) / 255
				in := [4]float64{
					float64(img.Pix[i]) / 255 / af,
					float64(img.Pix[i+1]) / 255 / af,
					float64(img.Pix[i+2]) / 255 / af,
					af,
				}
				out := m.apply(in)
				oa := unit(out[3])
				img.Pix[i] = byteOf(unit(out[0]) * oa)
				img.Pix[i+1] = byteOf(unit(out[1]) * oa)
				img.Pix[i+2] = byteOf(unit(out[2]) * oa)
				img.Pix[i+3] = byteOf(oa)
			}
		}
	})
}

// dropShadow stamps a tinted, offset copy of the alpha channel, blurs it
// and composites the original pixels over it.
func dropShadow(img *image.RGBA, area image.Rectangle, k []float32, off geom.Vec2, col geom.Color, rc *RenderContext) error {
	pool := rc.pool()
	sh := pool.Get(img.Rect.Size())
	defer pool.Put(sh)

	dx, dy := int(math.Round(off.X)), int(math.Round(off.Y))
	pr, pg, pb := col.R*col.A, col.G*col.A, col.B*col.A
	workers := rc.workers()

	err := parallelRows(area, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				src := image.Pt(x-dx, y-dy)
				if !src.In(img.Rect) {
					continue
				}
				a := float64(img.Pix[img.PixOffset(src.X, src.Y)+3]) / 255
				if a == 0 {
					continue
				}
				i := sh.PixOffset(x, y)
				sh.Pix[i] = byteOf(pr * a)
				sh.Pix[i+1] = byteOf(pg * a)
				sh.Pix[i+2] = byteOf(pb * a)
				sh.Pix[i+3] = byteOf(col.A * a)
			}
		}
	})
	if err != nil {
		return err
	}
	if err := blur(sh, area, k, rc); err != nil {
		return err
	}

	return parallelRows(area, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				i := img.PixOffset(x, y)
				inv := 1 - float64(img.Pix[i+3])/255
				for c := range 4 {
					v := float64(img.Pix[i+c]) + float64(sh.Pix[i+c])*inv
					img.Pix[i+c] = uint8(min(v+0.5, 255))
				}
			}
		}
	})
}

func unit(v float64) float64 {
	return min(max(v, 0), 1)
}

func byteOf(v float64) uint8 {
	return uint8(math.Round(unit(v) * 255))
}
