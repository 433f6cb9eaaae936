// Package analyzer finds regions of interest in a bitmap. The Ken Burns
// "focus" mode zooms towards the largest one.
package analyzer

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/compositor/internal/geom"
)

// ErrUnknownDetector is returned by NewDetector for an unsupported variant.
var ErrUnknownDetector = errors.New("unknown detector")

// Block is a detected region of interest.
type Block struct {
	Rect image.Rectangle
	Area int // number of edge pixels inside Rect
}

// Detector finds blocks in an image. Results are ordered by Area, largest
// first.
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// NewDetector creates a detector by name.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, variant)
	}
}

// ContrastDetector groups strong Sobel edges into connected blocks.
type ContrastDetector struct {
	MinBlockArea  int     // minimum bounding-box area in pixels²
	EdgeThreshold float64 // gradient magnitude threshold
	Dilate        int     // radius used to join nearby edges
	Workers       int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  500, // ~22x22
		EdgeThreshold: 30,
		Dilate:        2,
		Workers:       runtime.NumCPU(),
	}
}

// Detect runs grayscale, edge detection, dilation and labeling.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return nil, nil
	}
	p := plane{w: b.Dx(), h: b.Dy()}
	lum := luminance(img, p)

	edges := make([]bool, p.w*p.h)
	if err := d.rows(p.h, func(y0, y1 int) { sobel(lum, edges, p, y0, y1, d.EdgeThreshold) }); err != nil {
		return nil, err
	}
	mask := dilate(edges, p, d.Dilate)

	var blocks []Block
	for _, blk := range label(mask, edges, p) {
		if blk.Rect.Dx()*blk.Rect.Dy() < d.MinBlockArea {
			continue
		}
		blk.Rect = blk.Rect.Add(b.Min)
		blocks = append(blocks, blk)
	}
	slices.SortStableFunc(blocks, func(a, b Block) int { return b.Area - a.Area })
	return blocks, nil
}

func (d *ContrastDetector) rows(h int, fn func(y0, y1 int)) error {
	workers := max(d.Workers, 1)
	step := max((h+workers-1)/workers, 1)
	var g errgroup.Group
	g.SetLimit(workers)
	for y := 0; y < h; y += step {
		y0, y1 := y, min(y+step, h)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	return g.Wait()
}

// Focus returns the center of the largest block relative to bounds, each
// coordinate in [0, 1].
func Focus(blocks []Block, bounds image.Rectangle) (geom.Vec2, bool) {
	if len(blocks) == 0 || bounds.Empty() {
		return geom.Vec2{}, false
	}
	c := geom.FromImage(blocks[0].Rect).Center()
	return geom.Vec2{
		X: (c.X - float64(bounds.Min.X)) / float64(bounds.Dx()),
		Y: (c.Y - float64(bounds.Min.Y)) / float64(bounds.Dy()),
	}, true
}

type plane struct{ w, h int }

func (p plane) at(x, y int) int { return y*p.w + x }

func luminance(img image.Image, p plane) []float64 {
	b := img.Bounds()
	lum := make([]float64, p.w*p.h)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := range p.h {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range p.w {
				px := row[x*4 : x*4+3]
				lum[p.at(x, y)] = 0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2])
			}
		}
		return lum
	}
	for y := range p.h {
		for x := range p.w {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum[p.at(x, y)] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257
		}
	}
	return lum
}

func sobel(lum []float64, edges []bool, p plane, y0, y1 int, threshold float64) {
	for y := max(y0, 1); y < min(y1, p.h-1); y++ {
		for x := 1; x < p.w-1; x++ {
			tl, t, tr := lum[p.at(x-1, y-1)], lum[p.at(x, y-1)], lum[p.at(x+1, y-1)]
			l, r := lum[p.at(x-1, y)], lum[p.at(x+1, y)]
			bl, b, br := lum[p.at(x-1, y+1)], lum[p.at(x, y+1)], lum[p.at(x+1, y+1)]
			gx := (tr + 2*r + br) - (tl + 2*l + bl)
			gy := (bl + 2*b + br) - (tl + 2*t + tr)
			edges[p.at(x, y)] = math.Hypot(gx, gy) > threshold
		}
	}
}

// dilate is a separable square max filter of the given radius.
func dilate(src []bool, p plane, radius int) []bool {
	if radius <= 0 {
		return src
	}
	tmp := make([]bool, len(src))
	for y := range p.h {
		run := -1 // last set pixel
		for x := range p.w + radius {
			if x < p.w && src[p.at(x, y)] {
				run = x
			}
			if ox := x - radius; ox >= 0 && run >= 0 && x-run <= 2*radius {
				tmp[p.at(ox, y)] = true
			}
		}
	}
	out := make([]bool, len(src))
	for x := range p.w {
		run := -1
		for y := range p.h + radius {
			if y < p.h && tmp[p.at(x, y)] {
				run = y
			}
			if oy := y - radius; oy >= 0 && run >= 0 && y-run <= 2*radius {
				out[p.at(x, oy)] = true
			}
		}
	}
	return out
}

// label finds 4-connected components of mask. Area counts the original
// edge pixels of each component.
func label(mask, edges []bool, p plane) []Block {
	seen := make([]bool, len(mask))
	var blocks []Block
	var stack []int
	for i, on := range mask {
		if !on || seen[i] {
			continue
		}
		r := image.Rectangle{Min: image.Pt(p.w, p.h), Max: image.Pt(-1, -1)}
		area := 0
		stack = append(stack[:0], i)
		seen[i] = true
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := j%p.w, j/p.w
			r.Min.X, r.Min.Y = min(r.Min.X, x), min(r.Min.Y, y)
			r.Max.X, r.Max.Y = max(r.Max.X, x+1), max(r.Max.Y, y+1)
			if edges[j] {
				area++
			}
			for _, n := range [4]int{j - 1, j + 1, j - p.w, j + p.w} {
				if n < 0 || n >= len(mask) || seen[n] || !mask[n] {
					continue
				}
				if (n == j-1 && x == 0) || (n == j+1 && x == p.w-1) {
					continue
				}
				seen[n] = true
				stack = append(stack, n)
			}
		}
		blocks = append(blocks, Block{Rect: r, Area: area})
	}
	return blocks
}
