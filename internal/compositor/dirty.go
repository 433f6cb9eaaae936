package compositor

import (
	"image"

	"github.com/ivlev/compositor/internal/geom"
)

// fullFrameRatio is the dirty share above which the whole frame is redrawn.
const fullFrameRatio = 0.5

// DirtyTracker accumulates the regions to repaint for the next frame. It
// keeps its rectangles pairwise disjoint by merging overlapping ones, so the
// sum of their areas is the dirty area.
type DirtyTracker struct {
	frame image.Rectangle
	rects []image.Rectangle
	full  bool
}

func NewDirtyTracker(frame image.Rectangle) *DirtyTracker {
	return &DirtyTracker{frame: frame}
}

// Add marks r dirty. Parts outside the frame are ignored.
func (d *DirtyTracker) Add(r image.Rectangle) {
	r = r.Intersect(d.frame)
	if r.Empty() || d.full {
		return
	}
	for i := 0; i < len(d.rects); {
		if d.rects[i].Overlaps(r) {
			r = r.Union(d.rects[i])
			d.rects = append(d.rects[:i], d.rects[i+1:]...)
			i = 0
			continue
		}
		i++
	}
	d.rects = append(d.rects, r)
}

// AddRect marks the pixels touched by r dirty.
func (d *DirtyTracker) AddRect(r geom.Rect) {
	d.Add(r.Image())
}

func (d *DirtyTracker) MarkFull() {
	d.full = true
	d.rects = d.rects[:0]
}

func (d *DirtyTracker) Empty() bool {
	return !d.full && len(d.rects) == 0
}

func (d *DirtyTracker) area() int {
	var a int
	for _, r := range d.rects {
		a += r.Dx() * r.Dy()
	}
	return a
}

// Full reports whether the next redraw covers the whole frame, either
// because it was requested or because the dirty area is too large for
// partial redraw to pay off.
func (d *DirtyTracker) Full() bool {
	if d.full {
		return true
	}
	total := d.frame.Dx() * d.frame.Dy()
	return total > 0 && float64(d.area()) > fullFrameRatio*float64(total)
}

// Ratio is the share of the frame that will be redrawn.
func (d *DirtyTracker) Ratio() float64 {
	total := d.frame.Dx() * d.frame.Dy()
	if total == 0 {
		return 0
	}
	if d.Full() {
		return 1
	}
	return float64(d.area()) / float64(total)
}

// Regions returns what to redraw.
func (d *DirtyTracker) Regions() []image.Rectangle {
	if d.Full() {
		return []image.Rectangle{d.frame}
	}
	return append([]image.Rectangle(nil), d.rects...)
}

func (d *DirtyTracker) Reset() {
	d.full = false
	d.rects = d.rects[:0]
}

// Resize changes the frame and forces a full redraw.
func (d *DirtyTracker) Resize(frame image.Rectangle) {
	d.frame = frame
	d.MarkFull()
}
