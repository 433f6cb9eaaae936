// Package timeline holds the layer model: time-ranged layers, each with an
// operation graph and a private output scope.
package timeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/samber/lo"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/timebase"
)

var ErrDuplicateLayer = errors.New("duplicate layer")

// LayerID is a stable handle used for back-references (logs, scheduler
// bookkeeping) instead of pointers.
type LayerID string

// Layer is a time-ranged container of operations.
type Layer struct {
	ID      LayerID
	Name    string
	Start   timebase.Time
	Length  timebase.Time
	Enabled bool
	Graph   *graph.Graph
	Scope   scene.Scope
}

func NewLayer(id LayerID, start, length timebase.Time, g *graph.Graph) *Layer {
	return &Layer{ID: id, Name: string(id), Start: start, Length: length, Enabled: true, Graph: g}
}

func (l *Layer) Range() timebase.Range {
	return timebase.Range{Start: l.Start, Length: l.Length}
}

// InRange reports whether the layer is active at t. Disabled layers and
// layers with a non-positive length are never in range.
func (l *Layer) InRange(t timebase.Time) bool {
	return l.Enabled && l.Range().Contains(t)
}

func (l *Layer) String() string {
	return fmt.Sprintf("%s[%s]", l.ID, l.Range())
}

// Timeline is an ordered stack of layers; later layers composite over
// earlier ones. It also owns the playback position.
type Timeline struct {
	Size       image.Point
	Rate       timebase.Rate
	SampleRate int
	Background geom.Color

	layers []*Layer
	byID   map[LayerID]*Layer
	now    timebase.Time
}

func New(size image.Point, rate timebase.Rate, sampleRate int) *Timeline {
	return &Timeline{
		Size:       size,
		Rate:       rate,
		SampleRate: sampleRate,
		Background: geom.Black,
		byID:       make(map[LayerID]*Layer),
	}
}

// Add appends l on top of the stack.
func (t *Timeline) Add(l *Layer) error {
	if _, ok := t.byID[l.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, l.ID)
	}
	t.layers = append(t.layers, l)
	t.byID[l.ID] = l
	return nil
}

func (t *Timeline) Remove(id LayerID) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	t.layers = lo.Reject(t.layers, func(l *Layer, _ int) bool { return l.ID == id })
	return true
}

// Layers returns the stack bottom to top.
func (t *Timeline) Layers() []*Layer { return t.layers }

func (t *Timeline) Layer(id LayerID) (*Layer, bool) {
	l, ok := t.byID[id]
	return l, ok
}

// Duration is the end of the last layer.
func (t *Timeline) Duration() timebase.Time {
	d := timebase.Zero
	for _, l := range t.layers {
		if l.Length.Negative() || l.Length.IsZero() {
			continue
		}
		d = timebase.Max(d, l.Range().End())
	}
	return d
}

// Seek moves the playback position.
func (t *Timeline) Seek(at timebase.Time) { t.now = at }

func (t *Timeline) Now() timebase.Time { return t.now }

// Frames is the number of frames covering Duration at Rate.
func (t *Timeline) Frames() int64 {
	d := t.Duration()
	n := d.Frame(t.Rate)
	if timebase.FromFrame(n, t.Rate).Before(d) {
		n++
	}
	return n
}
