// Package compositor turns a timeline into frames. Each Render schedules
// layers, runs their graphs in begin/current/end order, repaints only the
// parts of the canvas that changed and mixes the layers' audio.
//
// All graph and resource work happens on a single dedicated thread. Render
// may be called from any goroutine; a call that arrives while a frame is in
// progress returns the last completed frame instead of waiting.
package compositor

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/graph"
	"github.com/ivlev/compositor/internal/metrics"
	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/scheduler"
	"github.com/ivlev/compositor/internal/system"
	"github.com/ivlev/compositor/internal/timebase"
	"github.com/ivlev/compositor/internal/timeline"
)

// ErrNoFrame is returned by a skipped render when nothing was rendered yet.
var ErrNoFrame = errors.New("no frame rendered yet")

// Frame is one composited output. Image and Audio belong to the caller.
type Frame struct {
	ID       uuid.UUID
	Seq      uint64
	Time     timebase.Time
	Image    *image.RGBA
	Audio    []float32
	Dirty    []image.Rectangle
	Full     bool
	Failures int
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	out := f
	if f.Image != nil {
		out.Image = cloneRGBA(f.Image)
	}
	out.Audio = slices.Clone(f.Audio)
	out.Dirty = slices.Clone(f.Dirty)
	return out
}

type Option func(*Compositor)

func WithLogger(l *slog.Logger) Option {
	return func(c *Compositor) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Compositor) { c.metrics = m }
}

func WithPool(p *system.ImagePool) Option {
	return func(c *Compositor) { c.rc.Pool = p }
}

func WithWorkers(n int) Option {
	return func(c *Compositor) { c.rc.Workers = n }
}

func WithEventBuffer(n int) Option {
	return func(c *Compositor) { c.eventBuf = n }
}

// layerState is what the previous frame drew for one layer.
type layerState struct {
	keys   []scene.Key
	bounds []geom.Rect
	union  geom.Rect
}

type Compositor struct {
	session  uuid.UUID
	log      *slog.Logger
	metrics  *metrics.Metrics
	thread   *Thread
	events   *eventQueue
	eventBuf int

	// Render thread only.
	tl     *timeline.Timeline
	sched  *scheduler.Scheduler
	raster *Raster
	dirty  *DirtyTracker
	rc     *resource.RenderContext
	seen   map[timeline.LayerID]layerState
	seq    uint64

	rendering atomic.Bool
	closeOnce sync.Once

	mu      sync.Mutex
	last    Frame
	hasLast bool
}

func New(tl *timeline.Timeline, opts ...Option) *Compositor {
	c := &Compositor{
		session:  uuid.New(),
		tl:       tl,
		sched:    scheduler.New(),
		rc:       &resource.RenderContext{Size: tl.Size},
		seen:     make(map[timeline.LayerID]layerState),
		eventBuf: 16,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.rc.Pool == nil {
		c.rc.Pool = system.DefaultPool()
	}
	c.log = c.log.With("session", c.session.String())
	c.raster = NewRaster(tl.Size, tl.Background, c.rc)
	c.dirty = NewDirtyTracker(image.Rectangle{Max: tl.Size})
	c.dirty.MarkFull()
	c.events = newEventQueue(c.eventBuf)
	c.thread = NewThread()
	return c
}

func (c *Compositor) Session() uuid.UUID { return c.session }

// Events delivers one Event per rendered frame. The channel is closed by
// Close.
func (c *Compositor) Events() <-chan Event { return c.events.ch }

// Seek moves the timeline position used by Render.
func (c *Compositor) Seek(ctx context.Context, t timebase.Time) error {
	return c.thread.Do(ctx, func() { c.tl.Seek(t) })
}

// Render composites the frame at the current timeline position.
func (c *Compositor) Render(ctx context.Context) (Frame, error) {
	return c.render(ctx, nil)
}

// RenderAt seeks to t and composites that frame.
func (c *Compositor) RenderAt(ctx context.Context, t timebase.Time) (Frame, error) {
	return c.render(ctx, &t)
}

func (c *Compositor) render(ctx context.Context, at *timebase.Time) (Frame, error) {
	if !c.rendering.CompareAndSwap(false, true) {
		c.metrics.RenderSkipped()
		c.log.Debug("Render in progress, returning last frame")
		return c.Last()
	}
	defer c.rendering.Store(false)

	var f Frame
	err := c.thread.Do(ctx, func() {
		if at != nil {
			c.tl.Seek(*at)
		}
		f = c.renderFrame()
	})
	if err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	c.last, c.hasLast = f, true
	c.mu.Unlock()
	return f.Clone(), nil
}

// Last returns a copy of the most recent frame.
func (c *Compositor) Last() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasLast {
		return Frame{}, ErrNoFrame
	}
	return c.last.Clone(), nil
}

func (c *Compositor) args(l *timeline.Layer, t timebase.Time) *graph.EvalArgs {
	local := t.Sub(l.Start)
	return &graph.EvalArgs{
		Time:   t,
		Local:  local,
		Span:   l.Range(),
		Layer:  string(l.ID),
		Render: c.rc,
		Scope:  &l.Scope,
		Audio:  c.audioBlock(t, local),
		Logger: c.log,
	}
}

// audioBlock covers [t, t+1/fps). Counting samples as the difference of two
// floored sample indices keeps fractional frame rates from drifting.
func (c *Compositor) audioBlock(t, local timebase.Time) scene.AudioBlock {
	rate := c.tl.Rate
	if !rate.Valid() || c.tl.SampleRate <= 0 {
		return scene.AudioBlock{}
	}
	period := rate.Period()
	sr := timebase.FPS(int64(c.tl.SampleRate))
	count := t.Add(period).Frame(sr) - t.Frame(sr)
	return scene.AudioBlock{
		Span:       timebase.Range{Start: local, Length: period},
		SampleRate: c.tl.SampleRate,
		Count:      int(count),
	}
}

func (c *Compositor) renderFrame() Frame {
	start := time.Now()
	t := c.tl.Now()
	res := c.sched.Schedule(c.tl, t)

	var failures []*graph.NodeError

	for _, l := range res.Begin {
		if l.Graph != nil {
			failures = append(failures, l.Graph.Initialize(c.args(l, t))...)
		}
	}

	layers := make([][]scene.Drawable, 0, len(res.Current))
	for _, l := range res.Current {
		l.Scope.Reset()
		if l.Graph != nil {
			failures = append(failures, l.Graph.Evaluate(c.args(l, t))...)
		}
		c.trackChanges(l)
		layers = append(layers, l.Scope.Drawables())
	}

	for _, l := range res.End {
		if l.Graph != nil {
			failures = append(failures, l.Graph.Uninitialize(c.args(l, t))...)
		}
		if st, ok := c.seen[l.ID]; ok {
			c.dirty.AddRect(st.union)
			delete(c.seen, l.ID)
		}
		l.Scope.Reset()
	}

	full := c.dirty.Full()
	ratio := c.dirty.Ratio()
	regions := c.dirty.Regions()
	if c.dirty.Empty() {
		regions = nil
	}
	if len(regions) > 0 {
		if err := c.raster.Redraw(regions, layers); err != nil {
			c.log.Warn("Redraw failed", "time", t.String(), "error", err)
		}
	}
	c.dirty.Reset()

	c.seq++
	f := Frame{
		ID:       uuid.New(),
		Seq:      c.seq,
		Time:     t,
		Image:    cloneRGBA(c.raster.Canvas()),
		Audio:    mix(res.Current, c.audioBlock(t, t).Count),
		Dirty:    regions,
		Full:     full,
		Failures: len(failures),
	}

	elapsed := time.Since(start)
	c.metrics.ObserveFrame(elapsed, ratio, len(res.Current))
	for _, e := range failures {
		c.metrics.NodeFailed(e.Type)
	}
	c.events.publish(Event{
		Session:  c.session,
		Seq:      f.Seq,
		Time:     t,
		Dirty:    slices.Clone(regions),
		Full:     full,
		Failures: f.Failures,
		Elapsed:  elapsed,
	})
	c.log.Debug("Frame rendered",
		"seq", f.Seq,
		"time", t.String(),
		"begin", len(res.Begin),
		"current", len(res.Current),
		"end", len(res.End),
		"dirty_ratio", ratio,
		"elapsed", elapsed,
	)
	return f
}

// trackChanges marks dirty the old and new bounds of every drawable of l
// whose key changed since the previous frame.
func (c *Compositor) trackChanges(l *timeline.Layer) {
	drawables := l.Scope.Drawables()
	keys := make([]scene.Key, len(drawables))
	bounds := make([]geom.Rect, len(drawables))
	var union geom.Rect
	for i, d := range drawables {
		keys[i] = d.Key()
		bounds[i] = keys[i].Bounds
		union = union.Union(bounds[i])
	}

	prev, ok := c.seen[l.ID]
	switch {
	case !ok:
		c.dirty.AddRect(union)
	case len(prev.keys) != len(keys):
		c.dirty.AddRect(prev.union)
		c.dirty.AddRect(union)
	default:
		for i := range keys {
			if keys[i] != prev.keys[i] {
				c.dirty.AddRect(prev.bounds[i])
				c.dirty.AddRect(bounds[i])
			}
		}
	}
	c.seen[l.ID] = layerState{keys: keys, bounds: bounds, union: union}
}

// ReplaceTimeline swaps in an edited timeline. Layers that are active and
// still present keep their node contexts for every node whose definition
// did not change; layers that disappeared end on the next render.
func (c *Compositor) ReplaceTimeline(ctx context.Context, next *timeline.Timeline) error {
	return c.thread.Do(ctx, func() {
		t := c.tl.Now()
		for _, l := range slices.Clone(c.sched.Active()) {
			nl, ok := next.Layer(l.ID)
			if !ok || nl == l {
				continue
			}
			if l.Graph != nil && nl.Graph != nil {
				graph.Reconcile(l.Graph, nl.Graph, c.args(l, t))
			}
			c.sched.Rebind(nl)
		}
		next.Seek(t)
		c.tl = next
		c.rc.Size = next.Size
		if c.raster.Reset(next.Size, next.Background) {
			c.dirty.Resize(image.Rectangle{Max: next.Size})
		}
		c.dirty.MarkFull()
	})
}

// Close tears down every active layer on the render thread and stops it.
func (c *Compositor) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		err = c.thread.Do(ctx, func() {
			t := c.tl.Now()
			active := c.sched.Active()
			for i := len(active) - 1; i >= 0; i-- {
				l := active[i]
				if l.Graph != nil {
					l.Graph.Uninitialize(c.args(l, t))
				}
				l.Scope.Reset()
			}
			c.sched.Reset()
			clear(c.seen)
		})
		c.thread.Close()
		c.events.close()
	})
	return err
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	return &image.RGBA{Pix: slices.Clone(src.Pix), Stride: src.Stride, Rect: src.Rect}
}

// mix sums every layer's audio into n samples and clips to [-1, 1].
func mix(layers []*timeline.Layer, n int) []float32 {
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	for _, l := range layers {
		for _, a := range l.Scope.Audio() {
			g := float32(a.Gain)
			for i := range min(n, len(a.Samples)) {
				out[i] += a.Samples[i] * g
			}
		}
	}
	for i, v := range out {
		out[i] = min(max(v, -1), 1)
	}
	return out
}
