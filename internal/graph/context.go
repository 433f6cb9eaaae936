package graph

import (
	"log/slog"

	"github.com/ivlev/compositor/internal/resource"
	"github.com/ivlev/compositor/internal/scene"
	"github.com/ivlev/compositor/internal/timebase"
)

// Operation is the lifecycle every node implements. Persistent state
// belongs in Context.State, not in the operation value, so one operation
// can be moved between graphs on a structural change.
type Operation interface {
	// InitializeForContext runs once before the node's first Evaluate.
	InitializeForContext(ctx *Context) error
	// Evaluate runs once per frame while the node is active.
	Evaluate(ctx *Context) error
	// UninitializeForContext releases whatever Initialize and Evaluate
	// allocated.
	UninitializeForContext(ctx *Context)
}

// Socket names an input. Required inputs must be connected at build time.
type Socket struct {
	Name     string
	Required bool
}

// InputDeclarer is implemented by operations that read inputs.
type InputDeclarer interface {
	Inputs() []Socket
}

// EvalArgs is the transient bundle passed to every node for one tick.
type EvalArgs struct {
	Time   timebase.Time  // timeline time
	Local  timebase.Time  // time since the layer started
	Span   timebase.Range // the layer's placement on the timeline
	Layer  string
	Render *resource.RenderContext
	Scope  *scene.Scope
	Audio  scene.AudioBlock // span in layer-local time
	Logger *slog.Logger
}

func (a *EvalArgs) logger() *slog.Logger {
	if a == nil || a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func (a *EvalArgs) layer() string {
	if a == nil {
		return ""
	}
	return a.Layer
}

// Context is the persistent per-node slot.
type Context struct {
	Key   string
	Type  string
	State any
	Args  *EvalArgs

	g           *Graph
	n           *node
	outputs     map[string]any
	initialized bool

	// last successful scope contribution, replayed when Evaluate fails
	drawables []scene.Drawable
	audio     []scene.Audio
	failures  int
}

// Input returns the current value of the upstream output wired to socket.
func (c *Context) Input(socket string) (any, bool) {
	l, ok := c.n.in[socket]
	if !ok {
		return nil, false
	}
	src, ok := c.g.byKey[l.From]
	if !ok {
		return nil, false
	}
	v, ok := src.ctx.outputs[l.FromSocket]
	return v, ok
}

// InputAs is Input with a type assertion.
func InputAs[T any](c *Context, socket string) (T, bool) {
	v, ok := c.Input(socket)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func (c *Context) SetOutput(socket string, v any) {
	if c.outputs == nil {
		c.outputs = make(map[string]any)
	}
	c.outputs[socket] = v
}

func (c *Context) Output(socket string) (any, bool) {
	v, ok := c.outputs[socket]
	return v, ok
}

// HasConsumers reports whether any node reads socket.
func (c *Context) HasConsumers(socket string) bool {
	return c.n.consumers[socket] > 0
}

func (c *Context) Initialized() bool { return c.initialized }

// Failures counts failed evaluations since the node was initialized.
func (c *Context) Failures() int { return c.failures }

// Logger returns the tick logger annotated with this node.
func (c *Context) Logger() *slog.Logger {
	return c.Args.logger().With("node", c.Key, "type", c.Type)
}

func (c *Context) reset() {
	c.State = nil
	c.outputs = nil
	c.drawables = nil
	c.audio = nil
	c.failures = 0
	c.initialized = false
}
