// Package graph evaluates a directed acyclic graph of operations, giving
// each node a persistent context across frames.
package graph

import (
	"fmt"
	"maps"

	"github.com/ivlev/compositor/internal/scene"
)

type node struct {
	Node
	idx       int
	in        map[string]Link // by input socket
	consumers map[string]int  // by output socket
	ctx       *Context
}

// Graph is a validated, immutable-shape node graph with live contexts.
// It is not safe for concurrent use; one renderer drives it.
type Graph struct {
	nodes []*node // declaration order
	order []*node // evaluation order
	byKey map[string]*node
}

func (g *Graph) Len() int { return len(g.nodes) }

// Order returns node keys in evaluation order.
func (g *Graph) Order() []string {
	keys := make([]string, len(g.order))
	for i, n := range g.order {
		keys[i] = n.Key
	}
	return keys
}

// Nodes returns the node declarations in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Node
	}
	return out
}

func (g *Graph) Context(key string) (*Context, bool) {
	n, ok := g.byKey[key]
	if !ok {
		return nil, false
	}
	return n.ctx, true
}

// Initialize runs InitializeForContext on every enabled node. A node that
// is already initialized is reported with ErrAlreadyInitialized and left
// untouched. Failed nodes are retried on the next Evaluate.
func (g *Graph) Initialize(args *EvalArgs) []*NodeError {
	var errs []*NodeError
	for _, n := range g.order {
		if n.Disabled {
			continue
		}
		if err := g.initNode(n, args); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (g *Graph) initNode(n *node, args *EvalArgs) *NodeError {
	c := n.ctx
	if c.initialized {
		err := g.nodeError(n, args, ErrAlreadyInitialized)
		args.logger().Error("Refusing to initialize twice", "layer", args.layer(), "node", n.Key, "type", n.Type)
		return err
	}
	c.Args = args
	if err := safeCall(func() error { return n.Op.InitializeForContext(c) }); err != nil {
		c.State = nil
		args.logger().Warn("Node initialization failed",
			"layer", args.layer(), "node", n.Key, "type", n.Type, "error", err)
		return g.nodeError(n, args, err)
	}
	c.initialized = true
	return nil
}

// Evaluate runs one topological pass. A node that fails keeps its previous
// outputs and scope contribution for this frame; the pass continues.
func (g *Graph) Evaluate(args *EvalArgs) []*NodeError {
	if args.Scope == nil {
		args.Scope = &scene.Scope{}
	}
	var errs []*NodeError
	for _, n := range g.order {
		if n.Disabled {
			continue
		}
		c := n.ctx
		if !c.initialized {
			if err := g.initNode(n, args); err != nil {
				errs = append(errs, err)
				continue
			}
		}

		c.Args = args
		mark := args.Scope.Mark()
		saved := maps.Clone(c.outputs)
		err := safeCall(func() error { return n.Op.Evaluate(c) })
		if err != nil {
			c.outputs = saved
			args.Scope.Rollback(mark, c.drawables, c.audio)
			c.failures++
			args.logger().Warn("Node evaluation failed",
				"layer", args.layer(), "node", n.Key, "type", n.Type, "error", err)
			errs = append(errs, g.nodeError(n, args, err))
			continue
		}
		c.drawables, c.audio = args.Scope.Since(mark)
	}
	return errs
}

// Uninitialize tears down every initialized node in reverse evaluation
// order.
func (g *Graph) Uninitialize(args *EvalArgs) []*NodeError {
	var errs []*NodeError
	for i := len(g.order) - 1; i >= 0; i-- {
		if err := g.uninitNode(g.order[i], args); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (g *Graph) uninitNode(n *node, args *EvalArgs) *NodeError {
	c := n.ctx
	if !c.initialized {
		return nil
	}
	c.Args = args
	err := safeCall(func() error {
		n.Op.UninitializeForContext(c)
		return nil
	})
	c.reset()
	if err != nil {
		args.logger().Error("Node teardown failed",
			"layer", args.layer(), "node", n.Key, "type", n.Type, "error", err)
		return g.nodeError(n, args, err)
	}
	return nil
}

func (g *Graph) nodeError(n *node, args *EvalArgs, err error) *NodeError {
	return &NodeError{Layer: args.layer(), Node: n.Key, Type: n.Type, Err: err}
}

func (g *Graph) String() string {
	return fmt.Sprintf("graph%v", g.Order())
}
