package graph

import (
	"fmt"
	"strings"
)

// Node declares one operation in a graph.
type Node struct {
	Key  string
	Type string
	Op   Operation
	// Disabled nodes are skipped; their outputs keep their last value.
	Disabled bool
	// Fingerprint identifies the node's parameters. Two nodes with equal
	// non-empty fingerprints are interchangeable during Reconcile.
	Fingerprint string
}

// Link wires an output socket to an input socket.
type Link struct {
	From       string
	FromSocket string
	To         string
	ToSocket   string
}

func (l Link) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", l.From, l.FromSocket, l.To, l.ToSocket)
}

// Builder accumulates nodes and links. Errors are reported by Build.
type Builder struct {
	nodes []Node
	index map[string]int
	links []Link
	errs  []error
}

func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// AddNode adds an enabled node.
func (b *Builder) AddNode(key, typ string, op Operation) *Builder {
	return b.Add(Node{Key: key, Type: typ, Op: op})
}

func (b *Builder) Add(n Node) *Builder {
	if _, ok := b.index[n.Key]; ok {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, n.Key))
		return b
	}
	b.index[n.Key] = len(b.nodes)
	b.nodes = append(b.nodes, n)
	return b
}

func (b *Builder) Connect(from, fromSocket, to, toSocket string) *Builder {
	b.links = append(b.links, Link{From: from, FromSocket: fromSocket, To: to, ToSocket: toSocket})
	return b
}

// Build validates the declaration and fixes the evaluation order.
// Structural errors are fatal to the graph.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	g := &Graph{byKey: make(map[string]*node, len(b.nodes))}
	for i, nd := range b.nodes {
		if nd.Op == nil {
			return nil, fmt.Errorf("node %s has no operation", nd.Key)
		}
		n := &node{
			Node:      nd,
			idx:       i,
			in:        make(map[string]Link),
			consumers: make(map[string]int),
		}
		n.ctx = &Context{Key: nd.Key, Type: nd.Type, g: g, n: n}
		g.nodes = append(g.nodes, n)
		g.byKey[nd.Key] = n
	}

	succ := make([][]int, len(g.nodes))
	inDegree := make([]int, len(g.nodes))
	for _, l := range b.links {
		from, ok := g.byKey[l.From]
		if !ok {
			return nil, fmt.Errorf("%w: %s in link %s", ErrUnknownNode, l.From, l)
		}
		to, ok := g.byKey[l.To]
		if !ok {
			return nil, fmt.Errorf("%w: %s in link %s", ErrUnknownNode, l.To, l)
		}
		if _, dup := to.in[l.ToSocket]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrInputConnected, l.To, l.ToSocket)
		}
		to.in[l.ToSocket] = l
		from.consumers[l.FromSocket]++
		succ[from.idx] = append(succ[from.idx], to.idx)
		inDegree[to.idx]++
	}

	for _, n := range g.nodes {
		d, ok := n.Op.(InputDeclarer)
		if !ok {
			continue
		}
		for _, s := range d.Inputs() {
			if _, wired := n.in[s.Name]; s.Required && !wired {
				return nil, fmt.Errorf("%w: %s.%s", ErrMissingInput, n.Key, s.Name)
			}
		}
	}

	order, err := topoSort(g.nodes, succ, inDegree)
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topoSort is Kahn's algorithm. Among ready nodes the earliest declared
// goes first, so an unlinked graph evaluates in declaration order.
func topoSort(nodes []*node, succ [][]int, inDegree []int) ([]*node, error) {
	done := make([]bool, len(nodes))
	order := make([]*node, 0, len(nodes))
	for len(order) < len(nodes) {
		next := -1
		for i := range nodes {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, n := range nodes {
				if !done[i] {
					stuck = append(stuck, n.Key)
				}
			}
			return nil, fmt.Errorf("%w among %s", ErrCycleDetected, strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, nodes[next])
		for _, s := range succ[next] {
			inDegree[s]--
		}
	}
	return order, nil
}
