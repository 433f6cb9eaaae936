package graph

import (
	"maps"
	"reflect"
)

// ReconcileStats reports what a structural change did to node contexts.
type ReconcileStats struct {
	Kept     int // contexts moved to the new graph
	Released int // old contexts torn down
	Fresh    int // new nodes that will initialize on first use
}

// Reconcile moves live contexts from old into next for nodes that did not
// change, and tears down the rest of old. A node is unchanged when its key,
// type, parameters and incoming links match. Kept nodes keep the old
// operation value so their state stays paired with the code that built it.
// Only the changed subgraph goes through Uninitialize/Initialize.
func Reconcile(old, next *Graph, args *EvalArgs) ReconcileStats {
	var st ReconcileStats
	moved := make(map[string]bool)
	if old != nil {
		for _, n := range next.nodes {
			o, ok := old.byKey[n.Key]
			if !ok || !o.ctx.initialized || !sameNode(o, n) {
				continue
			}
			n.Op = o.Op
			c, oc := n.ctx, o.ctx
			c.State, c.outputs, c.initialized = oc.State, oc.outputs, true
			c.drawables, c.audio, c.failures = oc.drawables, oc.audio, oc.failures
			*oc = Context{Key: oc.Key, Type: oc.Type, g: old, n: o}
			moved[n.Key] = true
			st.Kept++
		}
		for i := len(old.order) - 1; i >= 0; i-- {
			o := old.order[i]
			if moved[o.Key] || !o.ctx.initialized {
				continue
			}
			old.uninitNode(o, args)
			st.Released++
		}
	}
	st.Fresh = len(next.nodes) - st.Kept
	args.logger().Debug("Graph reconciled",
		"layer", args.layer(), "kept", st.Kept, "released", st.Released, "fresh", st.Fresh)
	return st
}

func sameNode(a, b *node) bool {
	if a.Type != b.Type || a.Disabled != b.Disabled || !maps.Equal(a.in, b.in) {
		return false
	}
	if a.Fingerprint != "" || b.Fingerprint != "" {
		return a.Fingerprint == b.Fingerprint
	}
	return sameOperation(a.Op, b.Op)
}

// sameOperation compares operation identity without panicking on
// uncomparable dynamic types.
func sameOperation(a, b Operation) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Pointer {
		return va.Pointer() == vb.Pointer()
	}
	return va.Comparable() && va.Equal(vb)
}
