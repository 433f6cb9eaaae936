package graph

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	ErrCycleDetected      = errors.New("cycle detected")
	ErrMissingInput       = errors.New("required input not connected")
	ErrInputConnected     = errors.New("input already connected")
	ErrUnknownNode        = errors.New("unknown node")
	ErrUnknownType        = errors.New("unknown operation type")
	ErrDuplicateNode      = errors.New("duplicate node")
	ErrDuplicateType      = errors.New("operation type already registered")
	ErrAlreadyInitialized = errors.New("node already initialized")
)

// NodeError is a failure of one node during a lifecycle call.
type NodeError struct {
	Layer string
	Node  string
	Type  string
	Err   error
}

func (e *NodeError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("node %s (%s): %v", e.Node, e.Type, e.Err)
	}
	return fmt.Sprintf("layer %s node %s (%s): %v", e.Layer, e.Node, e.Type, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// PanicError carries a panic recovered from an operation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
