// Package resource holds render-time snapshots of engine objects.
//
// A resource's identity is its ID. The renderer may keep native state keyed
// by ID for as long as the ID is unchanged; in-place updates only bump the
// Version. A new ID is issued only when the owning object's shape changes,
// which the Slot turns into a release-and-rebuild.
package resource

import (
	"image"
	"runtime"
	"sync/atomic"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/system"
)

// ID is an arena-style handle; zero is never issued.
type ID uint64

var lastID atomic.Uint64

func NewID() ID {
	return ID(lastID.Add(1))
}

// Resource is the renderer-facing view of a snapshot.
type Resource interface {
	ID() ID
	Version() uint64
	// Bounds in the resource's local coordinates.
	Bounds() geom.Rect
	Valid() bool
	// Invalidate forces the owning slot to rebuild on next use.
	Invalidate()
	Release()
}

// Updater is a resource that can absorb new parameters. Update returns
// updateOnly=false, without modifying the resource, when the parameters
// need a different shape; the caller then rebuilds.
type Updater[P any] interface {
	Resource
	Update(p P, rc *RenderContext) (updateOnly bool, err error)
}

// RenderContext carries per-renderer facilities to resource builders and
// kernels.
type RenderContext struct {
	Size    image.Point
	Pool    *system.ImagePool
	Workers int
}

func (rc *RenderContext) pool() *system.ImagePool {
	if rc == nil || rc.Pool == nil {
		return system.DefaultPool()
	}
	return rc.Pool
}

func (rc *RenderContext) workers() int {
	if rc == nil || rc.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return rc.Workers
}

// Base implements identity, versioning and validity for concrete
// resources.
type Base struct {
	id       ID
	version  uint64
	invalid  bool
	released bool
}

func newBase() Base {
	return Base{id: NewID(), version: 1}
}

func (b *Base) ID() ID          { return b.id }
func (b *Base) Version() uint64 { return b.version }
func (b *Base) Valid() bool     { return !b.invalid && !b.released }
func (b *Base) Invalidate()     { b.invalid = true }

func (b *Base) touch() {
	b.version++
}

func (b *Base) release() bool {
	if b.released {
		return false
	}
	b.released = true
	return true
}
