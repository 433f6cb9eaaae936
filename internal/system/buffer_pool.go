package system

import (
	"image"
	"sync"
	"sync/atomic"
)

// ImagePool переиспользует буферы *image.RGBA одного размера, чтобы
// не нагружать GC при покадровом рендеринге.
type ImagePool struct {
	mu    sync.RWMutex
	pools map[image.Point]*sync.Pool

	gets   atomic.Int64
	allocs atomic.Int64
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

var globalPool = NewImagePool()

// DefaultPool returns the process-wide pool.
func DefaultPool() *ImagePool {
	return globalPool
}

// Get returns a cleared image with bounds (0,0)-size.
func (p *ImagePool) Get(size image.Point) *image.RGBA {
	p.gets.Add(1)
	pool := p.poolFor(size)
	img := pool.Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

// GetDirty returns an image whose pixels are undefined. Callers must
// overwrite every pixel they read.
func (p *ImagePool) GetDirty(size image.Point) *image.RGBA {
	p.gets.Add(1)
	return p.poolFor(size).Get().(*image.RGBA)
}

// Put returns img to the pool. Images whose origin is not (0,0) are
// sub-images and are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	size := img.Rect.Size()
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}

// Stats returns the number of Get calls and how many of them allocated.
func (p *ImagePool) Stats() (gets, allocs int64) {
	return p.gets.Load(), p.allocs.Load()
}

func (p *ImagePool) poolFor(size image.Point) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double check
	if pool, ok = p.pools[size]; ok {
		return pool
	}
	pool = &sync.Pool{
		New: func() any {
			p.allocs.Add(1)
			return image.NewRGBA(image.Rectangle{Max: size})
		},
	}
	p.pools[size] = pool
	return pool
}
