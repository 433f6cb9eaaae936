package compositor

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

var ErrClosed = errors.New("compositor closed")

// Thread runs submitted work on one goroutine locked to one OS thread.
// Native resources created by nodes are only ever touched from there; calls
// made from other goroutines are redirected onto it and wait for the
// result.
type Thread struct {
	calls   chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewThread() *Thread {
	t := &Thread{
		calls:   make(chan func()),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *Thread) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.stopped)
	for {
		select {
		case fn := <-t.calls:
			fn()
		case <-t.done:
			return
		}
	}
}

// Do runs fn on the thread and waits for it. ctx only bounds the wait for
// the thread to pick the call up; once fn starts it runs to completion.
func (t *Thread) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	call := func() {
		defer close(finished)
		fn()
	}
	select {
	case t.calls <- call:
	case <-t.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Close stops the thread after the call in progress, if any.
func (t *Thread) Close() {
	t.once.Do(func() { close(t.done) })
	<-t.stopped
}
