package console

import (
	"context"
	"sync"
)

// Barrier holds followers back until the leader has registered the console.
// It is a one-shot latch: once released it stays released.
type Barrier struct {
	once sync.Once
	done chan struct{}
}

// NewBarrier returns an unreleased Barrier.
func NewBarrier() *Barrier {
	return &Barrier{done: make(chan struct{})}
}

// Release opens the barrier. Calls after the first are no-ops.
func (b *Barrier) Release() {
	b.once.Do(func() { close(b.done) })
}

// Released reports whether Release has been called.
func (b *Barrier) Released() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the barrier is released or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
