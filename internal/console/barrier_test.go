package console

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBarrier_ReleaseOnce(t *testing.T) {
	b := NewBarrier()

	if b.Released() {
		t.Fatal("new barrier reports released")
	}

	b.Release()
	b.Release()

	if !b.Released() {
		t.Fatal("barrier not released after Release")
	}

	if err := b.Wait(t.Context()); err != nil {
		t.Fatalf("Wait() after release error = %v", err)
	}
}

func TestBarrier_WaitUnblocksOnRelease(t *testing.T) {
	b := NewBarrier()
	done := make(chan error, 1)

	go func() { done <- b.Wait(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Wait() returned %v before release", err)
	case <-time.After(20 * time.Millisecond):
	}

	b.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after release")
	}
}

func TestBarrier_WaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := NewBarrier().Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}
