package console

import (
	"fmt"
	"sync"
)

// Aggregator drains the host's output sources into a Store. Each source is
// drained by at most one worker at a time, so a poll and the append that
// follows it are never interleaved with another worker's and every buffer
// keeps arrival order.
type Aggregator struct {
	src     Sources
	store   *Store
	metrics Recorder

	capDrain sync.Mutex
	hvDrain  sync.Mutex
}

// NewAggregator returns an Aggregator that drains src into store.
func NewAggregator(src Sources, store *Store, metrics Recorder) *Aggregator {
	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &Aggregator{src: src, store: store, metrics: metrics}
}

// Gather drains everything currently queued: capsule output first, then
// hypervisor output. It never blocks: a phase another worker is already
// draining is skipped. A poll error is returned as a *FatalError and leaves
// already gathered bytes in the Store.
func (a *Aggregator) Gather() error {
	if err := a.gatherCapsules(); err != nil {
		return err
	}

	return a.gatherHypervisor()
}

func (a *Aggregator) gatherCapsules() error {
	if !a.capDrain.TryLock() {
		return nil
	}
	defer a.capDrain.Unlock()

	var counts map[int]int

	defer func() {
		for id, n := range counts {
			a.metrics.ObserveCapsuleBytes(id, n)
		}
	}()

	for {
		tc, err := a.src.PollCapsule()
		if err != nil {
			return fatal("gather capsule output", ErrCapsuleSource, err)
		}

		if tc.Char == NoData {
			return nil
		}

		if tc.Capsule < 0 {
			return fatal("gather capsule output", ErrCapsuleSource,
				fmt.Errorf("negative capsule id %d", tc.Capsule))
		}

		a.store.AppendCapsule(tc.Capsule, tc.Char)

		if counts == nil {
			counts = make(map[int]int)
		}

		counts[tc.Capsule]++
	}
}

func (a *Aggregator) gatherHypervisor() error {
	if !a.hvDrain.TryLock() {
		return nil
	}
	defer a.hvDrain.Unlock()

	n := 0

	defer func() {
		if n > 0 {
			a.metrics.ObserveHypervisorBytes(n)
		}
	}()

	for {
		c, err := a.src.PollHypervisor()
		if err != nil {
			return fatal("gather hypervisor output", ErrHypervisorSource, err)
		}

		if c == NoData {
			return nil
		}

		a.store.AppendHypervisor(c)
		n++
	}
}
