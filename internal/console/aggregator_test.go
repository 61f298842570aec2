package console

import (
	"errors"
	"testing"
)

func TestGather_SplitsOutputBySource(t *testing.T) {
	host := &fakeHost{}
	host.capsule = []TaggedChar{
		{Capsule: 2, Char: 'h'},
		{Capsule: 5, Char: 'w'},
		{Capsule: 2, Char: 'i'},
		{Capsule: 5, Char: 'o'},
		{Capsule: 0, Char: '!'},
	}
	host.queueHypervisor("hv")

	store := NewStore()
	if err := NewAggregator(host, store, nil).Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	tests := []struct {
		id   int
		want string
	}{
		{id: 0, want: "!"},
		{id: 2, want: "hi"},
		{id: 5, want: "wo"},
	}

	for _, tt := range tests {
		if got := store.CapsuleText(tt.id); got != tt.want {
			t.Errorf("capsule %d = %q, want %q", tt.id, got, tt.want)
		}
	}

	if got := store.HypervisorText(); got != "hv" {
		t.Errorf("hypervisor = %q, want %q", got, "hv")
	}
}

func TestGather_StopsAtSentinelWithoutAppending(t *testing.T) {
	host := &fakeHost{}
	host.capsule = []TaggedChar{
		{Capsule: 1, Char: 'a'},
		{Capsule: 1, Char: NoData},
		{Capsule: 1, Char: 'b'},
	}
	host.hypervisor = []byte{'x', NoData, 'y'}

	store := NewStore()
	agg := NewAggregator(host, store, nil)

	if err := agg.Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	if got := store.CapsuleText(1); got != "a" {
		t.Fatalf("capsule 1 after first pass = %q, want %q", got, "a")
	}

	if got := store.HypervisorText(); got != "x" {
		t.Fatalf("hypervisor after first pass = %q, want %q", got, "x")
	}

	if err := agg.Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	if got := store.CapsuleText(1); got != "ab" {
		t.Fatalf("capsule 1 after second pass = %q, want %q", got, "ab")
	}

	if got := store.HypervisorText(); got != "xy" {
		t.Fatalf("hypervisor after second pass = %q, want %q", got, "xy")
	}
}

func TestGather_CapsuleErrorIsFatal(t *testing.T) {
	hostErr := errors.New("bad capsule id")
	host := &fakeHost{capsuleErr: hostErr}
	host.queueCapsule(3, "ok")
	host.queueHypervisor("never")

	store := NewStore()

	err := NewAggregator(host, store, nil).Gather()
	if err == nil {
		t.Fatal("Gather() error = nil, want fatal error")
	}

	if !IsFatal(err) {
		t.Fatalf("error %v is not a FatalError", err)
	}

	if !errors.Is(err, ErrCapsuleSource) || !errors.Is(err, hostErr) {
		t.Fatalf("error %v should wrap ErrCapsuleSource and the host error", err)
	}

	if got := store.CapsuleText(3); got != "ok" {
		t.Fatalf("bytes gathered before the error were lost: %q", got)
	}

	if host.hypervisorPolls != 0 {
		t.Fatalf("hypervisor polled %d times after capsule failure", host.hypervisorPolls)
	}
}

func TestGather_HypervisorErrorIsFatal(t *testing.T) {
	host := &fakeHost{hypervisorErr: errors.New("denied")}

	err := NewAggregator(host, NewStore(), nil).Gather()
	if !errors.Is(err, ErrHypervisorSource) {
		t.Fatalf("Gather() error = %v, want ErrHypervisorSource", err)
	}
}

func TestGather_RecordsCounts(t *testing.T) {
	host := &fakeHost{}
	host.queueCapsule(4, "abc")
	host.queueCapsule(1, "z")
	host.queueHypervisor("hv")

	rec := &countingRecorder{capsules: map[int]int{}}

	if err := NewAggregator(host, NewStore(), rec).Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	if rec.capsules[4] != 3 || rec.capsules[1] != 1 {
		t.Fatalf("capsule counts = %v", rec.capsules)
	}

	if rec.hypervisor != 2 {
		t.Fatalf("hypervisor count = %d, want 2", rec.hypervisor)
	}
}

type countingRecorder struct {
	capsules   map[int]int
	hypervisor int
	renders    int
	relays     int
}

func (r *countingRecorder) ObserveCapsuleBytes(id, n int) { r.capsules[id] += n }
func (r *countingRecorder) ObserveHypervisorBytes(n int)  { r.hypervisor += n }
func (r *countingRecorder) ObserveRender(int)             { r.renders++ }
func (r *countingRecorder) ObserveRelay()                 { r.relays++ }

func TestGather_RejectsNegativeCapsuleID(t *testing.T) {
	host := &fakeHost{}
	host.capsule = []TaggedChar{{Capsule: -3, Char: 'x'}}

	store := NewStore()

	err := NewAggregator(host, store, nil).Gather()
	if !errors.Is(err, ErrCapsuleSource) {
		t.Fatalf("Gather() error = %v, want ErrCapsuleSource", err)
	}

	if got := capsuleIDs(store); len(got) != 0 {
		t.Fatalf("negative id reached the store: %v", got)
	}
}

func TestGather_SkipsPhaseAnotherWorkerIsDraining(t *testing.T) {
	host := &fakeHost{}
	host.queueCapsule(1, "ab")
	host.queueHypervisor("hv")

	store := NewStore()
	agg := NewAggregator(host, store, nil)

	agg.capDrain.Lock()

	if err := agg.Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	if got := store.CapsuleText(1); got != "" {
		t.Fatalf("capsule phase ran while held elsewhere: %q", got)
	}

	if got := store.HypervisorText(); got != "hv" {
		t.Fatalf("hypervisor = %q, want %q", got, "hv")
	}

	agg.capDrain.Unlock()

	if err := agg.Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	if got := store.CapsuleText(1); got != "ab" {
		t.Fatalf("capsule 1 = %q, want %q", got, "ab")
	}
}
