package console

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/musher-dev/capcon/internal/testutil"
)

func TestDraw_Scenario(t *testing.T) {
	host := &fakeHost{}
	host.queueCapsule(7, "ok")
	host.queueHypervisor("boot")
	host.queueCapsule(1, "x")

	store := NewStore()
	if err := NewAggregator(host, store, nil).Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var out bytes.Buffer
	if err := NewRenderer(store, &out, true, nil).Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	testutil.AssertGolden(t, out.String(), "render_scenario.golden")

	for _, id := range []int{1, 7} {
		if got := store.CapsuleText(id); got != "" {
			t.Errorf("capsule %d not drained: %q", id, got)
		}
	}

	if got := store.HypervisorText(); got != "" {
		t.Errorf("hypervisor not drained: %q", got)
	}
}

func TestDraw_ResetEveryPass(t *testing.T) {
	var out bytes.Buffer

	r := NewRenderer(NewStore(), &out, true, nil)

	for range 3 {
		if err := r.Draw(); err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
	}

	if got, want := out.String(), strings.Repeat("\x1b[0m", 3); got != want {
		t.Fatalf("empty passes wrote %q, want %q", got, want)
	}
}

func TestDraw_OneColorPerBuffer(t *testing.T) {
	store := NewStore()
	for _, c := range []byte("hello") {
		store.AppendCapsule(2, c)
	}

	var out bytes.Buffer
	if err := NewRenderer(store, &out, true, nil).Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	if got, want := out.String(), "\x1b[0m\x1b[1;34mhello"; got != want {
		t.Fatalf("Draw() wrote %q, want %q", got, want)
	}
}

func TestDraw_CarriesLaterOutputToNextPass(t *testing.T) {
	store := NewStore()
	store.AppendCapsule(1, 'a')
	store.AppendCapsule(4, 'b')

	var out bytes.Buffer

	r := NewRenderer(store, &out, true, nil)
	if err := r.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	out.Reset()
	store.AppendCapsule(4, 'c')
	store.AppendHypervisor('h')

	if err := r.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	if got, want := out.String(), "\x1b[0m\x1b[1;31mh\x1b[1;36mc"; got != want {
		t.Fatalf("second pass wrote %q, want %q", got, want)
	}
}

func TestDraw_CapsuleOrderIgnoresArrival(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	ids := []int{0, 1, 3, 6, 12, 13, 40, 41, 99}
	host := &fakeHost{}

	// Interleave one byte per capsule per round in a shuffled order.
	for round := range 3 {
		order := slices.Clone(ids)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, id := range order {
			host.queueCapsule(id, strconv.Itoa(round))
		}
	}

	for _, id := range ids {
		host.queueCapsule(id, fmt.Sprintf(":%d|", id))
	}

	store := NewStore()
	if err := NewAggregator(host, store, nil).Gather(); err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var out bytes.Buffer
	if err := NewRenderer(store, &out, true, nil).Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	blocks := strings.Split(strings.TrimSuffix(ansi.Strip(out.String()), "|"), "|")
	if len(blocks) != len(ids) {
		t.Fatalf("got %d blocks, want %d: %q", len(blocks), len(ids), blocks)
	}

	for i, block := range blocks {
		want := fmt.Sprintf("012:%d", ids[i])
		if block != want {
			t.Errorf("block %d = %q, want %q", i, block, want)
		}
	}
}

func TestDraw_NoColor(t *testing.T) {
	store := NewStore()
	store.AppendCapsule(3, 'c')
	store.AppendHypervisor('h')

	var out bytes.Buffer

	r := NewRenderer(store, &out, false, nil)
	if err := r.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	if got := out.String(); got != "hc" {
		t.Fatalf("Draw() wrote %q, want %q", got, "hc")
	}

	if err := r.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if got := out.String(); got != "hc" {
		t.Fatalf("Clear() without color wrote escape sequences: %q", got)
	}
}

func TestDraw_WriteErrorIsFatal(t *testing.T) {
	writeErr := errors.New("broken pipe")
	store := NewStore()
	store.AppendHypervisor('h')

	err := NewRenderer(store, failingWriter{err: writeErr}, true, nil).Draw()
	if !errors.Is(err, ErrTerminal) || !errors.Is(err, writeErr) {
		t.Fatalf("Draw() error = %v, want ErrTerminal wrapping %v", err, writeErr)
	}
}

func TestDraw_RecordsRender(t *testing.T) {
	store := NewStore()
	store.AppendHypervisor('h')

	rec := &countingRecorder{capsules: map[int]int{}}

	var out bytes.Buffer
	if err := NewRenderer(store, &out, false, rec).Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	if err := NewRenderer(store, &out, false, rec).Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	if rec.renders != 1 {
		t.Fatalf("renders = %d, want 1 (empty plain pass writes nothing)", rec.renders)
	}
}
