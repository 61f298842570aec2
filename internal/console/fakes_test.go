package console

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
)

var errNoInput = errors.New("no input")

type sentByte struct {
	c       byte
	capsule int
}

// fakeHost is a scripted Host. Queued NoData entries end a drain pass early;
// an empty queue reports NoData, or the configured error if one is set.
type fakeHost struct {
	mu sync.Mutex

	capsule    []TaggedChar
	hypervisor []byte
	local      []byte
	sent       []sentByte

	capsuleErr    error
	hypervisorErr error
	sendErr       error
	registerErr   error

	hypervisorPolls int
	readCalls       int
	registerCalls   int
}

func (h *fakeHost) queueCapsule(id int, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range len(text) {
		h.capsule = append(h.capsule, TaggedChar{Capsule: id, Char: text[i]})
	}
}

func (h *fakeHost) queueHypervisor(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hypervisor = append(h.hypervisor, text...)
}

func (h *fakeHost) PollCapsule() (TaggedChar, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.capsule) == 0 {
		if h.capsuleErr != nil {
			return TaggedChar{}, h.capsuleErr
		}

		return TaggedChar{Char: NoData}, nil
	}

	tc := h.capsule[0]
	h.capsule = h.capsule[1:]

	return tc, nil
}

func (h *fakeHost) PollHypervisor() (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hypervisorPolls++

	if len(h.hypervisor) == 0 {
		if h.hypervisorErr != nil {
			return 0, h.hypervisorErr
		}

		return NoData, nil
	}

	c := h.hypervisor[0]
	h.hypervisor = h.hypervisor[1:]

	return c, nil
}

func (h *fakeHost) ReadLocal(context.Context) (byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.readCalls++

	if len(h.local) == 0 {
		return 0, errNoInput
	}

	c := h.local[0]
	h.local = h.local[1:]

	return c, nil
}

func (h *fakeHost) SendToCapsule(c byte, capsule int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sendErr != nil {
		return h.sendErr
	}

	h.sent = append(h.sent, sentByte{c: c, capsule: capsule})

	return nil
}

func (h *fakeHost) RegisterConsole(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registerCalls++

	return h.registerErr
}

func (h *fakeHost) stats() (readCalls, registerCalls int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.readCalls, h.registerCalls
}

// lockedBuffer is a bytes.Buffer safe for concurrent use.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

// capsuleIDs returns the ids of every capsule buffer in s, in ascending order.
func capsuleIDs(s *Store) []int {
	s.capMu.Lock()
	defer s.capMu.Unlock()

	return slices.Clone(s.ids)
}
