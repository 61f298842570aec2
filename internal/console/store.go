package console

import (
	"slices"
	"sync"
)

// Store holds output gathered since the last render. The hypervisor buffer
// and the capsule buffers are guarded by separate locks; each lock is held
// only for a single append or drain and never across a host call.
type Store struct {
	hvMu       sync.Mutex
	hypervisor []byte

	capMu    sync.Mutex
	capsules map[int][]byte
	ids      []int // ascending
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{capsules: make(map[int][]byte)}
}

// AppendCapsule appends c to the buffer for capsule id, creating the buffer
// on first use.
func (s *Store) AppendCapsule(id int, c byte) {
	s.capMu.Lock()
	defer s.capMu.Unlock()

	buf, ok := s.capsules[id]
	if !ok {
		pos, _ := slices.BinarySearch(s.ids, id)
		s.ids = slices.Insert(s.ids, pos, id)
	}

	s.capsules[id] = append(buf, c)
}

// AppendHypervisor appends c to the hypervisor buffer.
func (s *Store) AppendHypervisor(c byte) {
	s.hvMu.Lock()
	defer s.hvMu.Unlock()

	s.hypervisor = append(s.hypervisor, c)
}

// DrainHypervisor passes the pending hypervisor output to fn and empties the
// buffer. fn is not called when the buffer is empty. fn runs under the
// buffer lock and must not retain text or block.
func (s *Store) DrainHypervisor(fn func(text []byte)) {
	s.hvMu.Lock()
	defer s.hvMu.Unlock()

	if len(s.hypervisor) == 0 {
		return
	}

	fn(s.hypervisor)
	s.hypervisor = s.hypervisor[:0]
}

// DrainCapsules passes each non-empty capsule buffer to fn in ascending id
// order and empties it. The same restrictions as DrainHypervisor apply to fn.
func (s *Store) DrainCapsules(fn func(id int, text []byte)) {
	s.capMu.Lock()
	defer s.capMu.Unlock()

	for _, id := range s.ids {
		buf := s.capsules[id]
		if len(buf) == 0 {
			continue
		}

		fn(id, buf)
		s.capsules[id] = buf[:0]
	}
}

// HypervisorText returns a copy of the pending hypervisor output.
func (s *Store) HypervisorText() string {
	s.hvMu.Lock()
	defer s.hvMu.Unlock()

	return string(s.hypervisor)
}

// CapsuleText returns a copy of the pending output for capsule id.
func (s *Store) CapsuleText(id int) string {
	s.capMu.Lock()
	defer s.capMu.Unlock()

	return string(s.capsules[id])
}
