// Package host implements the console's byte sources on a Unix machine.
//
// Capsules are child processes attached to pseudo-terminals. Hypervisor
// output is the host's own diagnostic stream, optionally extended with a
// tailed file or FIFO. Local input comes from the controlling terminal.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/musher-dev/capcon/internal/console"
)

// DefaultQueueSize is the number of bytes each output queue holds before
// readers block.
const DefaultQueueSize = 64 << 10

var (
	// ErrClosed is returned by polls once the host has shut down.
	ErrClosed = errors.New("host closed")
	// ErrAlreadyRegistered is returned when a second console registers.
	ErrAlreadyRegistered = errors.New("console service already registered")
	// ErrUnknownCapsule is returned when sending to a capsule that is not attached.
	ErrUnknownCapsule = errors.New("unknown capsule")
	// ErrNoInput is returned by ReadLocal when no local input is attached.
	ErrNoInput = errors.New("no local input")
)

// LocalInput supplies locally typed bytes.
type LocalInput interface {
	ReadKey(ctx context.Context) (byte, error)
}

// Options configures a Host.
type Options struct {
	QueueSize int
	Input     LocalInput
	Logger    *slog.Logger
}

// Host multiplexes attached capsules and the hypervisor stream into the
// queues polled by the console.
type Host struct {
	capsuleQ    chan console.TaggedChar
	hypervisorQ chan byte
	closed      chan struct{}
	closeOnce   sync.Once

	mu       sync.Mutex
	capsules map[int]*Capsule

	input      LocalInput
	registered atomic.Bool
	readers    sync.WaitGroup
	logger     *slog.Logger
}

// New returns a Host with no capsules attached.
func New(opts Options) *Host {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Host{
		capsuleQ:    make(chan console.TaggedChar, size),
		hypervisorQ: make(chan byte, size),
		closed:      make(chan struct{}),
		capsules:    make(map[int]*Capsule),
		input:       opts.Input,
		logger:      logger,
	}
}

// RegisterConsole claims the console service slot. Only one console may
// register per host.
func (h *Host) RegisterConsole(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if h.isClosed() {
		return ErrClosed
	}

	if !h.registered.CompareAndSwap(false, true) {
		return ErrAlreadyRegistered
	}

	h.logger.Debug("console service slot claimed")

	return nil
}

// PollCapsule returns the next queued capsule byte, or console.NoData.
func (h *Host) PollCapsule() (console.TaggedChar, error) {
	select {
	case tc := <-h.capsuleQ:
		return tc, nil
	default:
	}

	if h.isClosed() {
		return console.TaggedChar{}, ErrClosed
	}

	return console.TaggedChar{Char: console.NoData}, nil
}

// PollHypervisor returns the next queued hypervisor byte, or console.NoData.
func (h *Host) PollHypervisor() (byte, error) {
	select {
	case c := <-h.hypervisorQ:
		return c, nil
	default:
	}

	if h.isClosed() {
		return 0, ErrClosed
	}

	return console.NoData, nil
}

// ReadLocal reads one locally typed byte.
func (h *Host) ReadLocal(ctx context.Context) (byte, error) {
	if h.input == nil {
		return 0, ErrNoInput
	}

	return h.input.ReadKey(ctx)
}

// SendToCapsule writes c to the capsule's terminal.
func (h *Host) SendToCapsule(c byte, id int) error {
	h.mu.Lock()
	capsule, ok := h.capsules[id]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCapsule, id)
	}

	return capsule.send(c)
}

// Attach registers rw as capsule id and starts copying its output into the
// capsule queue. The host owns rw from now on and closes it on Close.
func (h *Host) Attach(id int, rw io.ReadWriteCloser) (*Capsule, error) {
	return h.attach(id, rw, nil)
}

// attach publishes the capsule with its process already set, so Close always
// sees the process it has to kill.
func (h *Host) attach(id int, rw io.ReadWriteCloser, cmd *exec.Cmd) (*Capsule, error) {
	if id < 0 {
		return nil, fmt.Errorf("capsule id must be non-negative, got %d", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isClosed() {
		return nil, ErrClosed
	}

	if _, exists := h.capsules[id]; exists {
		return nil, fmt.Errorf("capsule %d already attached", id)
	}

	capsule := &Capsule{ID: id, rw: rw, cmd: cmd, done: make(chan struct{})}
	h.capsules[id] = capsule

	h.readers.Go(func() {
		defer close(capsule.done)
		h.pump(rw, func(c byte) bool {
			return h.enqueueCapsule(console.TaggedChar{Capsule: id, Char: c})
		})
	})

	return capsule, nil
}

// Capsule returns the attached capsule with the given id.
func (h *Host) Capsule(id int) (*Capsule, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.capsules[id]

	return c, ok
}

// Close stops every capsule and makes further polls fail with ErrClosed.
func (h *Host) Close() error {
	var errs []error

	h.closeOnce.Do(func() {
		close(h.closed)

		h.mu.Lock()
		capsules := make([]*Capsule, 0, len(h.capsules))
		for _, c := range h.capsules {
			capsules = append(capsules, c)
		}
		h.mu.Unlock()

		for _, c := range capsules {
			if err := c.close(); err != nil {
				errs = append(errs, fmt.Errorf("close capsule %d: %w", c.ID, err))
			}
		}
	})

	return errors.Join(errs...)
}

// Wait blocks until every output reader has stopped.
func (h *Host) Wait() {
	h.readers.Wait()
}

func (h *Host) isClosed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

// pump copies r into the queue one byte at a time until r fails or the host
// closes. NoData bytes are dropped so they cannot be mistaken for an empty
// queue.
func (h *Host) pump(r io.Reader, enqueue func(byte) bool) {
	buf := make([]byte, 4096)

	for {
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			if c == console.NoData {
				continue
			}

			if !enqueue(c) {
				return
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !h.isClosed() {
				h.logger.Debug("output reader stopped", slog.String("error", err.Error()))
			}

			return
		}
	}
}

func (h *Host) enqueueCapsule(tc console.TaggedChar) bool {
	select {
	case h.capsuleQ <- tc:
		return true
	case <-h.closed:
		return false
	}
}

func (h *Host) enqueueHypervisor(c byte) bool {
	select {
	case h.hypervisorQ <- c:
		return true
	case <-h.closed:
		return false
	}
}
