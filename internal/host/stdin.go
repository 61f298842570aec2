package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

// DefaultInputTimeout bounds how long ReadKey waits for a keystroke so the
// leader keeps rendering while nobody types.
const DefaultInputTimeout = 20 * time.Millisecond

// ErrInputTimeout is returned when no byte arrived within the timeout.
var ErrInputTimeout = errors.New("no local input within timeout")

// Terminal reads local keystrokes from a file, usually os.Stdin. When the
// file is a terminal it is switched to raw mode so every keystroke,
// including control characters, reaches the target capsule unprocessed.
type Terminal struct {
	f       *os.File
	state   *term.State
	timeout time.Duration

	bytes chan byte
	err   chan error
}

// OpenTerminal starts reading f. raw requests raw mode when f is a terminal.
func OpenTerminal(f *os.File, raw bool, timeout time.Duration) (*Terminal, error) {
	if timeout <= 0 {
		timeout = DefaultInputTimeout
	}

	t := &Terminal{
		f:       f,
		timeout: timeout,
		bytes:   make(chan byte, 256),
		err:     make(chan error, 1),
	}

	fd := int(f.Fd())
	if raw && term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("enable raw input: %w", err)
		}

		t.state = state
	}

	go t.read()

	return t, nil
}

func (t *Terminal) read() {
	buf := make([]byte, 256)

	for {
		n, err := t.f.Read(buf)
		for _, c := range buf[:n] {
			t.bytes <- c
		}

		if err != nil {
			t.err <- err

			return
		}
	}
}

// ReadKey waits up to the configured timeout for one byte.
func (t *Terminal) ReadKey(ctx context.Context) (byte, error) {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case c := <-t.bytes:
		return c, nil
	case err := <-t.err:
		// Keep reporting the failure to later callers, but hand out any
		// bytes read before it first.
		t.err <- err

		select {
		case c := <-t.bytes:
			return c, nil
		default:
			return 0, err
		}
	case <-timer.C:
		return 0, ErrInputTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Raw reports whether the terminal was switched to raw mode.
func (t *Terminal) Raw() bool {
	return t.state != nil
}

// Restore returns the terminal to the mode it had before OpenTerminal.
func (t *Terminal) Restore() error {
	if t.state == nil {
		return nil
	}

	if err := term.Restore(int(t.f.Fd()), t.state); err != nil {
		return fmt.Errorf("restore terminal: %w", err)
	}

	t.state = nil

	return nil
}
