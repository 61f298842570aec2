package host

import (
	"context"
	"fmt"
	"io"
	"os"
)

// hypervisorWriter feeds written bytes into the hypervisor queue.
type hypervisorWriter struct{ h *Host }

func (w hypervisorWriter) Write(p []byte) (int, error) {
	for i, c := range p {
		if !w.h.enqueueHypervisor(c) {
			return i, ErrClosed
		}
	}

	return len(p), nil
}

// Hypervisor returns a writer whose output is shown as hypervisor output.
// Writes block while the queue is full.
func (h *Host) Hypervisor() io.Writer {
	return hypervisorWriter{h: h}
}

// Notice writes one formatted line to the hypervisor stream. The console
// runs with the terminal in raw mode, so lines end in CRLF.
func (h *Host) Notice(format string, args ...any) {
	if h.isClosed() {
		return
	}

	_, _ = fmt.Fprintf(h.Hypervisor(), format+"\r\n", args...)
}

// Tail copies r into the hypervisor stream until r is exhausted, ctx is
// done, or the host closes.
func (h *Host) Tail(ctx context.Context, r io.Reader) {
	h.readers.Go(func() {
		stop := context.AfterFunc(ctx, func() {
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
		})
		defer stop()

		h.pump(r, h.enqueueHypervisor)
	})
}

// TailFile opens path (a regular file or FIFO) and tails it into the
// hypervisor stream. Opening a FIFO blocks until a writer connects.
func (h *Host) TailFile(ctx context.Context, path string) error {
	f, err := os.Open(path) //nolint:gosec // operator-configured path
	if err != nil {
		return fmt.Errorf("open hypervisor source: %w", err)
	}

	h.Tail(ctx, f)

	return nil
}
