package console

import (
	"io"

	"github.com/musher-dev/capcon/internal/ansi"
)

// Renderer paints the Store onto the terminal.
type Renderer struct {
	store   *Store
	out     io.Writer
	color   bool
	metrics Recorder

	frame []byte
}

// NewRenderer returns a Renderer writing to out. When color is false no
// escape sequences are emitted; text order is unchanged.
func NewRenderer(store *Store, out io.Writer, color bool, metrics Recorder) *Renderer {
	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &Renderer{store: store, out: out, color: color, metrics: metrics}
}

// Draw performs one render pass: it resets display attributes, then drains
// hypervisor output in red followed by each capsule's output in ascending id
// order, each block preceded by its color. The frame is written with a
// single Write. Draw is not safe for concurrent use; only the leader calls
// it.
func (r *Renderer) Draw() error {
	frame := r.frame[:0]

	if r.color {
		frame = append(frame, ansi.Reset...)
	}

	r.store.DrainHypervisor(func(text []byte) {
		if r.color {
			frame = ansi.AppendForeground(frame, ansi.HypervisorColor)
		}

		frame = append(frame, text...)
	})

	r.store.DrainCapsules(func(id int, text []byte) {
		if r.color {
			frame = ansi.AppendForeground(frame, ansi.CapsuleColor(id))
		}

		frame = append(frame, text...)
	})

	r.frame = frame

	if len(frame) == 0 {
		return nil
	}

	if _, err := r.out.Write(frame); err != nil {
		return fatal("render console", ErrTerminal, err)
	}

	r.metrics.ObserveRender(len(frame))

	return nil
}

// Clear moves the cursor to the origin and clears the display.
func (r *Renderer) Clear() error {
	if !r.color {
		return nil
	}

	if _, err := io.WriteString(r.out, ansi.ClearScreen()); err != nil {
		return fatal("clear console", ErrTerminal, err)
	}

	return nil
}
