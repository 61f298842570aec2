package console

import (
	"context"
	"log/slog"
)

// DefaultInputTarget is the capsule that receives local keystrokes unless
// configured otherwise.
const DefaultInputTarget = 1

// Relay forwards locally typed bytes to a single capsule.
type Relay struct {
	in      Input
	target  int
	logger  *slog.Logger
	metrics Recorder
}

// NewRelay returns a Relay forwarding to the target capsule.
func NewRelay(in Input, target int, logger *slog.Logger, metrics Recorder) *Relay {
	if logger == nil {
		logger = slog.Default()
	}

	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &Relay{in: in, target: target, logger: logger, metrics: metrics}
}

// Target returns the capsule id receiving input.
func (r *Relay) Target() int {
	return r.target
}

// RelayInput reads one local byte and forwards it to the target capsule. A
// failed read is expected when nobody is typing and is skipped silently.
// Delivery is best effort. It reports whether a byte was read.
func (r *Relay) RelayInput(ctx context.Context) bool {
	c, err := r.in.ReadLocal(ctx)
	if err != nil {
		return false
	}

	if err := r.in.SendToCapsule(c, r.target); err != nil {
		r.logger.Debug("input delivery failed",
			slog.Int("capsule.id", r.target),
			slog.String("error", err.Error()),
		)

		return true
	}

	r.metrics.ObserveRelay()

	return true
}
