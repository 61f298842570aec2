package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/musher-dev/capcon/internal/observability"
)

// CapsuleSpec describes a capsule process.
type CapsuleSpec struct {
	ID      int      `mapstructure:"id"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Dir     string   `mapstructure:"dir"`
	Env     []string `mapstructure:"env"`
}

// Validate checks that spec can be started.
func (s CapsuleSpec) Validate() error {
	if s.ID < 0 {
		return fmt.Errorf("capsule id must be non-negative, got %d", s.ID)
	}

	if s.Command == "" {
		return fmt.Errorf("capsule %d: command is required", s.ID)
	}

	return nil
}

// Capsule is an attached execution context.
type Capsule struct {
	ID int

	rw     io.ReadWriteCloser
	cmd    *exec.Cmd
	sendMu sync.Mutex
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Done is closed once the capsule's output has been fully read.
func (c *Capsule) Done() <-chan struct{} {
	return c.done
}

func (c *Capsule) send(b byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if _, err := c.rw.Write([]byte{b}); err != nil {
		return fmt.Errorf("send to capsule %d: %w", c.ID, err)
	}

	return nil
}

func (c *Capsule) close() error {
	c.closeOnce.Do(func() {
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}

		if err := c.rw.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			c.closeErr = err
		}
	})

	return c.closeErr
}

// Start launches spec on a new pseudo-terminal and attaches it. When the
// process exits a notice is written to the hypervisor stream.
func (h *Host) Start(ctx context.Context, spec CapsuleSpec) (*Capsule, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, spec.Env...)

	_, span := observability.StartCapsuleRun(ctx, spec.ID, spec.Command)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		err = fmt.Errorf("start capsule %d: %w", spec.ID, err)
		observability.EndCapsuleRun(span, "not started", err)

		return nil, err
	}

	capsule, err := h.attach(spec.ID, ptmx, cmd)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = ptmx.Close()
		_ = cmd.Wait()

		observability.EndCapsuleRun(span, "not attached", err)

		return nil, err
	}

	observability.CapsuleStarted(span, cmd.Process.Pid)

	h.logger.Info("capsule started",
		slog.Int("capsule.id", spec.ID),
		slog.String("capsule.command", spec.Command),
		slog.Int("capsule.pid", cmd.Process.Pid),
	)
	h.Notice("capsule %d started: %s (pid %d)", spec.ID, spec.Command, cmd.Process.Pid)

	go func() {
		waitErr := cmd.Wait()

		status := "exited"
		if waitErr != nil {
			status = waitErr.Error()
		}

		h.logger.Info("capsule stopped", slog.Int("capsule.id", spec.ID), slog.String("capsule.status", status))
		observability.EndCapsuleRun(span, status, waitErr)
		h.Notice("capsule %d stopped: %s", spec.ID, status)
	}()

	return capsule, nil
}
