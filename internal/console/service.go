package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/musher-dev/capcon/internal/observability"
)

// LeaderID is the worker id that registers the console, relays input and
// renders.
const LeaderID = 0

// RegisteredMessage is printed once the console service is registered.
const RegisteredMessage = "System console user interface registered"

// Options configures a Service.
type Options struct {
	// InputTarget is the capsule receiving local keystrokes.
	InputTarget int
	// IdleInterval pauses each worker between iterations. Zero spins.
	IdleInterval time.Duration
	// Color enables escape sequences in rendered output.
	Color bool
	// OnRegistered, if set, is called by the leader with the result of
	// registration before the screen is cleared.
	OnRegistered func(error)
	Logger       *slog.Logger
	Metrics      Recorder
}

// Service runs the console workers against a Host.
type Service struct {
	host     Host
	out      io.Writer
	store    *Store
	agg      *Aggregator
	renderer *Renderer
	relay    *Relay
	barrier  *Barrier
	idle     time.Duration
	onReg    func(error)
	logger   *slog.Logger
}

// New returns a Service that renders to out.
func New(host Host, out io.Writer, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}

	store := NewStore()

	return &Service{
		host:     host,
		out:      out,
		store:    store,
		agg:      NewAggregator(host, store, metrics),
		renderer: NewRenderer(store, out, opts.Color, metrics),
		relay:    NewRelay(host, opts.InputTarget, logger, metrics),
		barrier:  NewBarrier(),
		idle:     opts.IdleInterval,
		onReg:    opts.OnRegistered,
		logger:   logger,
	}
}

// Store returns the shared output store.
func (s *Service) Store() *Store {
	return s.store
}

// Barrier returns the startup barrier.
func (s *Service) Barrier() *Barrier {
	return s.barrier
}

// Run starts workers goroutines with ids 0..workers-1 and blocks until ctx
// is canceled or a worker fails. The first *FatalError is returned and every
// other worker is stopped.
func (s *Service) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		return fmt.Errorf("console needs at least one worker, got %d", workers)
	}

	g, gctx := errgroup.WithContext(ctx)

	for tid := range workers {
		g.Go(func() error {
			return s.RunWorker(gctx, tid)
		})
	}

	return g.Wait()
}

// RunWorker runs the main loop for worker tid. The leader registers the
// console first; followers wait for it. The loop only ends when ctx is done
// (returning nil) or on a fatal host error.
func (s *Service) RunWorker(ctx context.Context, tid int) error {
	logger := s.logger.With(slog.Int("worker.id", tid))

	if tid == LeaderID {
		if err := s.startLeader(ctx, logger); err != nil {
			return s.fail(ctx, logger, tid, err)
		}
	} else if err := s.barrier.Wait(ctx); err != nil {
		return nil
	}

	logger.Debug("console worker started", slog.Bool("leader", tid == LeaderID))

	var tick <-chan time.Time

	if s.idle > 0 {
		ticker := time.NewTicker(s.idle)
		defer ticker.Stop()

		tick = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := s.agg.Gather(); err != nil {
			return s.fail(ctx, logger, tid, err)
		}

		if tid == LeaderID {
			s.relay.RelayInput(ctx)

			if err := s.renderer.Draw(); err != nil {
				return s.fail(ctx, logger, tid, err)
			}
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}

func (s *Service) startLeader(ctx context.Context, logger *slog.Logger) error {
	ctx, span := observability.Tracer(observability.ConsoleTracer).Start(ctx, "console.register")
	defer span.End()

	err := s.host.RegisterConsole(ctx)

	if s.onReg != nil {
		s.onReg(err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")

		return fatal("register console", ErrRegistration, err)
	}

	if err := s.renderer.Clear(); err != nil {
		return err
	}

	if _, err := io.WriteString(s.out, RegisteredMessage+"\r\n"); err != nil {
		return fatal("announce console", ErrTerminal, err)
	}

	span.SetAttributes(attribute.Int("console.input_target", s.relay.Target()))
	logger.Info("console service registered", slog.Int("console.input_target", s.relay.Target()))

	s.barrier.Release()

	return nil
}

func (s *Service) fail(ctx context.Context, logger *slog.Logger, tid int, err error) error {
	var fe *FatalError
	if errors.As(err, &fe) {
		fe.Worker = tid
		observability.RecordWorkerFatal(context.WithoutCancel(ctx), tid, fe.Op, fe.Kind, fe.Err)
	}

	logger.Error("console worker stopped", slog.String("error", err.Error()))

	return err
}
