package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/musher-dev/capcon/internal/ansi"
	"github.com/musher-dev/capcon/internal/config"
	"github.com/musher-dev/capcon/internal/console"
	clierrors "github.com/musher-dev/capcon/internal/errors"
	"github.com/musher-dev/capcon/internal/host"
	"github.com/musher-dev/capcon/internal/metrics"
	"github.com/musher-dev/capcon/internal/observability"
	"github.com/musher-dev/capcon/internal/output"
)

// configFlags maps command flags to the configuration keys they override.
var configFlags = map[string]string{
	"workers":           config.KeyWorkers,
	"input-target":      config.KeyInputTarget,
	"idle-interval":     config.KeyIdleInterval,
	"input-timeout":     config.KeyInputTimeout,
	"raw-input":         config.KeyRawInput,
	"color":             config.KeyColor,
	"hypervisor-source": config.KeyHypervisorSource,
	"metrics-addr":      config.KeyMetricsAddr,
}

// bindConfigFlags binds whichever configuration flags cmd defines.
func bindConfigFlags(cfg *config.Config, cmd *cobra.Command) error {
	keys := make(map[string]string)

	for name, key := range configFlags {
		if cmd.Flags().Lookup(name) != nil {
			keys[name] = key
		}
	}

	return cfg.BindFlags(cmd.Flags(), keys)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the system console on this terminal",
		Long: `Start the configured capsules, register the system console and render
their output together with hypervisor diagnostics on this terminal.

Keystrokes go to the input target capsule. With raw input enabled Ctrl-C is
forwarded too; stop the console with SIGTERM (or SIGINT when input is not raw).`,
		Example: `  capcon serve
  capcon serve --workers 4 --input-target 2
  capcon serve --hypervisor-source /run/hv.log --metrics-addr 127.0.0.1:9464`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFrom(cmd.Context()), serveIO{
				in:     os.Stdin,
				out:    os.Stdout,
				status: os.Stderr,
			})
		},
	}

	flags := cmd.Flags()
	flags.Int("workers", config.DefaultWorkers(), "Number of console workers (worker 0 renders)")
	flags.Int("input-target", config.DefaultInputTarget, "Capsule receiving local keystrokes")
	flags.Duration("idle-interval", config.DefaultIdleInterval, "Pause between worker iterations (0 spins)")
	flags.Duration("input-timeout", config.DefaultInputTimeout, "Longest wait for a keystroke per render pass")
	flags.Bool("raw-input", true, "Switch the terminal to raw mode for local input")
	flags.String("color", config.DefaultColorMode, "Escape sequences in rendered output: auto, always, never")
	flags.String("hypervisor-source", "", "File or FIFO tailed into hypervisor output")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// serveIO is the terminal the console runs on.
type serveIO struct {
	in     *os.File
	out    io.Writer
	status io.Writer
}

func runServe(ctx context.Context, cfg *config.Config, tio serveIO) error {
	out := output.FromContext(ctx)
	logger := observability.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return clierrors.ConfigInvalid(err)
	}

	specs, err := cfg.Capsules()
	if err != nil {
		return clierrors.ConfigInvalid(err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdin, err := host.OpenTerminal(tio.in, cfg.RawInput(), cfg.InputTimeout())
	if err != nil {
		return clierrors.InputUnavailable(err)
	}

	h := host.New(host.Options{Input: stdin, Logger: logger})

	colorOn := out.Terminal().ConsoleColor(cfg.ColorMode())

	defer func() {
		_ = h.Close()
		_ = stdin.Restore()

		restoreScreen(tio.out, colorOn)
	}()

	for _, spec := range specs {
		if _, err := h.Start(ctx, spec); err != nil {
			return clierrors.CapsuleStartFailed(spec.ID, err)
		}
	}

	if src := cfg.HypervisorSource(); src != "" {
		if err := h.TailFile(ctx, src); err != nil {
			return clierrors.HypervisorSourceFailed(src, err)
		}
	}

	workers := cfg.Workers()

	m := metrics.New()
	m.Workers.Set(float64(workers))

	// The console owns tio.out, so status lines go elsewhere.
	status := output.NewWriter(tio.status, tio.status, out.Terminal())
	status.Quiet = out.Quiet

	spin := status.Spinner("Registering system console")
	spin.Start()

	svc := console.New(h, tio.out, console.Options{
		InputTarget:  cfg.InputTarget(),
		IdleInterval: cfg.IdleInterval(),
		Color:        colorOn,
		OnRegistered: func(err error) {
			if err != nil {
				spin.StopWithFailure("")
				return
			}

			spin.Stop()
		},
		Logger:  logger,
		Metrics: m,
	})

	logger.Info("console starting",
		slog.Int("console.workers", workers),
		slog.Int("console.input_target", cfg.InputTarget()),
		slog.Int("console.capsules", len(specs)),
		slog.Bool("console.color", colorOn),
		slog.Bool("console.raw_input", stdin.Raw()),
	)

	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.MetricsAddr(); addr != "" {
		g.Go(func() error {
			if err := m.Serve(gctx, addr, logger); err != nil {
				return clierrors.MetricsFailed(addr, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		return svc.Run(gctx, workers)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("console stopped")

	return nil
}

// restoreScreen leaves the terminal usable after the console exits.
func restoreScreen(w io.Writer, colorOn bool) {
	if colorOn {
		fmt.Fprint(w, ansi.Reset+ansi.ShowCursor)
	}

	fmt.Fprint(w, "\r\n")
}
