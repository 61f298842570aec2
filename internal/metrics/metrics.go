/*
Package metrics exposes console throughput as Prometheus metrics.

	m := metrics.New()
	svc := console.New(host, os.Stdout, console.Options{Metrics: m})
	go m.Serve(ctx, ":9464", logger)

Metrics live in a private registry so tests and multiple services do not
collide on the global one.
*/
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console collectors.
type Metrics struct {
	registry *prometheus.Registry

	GatheredBytes *prometheus.CounterVec
	RenderPasses  prometheus.Counter
	RenderedBytes prometheus.Counter
	RelayedInput  prometheus.Counter
	Workers       prometheus.Gauge
}

// New creates and registers the console collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		GatheredBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capcon_gathered_bytes_total",
				Help: "Bytes gathered from output sources",
			},
			[]string{"source", "capsule"},
		),
		RenderPasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "capcon_render_passes_total",
				Help: "Render passes that wrote to the terminal",
			},
		),
		RenderedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "capcon_rendered_bytes_total",
				Help: "Bytes written to the terminal, escape sequences included",
			},
		),
		RelayedInput: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "capcon_relayed_input_bytes_total",
				Help: "Locally typed bytes delivered to the input capsule",
			},
		),
		Workers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "capcon_workers",
				Help: "Number of console workers",
			},
		),
	}

	registry.MustRegister(
		m.GatheredBytes,
		m.RenderPasses,
		m.RenderedBytes,
		m.RelayedInput,
		m.Workers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCapsuleBytes counts n bytes gathered from capsule id.
func (m *Metrics) ObserveCapsuleBytes(id, n int) {
	m.GatheredBytes.WithLabelValues("capsule", strconv.Itoa(id)).Add(float64(n))
}

// ObserveHypervisorBytes counts n bytes gathered from the hypervisor.
func (m *Metrics) ObserveHypervisorBytes(n int) {
	m.GatheredBytes.WithLabelValues("hypervisor", "").Add(float64(n))
}

// ObserveRender counts one render pass of n bytes.
func (m *Metrics) ObserveRender(n int) {
	m.RenderPasses.Inc()
	m.RenderedBytes.Add(float64(n))
}

// ObserveRelay counts one delivered input byte.
func (m *Metrics) ObserveRelay() {
	m.RelayedInput.Inc()
}

// Registry returns the registry holding the console collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for metrics: %w", err)
	}

	logger.Info("metrics endpoint listening", slog.String("metrics.addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
