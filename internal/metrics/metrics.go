// Package metrics exposes viewer counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "meshview"

// Metrics holds the viewer collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	Commands      *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	ApplySeconds  *prometheus.HistogramVec
	Loads         *prometheus.CounterVec
	Frames        prometheus.Counter
	Events        *prometheus.CounterVec
	PendingLoads  prometheus.Gauge
	ControlsCount prometheus.Gauge
}

// New registers the viewer collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands applied, by type.",
		}, []string{"type"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_failures_total",
			Help:      "Commands that failed to decode or apply, by type.",
		}, []string{"type"}),
		ApplySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_apply_seconds",
			Help:      "Time spent applying one command.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"type"}),
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Asynchronous loads completed, by kind and result.",
		}, []string{"kind", "result"}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Frames rendered.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_sent_total",
			Help:      "Events sent back to the command sender, by type.",
		}, []string{"type"}),
		PendingLoads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_loads",
			Help:      "Loads in flight.",
		}),
		ControlsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "controls",
			Help:      "User controls currently defined.",
		}),
	}
	m.Registry.MustRegister(
		m.Commands, m.Failures, m.ApplySeconds, m.Loads,
		m.Frames, m.Events, m.PendingLoads, m.ControlsCount,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one applied command.
func (m *Metrics) Observe(kind string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind).Inc()
	m.ApplySeconds.WithLabelValues(kind).Observe(took.Seconds())
	if err != nil {
		m.Failures.WithLabelValues(kind).Inc()
	}
}

// Failed records a message that never reached apply.
func (m *Metrics) Failed(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

// Load records a finished load.
func (m *Metrics) Load(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Loads.WithLabelValues(kind, result).Inc()
}

// Frame records a rendered frame.
func (m *Metrics) Frame() {
	if m == nil {
		return
	}
	m.Frames.Inc()
}

// Event records an outbound event.
func (m *Metrics) Event(typ string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(typ).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Serve runs the /metrics endpoint on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info("serving metrics", zap.String("listen", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
