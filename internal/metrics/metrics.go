// Package metrics exposes renderer counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivlev/compositor/internal/system"
)

const namespace = "compositor"

// Metrics is safe to use as a nil pointer; every recorder is a no-op then.
type Metrics struct {
	Registry *prometheus.Registry

	framesRendered prometheus.Counter
	renderSeconds  prometheus.Histogram
	nodeFailures   *prometheus.CounterVec
	dirtyRatio     prometheus.Gauge
	activeLayers   prometheus.Gauge
	skippedRenders prometheus.Counter
}

func New(pool *system.ImagePool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		framesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rendered_total",
			Help:      "Frames produced by Render",
		}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Wall time of one Render call",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		nodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_failures_total",
			Help:      "Node lifecycle failures by operation type",
		}, []string{"type"}),
		dirtyRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dirty_area_ratio",
			Help:      "Share of the frame redrawn by the last render",
		}),
		activeLayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_layers",
			Help:      "Layers in the current set of the last render",
		}),
		skippedRenders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_renders_total",
			Help:      "Render calls answered with the previous frame because a render was in flight",
		}),
	}
	m.Registry.MustRegister(
		m.framesRendered,
		m.renderSeconds,
		m.nodeFailures,
		m.dirtyRatio,
		m.activeLayers,
		m.skippedRenders,
		newProcessCollector(pool),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveFrame(elapsed time.Duration, dirtyRatio float64, active int) {
	if m == nil {
		return
	}
	m.framesRendered.Inc()
	m.renderSeconds.Observe(elapsed.Seconds())
	m.dirtyRatio.Set(dirtyRatio)
	m.activeLayers.Set(float64(active))
}

func (m *Metrics) NodeFailed(opType string) {
	if m == nil {
		return
	}
	m.nodeFailures.WithLabelValues(opType).Inc()
}

func (m *Metrics) RenderSkipped() {
	if m == nil {
		return
	}
	m.skippedRenders.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
