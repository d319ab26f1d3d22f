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

// LedgerMetrics holds the Prometheus collectors for ledger operations.
// A nil *LedgerMetrics is valid and records nothing.
type LedgerMetrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	copyTradesCreated prometheus.Counter
	copyTradesSkipped *prometheus.CounterVec
	snapshotsScanned  prometheus.Counter
	snapshotsRemoved  prometheus.Counter
	mirrorFailures    prometheus.Counter
}

func New(namespace string) *LedgerMetrics {
	registry := prometheus.NewRegistry()

	m := &LedgerMetrics{
		registry: registry,

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by outcome code",
		}, []string{"operation", "code"}),

		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),

		copyTradesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_trades_created_total",
			Help:      "Copy trades created by leader trade fan-out",
		}),

		copyTradesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_trades_skipped_total",
			Help:      "Followers skipped during fan-out by reason",
		}, []string{"reason"}),

		snapshotsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_scanned_total",
			Help:      "Portfolio snapshots examined by compaction",
		}),

		snapshotsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_removed_total",
			Help:      "Portfolio snapshots deleted by compaction",
		}),

		mirrorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_failures_total",
			Help:      "Approved transactions that could not be mirrored to the external ledger",
		}),
	}

	registry.MustRegister(
		m.operations,
		m.operationLatency,
		m.copyTradesCreated,
		m.copyTradesSkipped,
		m.snapshotsScanned,
		m.snapshotsRemoved,
		m.mirrorFailures,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveOperation records one finished operation
func (m *LedgerMetrics) ObserveOperation(operation, code string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, code).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *LedgerMetrics) RecordFanOut(created, skippedRatio, skippedQuantity int) {
	if m == nil {
		return
	}
	m.copyTradesCreated.Add(float64(created))
	m.copyTradesSkipped.WithLabelValues("non_positive_ratio").Add(float64(skippedRatio))
	m.copyTradesSkipped.WithLabelValues("zero_quantity").Add(float64(skippedQuantity))
}

func (m *LedgerMetrics) RecordCompaction(scanned, removed int) {
	if m == nil {
		return
	}
	m.snapshotsScanned.Add(float64(scanned))
	m.snapshotsRemoved.Add(float64(removed))
}

func (m *LedgerMetrics) RecordMirrorFailure() {
	if m == nil {
		return
	}
	m.mirrorFailures.Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *LedgerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint until ctx is cancelled
func (m *LedgerMetrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	zap.L().Info("Prometheus metrics available", zap.String("endpoint", "http://"+addr+"/metrics"))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
