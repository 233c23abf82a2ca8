package stream

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the reduction pipeline.
type Metrics struct {
	EventsProcessed *prometheus.CounterVec
	ReducerErrors   *prometheus.CounterVec
	StoreOpDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
}

// NewMetrics registers the pipeline metrics with the default registry once
// per process and returns the shared set.
//
// Metrics:
//   - observerd_events_processed_total{reducer}
//   - observerd_reducer_errors_total{reducer}
//   - observerd_store_op_duration_seconds{op}
//   - observerd_active_sessions
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			EventsProcessed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "observerd_events_processed_total",
					Help: "Events reduced, by reducer",
				},
				[]string{"reducer"},
			),
			ReducerErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "observerd_reducer_errors_total",
					Help: "Reducer invocations that failed, by reducer",
				},
				[]string{"reducer"},
			),
			StoreOpDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "observerd_store_op_duration_seconds",
					Help:    "State store operation latency",
					Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
				},
				[]string{"op"},
			),
			ActiveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "observerd_active_sessions",
					Help: "Open ingestion sessions",
				},
			),
		}
	})
	return globalMetrics
}

// timedStore records Get/Set latency.
type timedStore struct {
	kvs.Store
	hist *prometheus.HistogramVec
}

func (s *timedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := s.Store.Get(ctx, key)
	s.hist.WithLabelValues("get").Observe(time.Since(start).Seconds())
	return v, err
}

func (s *timedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.Store.Set(ctx, key, value)
	s.hist.WithLabelValues("set").Observe(time.Since(start).Seconds())
	return err
}
