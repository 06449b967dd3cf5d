package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vsmecore/internal/section"
)

var _ section.Recorder = (*SectionMetrics)(nil)

// SectionMetrics exports section load/save outcomes to Prometheus.
type SectionMetrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewSectionMetrics creates the collectors and registers them on registry.
func NewSectionMetrics(registry prometheus.Registerer) (*SectionMetrics, error) {
	m := &SectionMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vsmecore_section_operations_total",
				Help: "Section store operations partitioned by operation, collection and status.",
			},
			[]string{"operation", "collection", "status"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vsmecore_section_operation_duration_seconds",
				Help:    "Backend round-trip time of section store operations.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"operation", "collection"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register section metrics: %w", err)
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *SectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operations.Describe(ch)
	m.durations.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *SectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operations.Collect(ch)
	m.durations.Collect(ch)
}

// Observe implements section.Recorder.
func (m *SectionMetrics) Observe(_ context.Context, operation, collection string, success bool, duration time.Duration) {
	m.operations.WithLabelValues(operation, collection, statusLabel(success)).Inc()
	m.durations.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Recorders fans one observation out to several recorders.
type Recorders []section.Recorder

// Observe implements section.Recorder.
func (rs Recorders) Observe(ctx context.Context, operation, collection string, success bool, duration time.Duration) {
	for _, r := range rs {
		if r != nil {
			r.Observe(ctx, operation, collection, success, duration)
		}
	}
}
