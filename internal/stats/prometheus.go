package stats

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exposes stage statistics as a small set of vectors keyed
// by stage name, registered against a private registry so a process can
// run several pipelines without colliding on metric names.
type PrometheusSink struct {
	registry *prometheus.Registry

	duration  *prometheus.HistogramVec
	processed *prometheus.CounterVec
	newCount  *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewPrometheusSink creates and registers the stage metric vectors under
// namespace.
func NewPrometheusSink(namespace string) *PrometheusSink {
	registry := prometheus.NewRegistry()

	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of one pipeline stage run.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	processed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_processed_total",
			Help:      "Units of work processed by a stage.",
		},
		[]string{"stage"},
	)
	newCount := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_new_total",
			Help:      "Units of work that created a new node or edge.",
		},
		[]string{"stage"},
	)
	failed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failed_total",
			Help:      "Units of work that exhausted retries or aborted.",
		},
		[]string{"stage"},
	)

	registry.MustRegister(duration, processed, newCount, failed)

	return &PrometheusSink{
		registry: registry, duration: duration,
		processed: processed, newCount: newCount, failed: failed,
	}
}

// Registry exposes the private registry for an HTTP /metrics handler.
func (p *PrometheusSink) Registry() *prometheus.Registry { return p.registry }

func (p *PrometheusSink) RecordStage(_ context.Context, stageName string, dur time.Duration, snap Snapshot) {
	p.duration.WithLabelValues(stageName).Observe(dur.Seconds())
	p.processed.WithLabelValues(stageName).Add(float64(snap.Processed))
	p.newCount.WithLabelValues(stageName).Add(float64(snap.New))
	p.failed.WithLabelValues(stageName).Add(float64(snap.Failed))
}
