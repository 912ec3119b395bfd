// Package metrics records batch outcomes in a private Prometheus registry
// and writes them to a node_exporter textfile when a run ends.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder collects per-stage subject outcomes and durations
type Recorder struct {
	registry   *prometheus.Registry
	subjects   *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	components prometheus.Gauge
	parcels    prometheus.Gauge
}

// NewRecorder returns a Recorder with its own registry
func NewRecorder() *Recorder {
	r := Recorder{
		registry: prometheus.NewRegistry(),
		subjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "featx",
			Name:      "subjects_total",
			Help:      "Subjects processed per stage and outcome.",
		}, []string{"stage", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "featx",
			Name:      "stage_duration_seconds",
			Help:      "Time spent on one subject or one group stage.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"stage"}),
		components: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "featx",
			Name:      "group_components",
			Help:      "Number of group components of the current run.",
		}),
		parcels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "featx",
			Name:      "subcortical_parcels",
			Help:      "Number of subcortical parcels of the current run.",
		}),
	}

	r.registry.MustRegister(r.subjects, r.durations, r.components, r.parcels)

	return &r
}

// Observe records one finished subject or stage
func (r *Recorder) Observe(stage string, d time.Duration, err error) {
	r.subjects.WithLabelValues(stage, outcome(err)).Inc()
	if err == nil {
		r.durations.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// SetComponents records the group component count
func (r *Recorder) SetComponents(k int) {
	r.components.Set(float64(k))
}

// SetParcels records the parcel count
func (r *Recorder) SetParcels(n int) {
	r.parcels.Set(float64(n))
}

// Gatherer exposes the registry
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all metrics in text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}
