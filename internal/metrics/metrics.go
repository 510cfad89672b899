// Package metrics records matrix × vector products in a Prometheus registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bigprod"

// Recorder collects per-product counters and latencies. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	products *prometheus.CounterVec
	elements *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder backed by its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		products: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_total",
			Help:      "Matrix-vector products computed, by unroll factor, dtype and outcome.",
		}, []string{"unroll", "dtype", "outcome"}),
		elements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_total",
			Help:      "Matrix elements accumulated by successful products.",
		}, []string{"dtype"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "product_duration_seconds",
			Help:      "Wall time of a matrix-vector product.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
		}, []string{"unroll"}),
	}
	r.registry.MustRegister(r.products, r.elements, r.duration)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Observe records one product of a rows×cols matrix.
func (r *Recorder) Observe(unroll int, dtype string, rows, cols int, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	u := strconv.Itoa(unroll)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.products.WithLabelValues(u, dtype, outcome).Inc()
	r.duration.WithLabelValues(u).Observe(elapsed.Seconds())
	if err == nil {
		r.elements.WithLabelValues(dtype).Add(float64(rows) * float64(cols))
	}
}

// WriteTextfile writes the current metrics in the text exposition format,
// for node_exporter's textfile collector or for inspection.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, r.registry), "write metrics to %s", path)
}
