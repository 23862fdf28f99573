// Package metrics exposes nebula-convert's Prometheus metrics.
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	result, err := convert.Convert(src, data)
//	metrics.ObserveConversion(src.String(), err, timer.Stop())
//
// All metrics are registered with the default registry and served by
// Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values
const (
	StatusSuccess     = "success"
	StatusFailure     = "failure"
	StatusUnsupported = "unsupported"
)

var (
	// ConversionsTotal counts conversions by source encoding and outcome.
	// Labels: source (tabular/hierarchical/tree/unknown), status
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_convert_conversions_total",
			Help: "Total number of conversions",
		},
		[]string{"source", "status"},
	)

	// ArtifactsTotal counts produced artifacts by target encoding
	ArtifactsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_convert_artifacts_total",
			Help: "Total number of artifacts produced",
		},
		[]string{"encoding"},
	)

	// ConversionDuration tracks the decode/encode time of a conversion in seconds
	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "nebula_convert_conversion_duration_seconds",
			Help: "Conversion duration in seconds",
			Buckets: []float64{
				0.0001, // 100μs - tiny documents
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms
				1,      // 1s - documents near the size limit
				10,
			},
		},
		[]string{"source"},
	)

	// InputBytes tracks the size of source documents
	InputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_convert_input_bytes",
			Help:    "Size of source documents in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"source"},
	)

	// ArchiveBytes tracks the size of written archives
	ArchiveBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_convert_archive_bytes",
			Help:    "Size of written archives in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"format"},
	)

	// DeliveriesTotal counts archive deliveries by sink and outcome
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_convert_deliveries_total",
			Help: "Total number of archive deliveries",
		},
		[]string{"sink", "status"},
	)

	// HTTPRequests counts server requests by route and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_convert_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// InFlight tracks conversions currently running
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nebula_convert_in_flight",
			Help: "Conversions currently in progress",
		},
	)
)

// Status maps an error to a status label
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// ObserveConversion records the outcome and duration of one conversion
func ObserveConversion(source string, err error, d time.Duration) {
	ConversionsTotal.WithLabelValues(source, Status(err)).Inc()
	ConversionDuration.WithLabelValues(source).Observe(d.Seconds())
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
