// Package metrics provides Prometheus metrics for the HTTP server, letter
// extraction and reference data reloads. All metrics are registered with the
// default registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	// LettersProcessedTotal counts letters by outcome: extracted, no_section, empty
	LettersProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letters_processed_total",
			Help: "Discharge letters processed, by outcome",
		},
		[]string{"outcome"},
	)

	MedicationsExtractedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medications_extracted_total",
			Help: "Medication records extracted from discharge letters",
		},
	)

	EntriesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medication_entries_skipped_total",
			Help: "Entries in the discharge section that could not be parsed",
		},
	)

	ReferenceDataReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_data_reloads_total",
			Help: "Reference data reloads, by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	ReferenceDataEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reference_data_entries",
			Help: "Entries loaded per reference data table",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(LettersProcessedTotal)
	prometheus.MustRegister(MedicationsExtractedTotal)
	prometheus.MustRegister(EntriesSkippedTotal)
	prometheus.MustRegister(ReferenceDataReloadsTotal)
	prometheus.MustRegister(ReferenceDataEntries)
}
