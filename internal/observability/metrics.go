package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	gradingFallbacks     *prometheus.CounterVec
	gradingRuns          *prometheus.CounterVec
	cacheLookupsTotal    *prometheus.CounterVec
	plagiarismFlagsTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sacel",
			Name:      "http_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sacel",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 20.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sacel",
			Name:      "http_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sacel",
			Subsystem: "grading",
			Name:      "criteria_fallbacks_total",
			Help:      "Criteria evaluations that did not use a validated oracle reply.",
		}, []string{"source"})

		gradingRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sacel",
			Subsystem: "grading",
			Name:      "runs_total",
			Help:      "Auto-grading runs by outcome.",
		}, []string{"outcome"})

		cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sacel",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by scope and result.",
		}, []string{"scope", "result"})

		plagiarismFlagsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sacel",
			Subsystem: "plagiarism",
			Name:      "flagged_total",
			Help:      "Plagiarism checks that exceeded the flag threshold.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			gradingFallbacks,
			gradingRuns,
			cacheLookupsTotal,
			plagiarismFlagsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingFallbacks counts criteria scored by the heuristic parser, the local evaluator or the default band.
func GradingFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingFallbacks
}

// GradingRuns counts auto-grading attempts by outcome.
func GradingRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRuns
}

// CacheLookups counts cache reads labelled hit, miss or error.
func CacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheLookupsTotal
}

// PlagiarismFlags counts flagged plagiarism reports.
func PlagiarismFlags() prometheus.Counter {
	RegisterMetrics()
	return plagiarismFlagsTotal
}
