// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         *prometheus.HistogramVec
	activeRun                  prometheus.Gauge
	clubsProcessedTotal        *prometheus.CounterVec
	classesExtractedTotal      prometheus.Counter
	operationFailuresTotal     *prometheus.CounterVec
	errorScreenshotsTotal      prometheus.Counter
	statusSubscribers          prometheus.Gauge
	statusEventsDroppedTotal   prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedcrawler_runs_total",
				Help: "Total number of crawl runs, labeled by terminal state.",
			},
			[]string{"state"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schedcrawler_run_duration_seconds",
				Help:    "Histogram of crawl run durations, labeled by terminal state.",
				Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400},
			},
			[]string{"state"},
		)

		activeRun = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "schedcrawler_active_run",
				Help: "1 while a crawl run is in flight, 0 otherwise.",
			},
		)

		clubsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedcrawler_clubs_processed_total",
				Help: "Total number of clubs processed, labeled by outcome.",
			},
			[]string{"status"},
		)

		classesExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedcrawler_classes_extracted_total",
				Help: "Total number of schedule entries extracted.",
			},
		)

		operationFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schedcrawler_operation_failures_total",
				Help: "Total failed browser operation attempts, labeled by operation.",
			},
			[]string{"operation"},
		)

		errorScreenshotsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedcrawler_error_screenshots_total",
				Help: "Total diagnostic screenshots captured on terminal failures.",
			},
		)

		statusSubscribers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "schedcrawler_status_subscribers",
				Help: "Number of currently attached status stream subscribers.",
			},
		)

		statusEventsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "schedcrawler_status_events_dropped_total",
				Help: "Total status events dropped because a subscriber fell behind.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished crawl run.
func ObserveRun(state string, seconds float64) {
	runsTotal.WithLabelValues(state).Inc()
	runDurationSeconds.WithLabelValues(state).Observe(seconds)
}

// SetRunActive flips the active-run gauge. Runs are single-flight, so
// the gauge only ever reads 0 or 1.
func SetRunActive(active bool) {
	if active {
		activeRun.Set(1)
		return
	}
	activeRun.Set(0)
}

// ObserveClub increments the club counter for the given outcome.
func ObserveClub(status string) {
	clubsProcessedTotal.WithLabelValues(status).Inc()
}

// ObserveClasses adds the extracted entry count of a finished run.
func ObserveClasses(n int) {
	if n > 0 {
		classesExtractedTotal.Add(float64(n))
	}
}

// ObserveRetry counts one failed attempt of a retryable operation.
func ObserveRetry(operation string) {
	operationFailuresTotal.WithLabelValues(operation).Inc()
}

// ObserveScreenshot counts one stored diagnostic screenshot.
func ObserveScreenshot() {
	errorScreenshotsTotal.Inc()
}

// IncSubscribers increments the status subscriber gauge.
func IncSubscribers() {
	statusSubscribers.Inc()
}

// DecSubscribers decrements the status subscriber gauge.
func DecSubscribers() {
	statusSubscribers.Dec()
}

// ObserveDroppedEvent counts one status event lost to a slow subscriber.
func ObserveDroppedEvent() {
	statusEventsDroppedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
