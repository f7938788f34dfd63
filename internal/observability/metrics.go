package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/bike-sharing-dashboard/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch for: p95 growth as the dataset grows.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Report generations by outcome (success, no_data, error, cached).
	ReportsTotal *prometheus.CounterVec

	// Report generation latency by outcome.
	ReportDuration *prometheus.HistogramVec

	// Chart renders per view. Watch for: render errors on a single view.
	ChartRendersTotal *prometheus.CounterVec

	// Workbook exports by status.
	ExportsTotal *prometheus.CounterVec

	// Records in the current snapshot. Zero means nothing is loaded.
	DatasetRecords prometheus.Gauge

	// Dataset loads by status. Watch for: repeated errors after a file change.
	DatasetReloadsTotal *prometheus.CounterVec

	// Report cache hits. Hit rate = hits / reportsTotal.
	CacheHitsTotal *prometheus.CounterVec

	// Report cache errors by operation (get, set).
	CacheErrorsTotal *prometheus.CounterVec

	// Cache warming runs after a dataset reload.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportsTotal",
			Help: "Total number of report requests by outcome",
		},
		[]string{"outcome"},
	)
	ReportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reportDurationSeconds",
			Help:    "Report generation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"outcome"},
	)
	ChartRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartRendersTotal",
			Help: "Total number of SVG chart renders by view and status",
		},
		[]string{"view", "status"},
	)
	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exportsTotal",
			Help: "Total number of XLSX exports by status",
		},
		[]string{"status"},
	)
	DatasetRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasetRecords",
			Help: "Number of rental records in the current snapshot",
		},
	)
	DatasetReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasetReloadsTotal",
			Help: "Total number of dataset loads by status",
		},
		[]string{"status"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of report cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of report cache errors by operation",
		},
		[]string{"operation"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of report cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Total number of warming runs with at least one failed range",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Duration of report cache warming runs",
			Buckets: prometheus.DefBuckets,
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ReportsTotal, ReportDuration, ChartRendersTotal, ExportsTotal,
		DatasetRecords, DatasetReloadsTotal,
		CacheHitsTotal, CacheErrorsTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordReport records one report request outcome and its duration.
func RecordReport(outcome string, d time.Duration) {
	ReportsTotal.WithLabelValues(outcome).Inc()
	ReportDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
