package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "costmonitor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// Report run metrics
	reportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "report",
			Name:      "runs_total",
			Help:      "Total number of report runs by outcome",
		},
		[]string{"status"},
	)

	reportRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "costmonitor",
			Subsystem: "report",
			Name:      "run_duration_seconds",
			Help:      "Report run duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	periodCost = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "costmonitor",
			Subsystem: "report",
			Name:      "period_cost_dollars",
			Help:      "Total spend of the last fetched window, by period",
		},
		[]string{"period"},
	)

	// Analysis metrics
	anomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "analysis",
			Name:      "anomalies_total",
			Help:      "Total number of cost anomalies by class",
		},
		[]string{"class"},
	)

	alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "analysis",
			Name:      "alerts_total",
			Help:      "Total number of immediate alerts by kind",
		},
		[]string{"kind"},
	)

	// Email metrics
	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "email",
			Name:      "sends_total",
			Help:      "Total number of send attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Cost Explorer metrics
	costExplorerPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "costexplorer",
			Name:      "pages_total",
			Help:      "Total number of Cost Explorer result pages fetched",
		},
		[]string{"period"},
	)

	costExplorerPageCapHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "costexplorer",
			Name:      "page_cap_hits_total",
			Help:      "Fetches stopped at the page cap with pages remaining",
		},
		[]string{"period"},
	)

	flooredEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "costmonitor",
			Subsystem: "costexplorer",
			Name:      "floored_entries_total",
			Help:      "Net-negative cost entries floored to zero",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "costmonitor",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Get route pattern from chi
		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Router serves /metrics and /healthz. healthy reports liveness; nil means always healthy.
func Router(healthy func() bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(Middleware)

	r.Handle("/metrics", Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if healthy != nil && !healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unhealthy"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// RecordReportRun records a finished run
func RecordReportRun(status string, duration time.Duration) {
	reportRunsTotal.WithLabelValues(status).Inc()
	reportRunDuration.Observe(duration.Seconds())
}

// SetPeriodCost records the total of one fetched window
func SetPeriodCost(period string, dollars float64) {
	periodCost.WithLabelValues(period).Set(dollars)
}

// RecordAnomalies records anomalies found in one analysis
func RecordAnomalies(class string, count int) {
	anomaliesTotal.WithLabelValues(class).Add(float64(count))
}

// RecordAlert records an immediate alert
func RecordAlert(kind string) {
	alertsTotal.WithLabelValues(kind).Inc()
}

// RecordEmail records a send attempt outcome
func RecordEmail(outcome string) {
	emailsTotal.WithLabelValues(outcome).Inc()
}

// RecordCostExplorerPage records one fetched result page
func RecordCostExplorerPage(period string) {
	costExplorerPages.WithLabelValues(period).Inc()
}

// RecordCostExplorerPageCap records a fetch truncated at the page cap
func RecordCostExplorerPageCap(period string) {
	costExplorerPageCapHits.WithLabelValues(period).Inc()
}

// RecordFlooredEntries records net-negative entries floored to zero
func RecordFlooredEntries(count int) {
	flooredEntries.Add(float64(count))
}

// RecordDBQuery records a database query
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
