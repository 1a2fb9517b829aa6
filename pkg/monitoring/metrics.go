package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Database metrics
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)

	// Note lifecycle metrics
	draftsSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "note_drafts_saved_total",
			Help: "Total number of note draft autosaves",
		},
		[]string{"status", "service"},
	)

	notesSignedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_signed_total",
			Help: "Total number of clinical notes signed and locked",
		},
		[]string{"service"},
	)

	signConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "note_sign_conflicts_total",
			Help: "Total number of sign attempts rejected on an already locked note",
		},
		[]string{"service"},
	)

	addendaCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "note_addenda_created_total",
			Help: "Total number of addenda created against locked notes",
		},
		[]string{"service"},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "status", "service"},
	)

	// PHI access metrics
	phiAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phi_access_total",
			Help: "Total number of PHI access attempts",
		},
		[]string{"resource_type", "status", "service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		dbQueryDuration,
		draftsSavedTotal,
		notesSignedTotal,
		signConflictsTotal,
		addendaCreatedTotal,
		authAttemptsTotal,
		phiAccessTotal,
		systemErrors,
	)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// RecordDraftSaved records a draft autosave outcome
func (m *MetricsCollector) RecordDraftSaved(status string) {
	draftsSavedTotal.WithLabelValues(status, m.serviceName).Inc()
}

// RecordNoteSigned records a successful sign-and-lock
func (m *MetricsCollector) RecordNoteSigned() {
	notesSignedTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordSignConflict records a sign attempt that lost to an existing lock
func (m *MetricsCollector) RecordSignConflict() {
	signConflictsTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordAddendumCreated records an addendum creation
func (m *MetricsCollector) RecordAddendumCreated() {
	addendaCreatedTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(method, status string) {
	authAttemptsTotal.WithLabelValues(method, status, m.serviceName).Inc()
}

// RecordPHIAccess records PHI access metrics
func (m *MetricsCollector) RecordPHIAccess(resourceType, status string) {
	phiAccessTotal.WithLabelValues(resourceType, status, m.serviceName).Inc()
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
