// Package metrics provides Prometheus metrics collection for the application.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome/status label values for metrics.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// AI pipeline stages.
const (
	StageClassify  = "classify"
	StageRecommend = "recommend"
	StageText      = "text"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Builder session metrics
	SessionsCreated prometheus.Counter
	ActionsApplied  *prometheus.CounterVec

	// Advisor metrics
	AICallsTotal        *prometheus.CounterVec
	AICallDuration      *prometheus.HistogramVec
	IntentsRouted       *prometheus.CounterVec
	RepliesTotal        *prometheus.CounterVec
	ChatRejected        prometheus.Counter
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec

	// Proposal metrics
	ProposalsSaved   *prometheus.CounterVec
	ProposalsDeleted prometheus.Counter
	ProposalsCleared prometheus.Counter

	// Catalog metrics
	CatalogLoadsTotal *prometheus.CounterVec
	CatalogServices   prometheus.Gauge

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	registry prometheus.Gatherer
}

// NewMetrics creates a new Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	m := newMetricsWithRegistry(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsWithRegistry creates metrics using a custom registry (for testing).
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newMetricsWithRegistry(reg)
	m.registry = reg
	return m
}

func newMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zenquote_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zenquote_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zenquote_sessions_created_total",
				Help: "Total number of builder sessions created",
			},
		),
		ActionsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_selection_actions_total",
				Help: "Selection actions applied by type and outcome",
			},
			[]string{"action", "outcome"},
		),

		AICallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_ai_calls_total",
				Help: "Total number of AI calls by pipeline stage and status",
			},
			[]string{"stage", "status"}, // status: "success", "failure", "circuit_open"
		),
		AICallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zenquote_ai_call_duration_seconds",
				Help:    "Duration of AI calls by pipeline stage",
				Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"stage"},
		),
		IntentsRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_ai_intents_total",
				Help: "Classified intents after normalization",
			},
			[]string{"intent"},
		),
		RepliesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_ai_replies_total",
				Help: "Advisor replies by kind",
			},
			[]string{"kind"}, // "structured", "text", "failed"
		),
		ChatRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zenquote_chat_rejected_in_flight_total",
				Help: "Chat messages rejected because a request was already in flight",
			},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zenquote_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_circuit_breaker_trips_total",
				Help: "Total number of times a circuit breaker has opened",
			},
			[]string{"service"},
		),

		ProposalsSaved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_proposals_saved_total",
				Help: "Proposals saved by service type",
			},
			[]string{"type"},
		),
		ProposalsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zenquote_proposals_deleted_total",
				Help: "Proposals deleted individually",
			},
		),
		ProposalsCleared: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zenquote_proposals_cleared_total",
				Help: "Times the proposal history was cleared",
			},
		),

		CatalogLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_catalog_loads_total",
				Help: "Catalog source loads by outcome",
			},
			[]string{"outcome"},
		),
		CatalogServices: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zenquote_catalog_services",
				Help: "Number of services in the current catalog snapshot",
			},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenquote_rate_limit_hits_total",
				Help: "Total number of rate limit hits by limiter",
			},
			[]string{"limiter"},
		),
	}
}

// Handler returns the Prometheus HTTP handler for scraping metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns an HTTP middleware that records request metrics.
// Paths are labelled with the matched chi route pattern to bound cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath is the fallback when no route matched.
func normalizePath(path string) string {
	switch path {
	case "/health", "/ready", "/live", "/metrics":
		return path
	}
	if strings.HasPrefix(path, "/api/sessions/") {
		return "/api/sessions/*"
	}
	if strings.HasPrefix(path, "/api/proposals/") {
		return "/api/proposals/*"
	}
	return "unmatched"
}

// RecordSessionCreated records a new builder session.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordAction records a selection action.
func (m *Metrics) RecordAction(action string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.ActionsApplied.WithLabelValues(action, outcome).Inc()
}

// RecordAICall records one model call for a pipeline stage.
func (m *Metrics) RecordAICall(stage string, success bool, duration time.Duration) {
	status := outcomeFailure
	if success {
		status = outcomeSuccess
	}
	m.AICallsTotal.WithLabelValues(stage, status).Inc()
	m.AICallDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAICircuitOpen records a model call rejected by the breaker.
func (m *Metrics) RecordAICircuitOpen(stage string) {
	m.AICallsTotal.WithLabelValues(stage, "circuit_open").Inc()
}

// RecordIntent records a classified intent.
func (m *Metrics) RecordIntent(intent string) {
	m.IntentsRouted.WithLabelValues(intent).Inc()
}

// RecordReply records the kind of reply returned to the reseller.
func (m *Metrics) RecordReply(kind string) {
	m.RepliesTotal.WithLabelValues(kind).Inc()
}

// RecordChatRejected records a chat refused because one was in flight.
func (m *Metrics) RecordChatRejected() {
	m.ChatRejected.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state for a service.
// State: 0=closed, 1=half-open, 2=open
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
	if state == 2 {
		m.CircuitBreakerTrips.WithLabelValues(service).Inc()
	}
}

// RecordProposalSaved records a saved proposal.
func (m *Metrics) RecordProposalSaved(serviceType string) {
	m.ProposalsSaved.WithLabelValues(serviceType).Inc()
}

// RecordProposalDeleted records a proposal deleted by position.
func (m *Metrics) RecordProposalDeleted() {
	m.ProposalsDeleted.Inc()
}

// RecordProposalsCleared records a confirmed clear of the history.
func (m *Metrics) RecordProposalsCleared() {
	m.ProposalsCleared.Inc()
}

// RecordCatalogLoad records a catalog load and the resulting size.
func (m *Metrics) RecordCatalogLoad(success bool, services int) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	m.CatalogLoadsTotal.WithLabelValues(outcome).Inc()
	m.CatalogServices.Set(float64(services))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.RateLimitHitsTotal.WithLabelValues(limiter).Inc()
}
