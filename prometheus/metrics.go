package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderu_login_total",
			Help: "Total number of merchant login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderu_register_total",
			Help: "Total number of merchant registrations",
		},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderu_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "login_failure", "invalid_token", "db_error" etc.
	)

	// Webhook events received by type
	WebhookEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderu_webhook_events_total",
			Help: "Total number of billing webhook events received by type",
		},
		[]string{"event_type"},
	)

	// Webhook failures by reason
	WebhookErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderu_webhook_errors_total",
			Help: "Total number of billing webhook failures",
		},
		[]string{"reason"}, // reason can be "no_signature", "invalid_signature", "decode", "reconcile"
	)

	// Reconciliation outcomes
	ReconciliationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderu_reconciliations_total",
			Help: "Total number of subscription reconciliations by outcome",
		},
		[]string{"event_type", "outcome"}, // outcome is "applied" or "failed"
	)

	// On-demand subscription verifications
	VerificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderu_subscription_verifications_total",
			Help: "Total number of on-demand subscription verifications",
		},
		[]string{"result"}, // result is "valid", "invalid" or "error"
	)

	// Subscription guard denials
	GuardDenialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderu_subscription_guard_denials_total",
			Help: "Total number of requests denied by the subscription guard",
		},
		[]string{"reason"}, // reason can be "unauthenticated", "no_subscription", "inactive", "expired"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderu_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderu_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderu_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orderu_info",
			Help: "Information about the OrderU API service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(WebhookEventCounter)
	prometheus.MustRegister(WebhookErrorCounter)
	prometheus.MustRegister(ReconciliationCounter)
	prometheus.MustRegister(VerificationCounter)
	prometheus.MustRegister(GuardDenialCounter)
	prometheus.MustRegister(HTTPRequestCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordWebhookEvent records a received webhook event by type
func RecordWebhookEvent(eventType string) {
	WebhookEventCounter.With(prometheus.Labels{"event_type": eventType}).Inc()
}

// RecordWebhookError records a webhook failure by reason
func RecordWebhookError(reason string) {
	WebhookErrorCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordReconciliation records a reconciliation outcome for an event type
func RecordReconciliation(eventType, outcome string) {
	ReconciliationCounter.With(prometheus.Labels{"event_type": eventType, "outcome": outcome}).Inc()
}

// RecordVerification records an on-demand verification result
func RecordVerification(result string) {
	VerificationCounter.With(prometheus.Labels{"result": result}).Inc()
}

// RecordGuardDenial records a subscription guard denial by reason
func RecordGuardDenial(reason string) {
	GuardDenialCounter.With(prometheus.Labels{"reason": reason}).Inc()
}
