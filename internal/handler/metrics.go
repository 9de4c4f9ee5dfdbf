package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustmesh/internal/trust"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	devicesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trustmesh_devices_total",
		Help: "Tracked devices by revocation status, as of the last listing.",
	}, []string{"status"})

	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustmesh_registrations_total",
		Help: "Total device registrations accepted over HTTP.",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmesh_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustmesh_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmesh_alerts_total",
		Help: "Fast-path alerts by outcome and reason.",
	}, []string{"outcome", "reason"})

	trustAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmesh_trust_adjustments_total",
		Help: "Trust adjustments by direction.",
	}, []string{"direction"})

	revocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustmesh_revocations_total",
		Help: "Total credential revocations.",
	})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustmesh_webhook_deliveries_total",
		Help: "Webhook delivery attempts by outcome.",
	}, []string{"outcome"})

	ledgerIntact = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustmesh_ledger_intact",
		Help: "1 if the last watchdog verification found the chain intact, 0 otherwise.",
	})

	trustScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trustmesh_trust_score",
		Help:    "Trust scores after every mutation.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordRegistration records an accepted registration.
func RecordRegistration() {
	registrationsTotal.Inc()
}

// SetDevicesGauge sets the device count gauge for a given status.
func SetDevicesGauge(status string, count float64) {
	devicesTotal.WithLabelValues(status).Set(count)
}

// RecordWebhookDelivery counts one webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	webhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// SetLedgerIntact records the result of the latest ledger verification.
func SetLedgerIntact(intact bool) {
	if intact {
		ledgerIntact.Set(1)
	} else {
		ledgerIntact.Set(0)
	}
}

// MetricsSink is a trust.EventSink that turns engine decisions into
// Prometheus series.
type MetricsSink struct{}

// Emit implements trust.EventSink.
func (MetricsSink) Emit(ev trust.Event) {
	switch ev.Kind {
	case trust.EventRegistered:
		trustScore.Observe(ev.New)
	case trust.EventAlertAccepted:
		alertsTotal.WithLabelValues("accepted", ev.Reason).Inc()
		trustScore.Observe(ev.New)
	case trust.EventAlertRejected:
		alertsTotal.WithLabelValues("rejected", ev.Reason).Inc()
	case trust.EventTrustAdjusted:
		direction := "none"
		switch {
		case ev.New > ev.Old:
			direction = "up"
		case ev.New < ev.Old:
			direction = "down"
		}
		trustAdjustmentsTotal.WithLabelValues(direction).Inc()
		trustScore.Observe(ev.New)
	case trust.EventRevoked:
		revocationsTotal.Inc()
	}
}
