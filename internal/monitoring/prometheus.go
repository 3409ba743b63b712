// Package monitoring provides Prometheus metrics for the billing core.
//
// HTTP metrics are collected by HTTPMetricsMiddleware; storage, cache, and
// auth metrics are recorded explicitly at the call sites.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_core_http_requests_total",
		Help: "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_core_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	dbOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_core_db_operations_total",
		Help: "Gateway storage operations by entity and outcome",
	}, []string{"operation", "entity", "status"})

	dbOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_core_db_operation_duration_seconds",
		Help:    "Gateway storage operation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "entity"})

	cacheOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_core_cache_operations_total",
		Help: "Session cache operations by result",
	}, []string{"operation", "result"})

	authAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_core_auth_attempts_total",
		Help: "Authentication attempts by result",
	}, []string{"method", "result"})

	accessDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_core_access_decisions_total",
		Help: "Access decisions by entity, operation, and outcome",
	}, []string{"entity", "operation", "result"})

	auditEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "billing_core_audit_events_dropped_total",
		Help: "Audit events dropped because the emitter buffer was full",
	})
)

// SetupPrometheusMetrics mounts the /metrics endpoint.
func SetupPrometheusMetrics(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware records request counts and latency per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordDBOperation records a gateway storage operation.
func RecordDBOperation(operation, entity string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	dbOperationsTotal.WithLabelValues(operation, entity, status).Inc()
	dbOperationDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
}

// RecordCacheOperation records a session cache operation result
// (hit/miss/success/error).
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordAuthAttempt records an authentication attempt outcome.
func RecordAuthAttempt(method, result string) {
	authAttemptsTotal.WithLabelValues(method, result).Inc()
}

// RecordAccessDecision records an access decision outcome.
func RecordAccessDecision(entity, operation string, allowed bool) {
	result := "allow"
	if !allowed {
		result = "deny"
	}
	accessDecisionsTotal.WithLabelValues(entity, operation, result).Inc()
}

// RecordAuditDrop counts an audit event lost to backpressure.
func RecordAuditDrop() {
	auditEventsDropped.Inc()
}
