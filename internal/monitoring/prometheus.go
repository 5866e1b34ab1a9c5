// Package monitoring exposes the process-level Prometheus metrics for
// DASHBRIDGE and the /metrics endpoint.
//
// Usage:
//
//  1. Setup metrics in your main function:
//     router := gin.New()
//     monitoring.SetupPrometheusMetrics(router)
//
//  2. Add HTTP metrics middleware:
//     router.Use(monitoring.HTTPMetricsMiddleware())
//
//  3. Record storage operations where they happen:
//     monitoring.RecordDBOperation("insert", "conversions", time.Since(start), err == nil)
//     monitoring.RecordCacheOperation("get", "hit")
//
// Available Metrics:
//   - dashbridge_http_requests_total{method, endpoint, status_code}
//   - dashbridge_http_request_duration_seconds{method, endpoint}
//   - dashbridge_active_connections
//   - dashbridge_db_operations_total{operation, table, status}
//   - dashbridge_db_operation_duration_seconds{operation, table}
//   - dashbridge_cache_operations_total{operation, result}
//   - dashbridge_errors_total{type, component}
//   - dashbridge_build_info{version, component, go_version}
//
// Conversion-level counters live in internal/metrics.
package monitoring

import (
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is stamped into dashbridge_build_info. Overridden via -ldflags.
var Version = "dev"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashbridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"},
	)

	dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashbridge_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "table"},
	)

	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, success, error
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashbridge_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashbridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // type: http, db, cache
	)
)

func init() {
	// Record* helpers are called from storage code that may run without the
	// HTTP server (CLI), so the collectors are registered up front.
	for _, c := range []prometheus.Collector{
		httpRequestsTotal, httpRequestDuration,
		dbOperationsTotal, dbOperationDuration,
		cacheOperationsTotal, activeConnections, errorsTotal,
	} {
		_ = prometheus.Register(c)
	}
}

// SetupPrometheusMetrics registers build info and exposes the scrape endpoint
// on router. An empty path means /metrics.
func SetupPrometheusMetrics(router gin.IRoutes, path ...string) {
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "dashbridge_build_info",
		Help: "Build information for DASHBRIDGE",
		ConstLabels: prometheus.Labels{
			"version":    Version,
			"component":  "dashbridge",
			"go_version": runtime.Version(),
		},
	}, func() float64 { return 1 }))

	p := "/metrics"
	if len(path) > 0 && path[0] != "" {
		p = path[0]
	}
	router.GET(p, gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = normalizeEndpoint(c.Request.URL.Path)
		}

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 400 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordDBOperation records database operation metrics
func RecordDBOperation(operation, table string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		errorsTotal.WithLabelValues("db", table).Inc()
	}

	dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
	dbOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordCacheOperation records cache operation metrics
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// normalizeEndpoint collapses id-like path segments so unmatched routes do
// not explode label cardinality.
func normalizeEndpoint(path string) string {
	if len(path) > 0 && path[len(path)-1] != '/' {
		path += "/"
	}

	parts := strings.Split(path, "/")
	for i, part := range parts {
		if i > 0 && (isNumeric(part) || isUUID(part)) {
			parts[i] = ":id"
		}
	}

	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isUUID matches the canonical 8-4-4-4-12 hex form.
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return false
			}
		}
	}
	return true
}
