package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupPrometheusMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	SetupPrometheusMetrics(r)
	r.GET("/api/v1/conversions/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/conversions/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dashbridge_build_info")
	assert.Contains(t, w.Body.String(), `endpoint="/api/v1/conversions/:id"`)
}

func TestRecordCacheOperation_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("cache", "sample"))
	RecordCacheOperation("sample", "error")
	RecordCacheOperation("sample", "hit")
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("cache", "sample")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(cacheOperationsTotal.WithLabelValues("sample", "hit")), 1.0)
}

func TestRecordDBOperation(t *testing.T) {
	RecordDBOperation("insert", "sample_table", 3*time.Millisecond, false)
	assert.GreaterOrEqual(t, testutil.ToFloat64(dbOperationsTotal.WithLabelValues("insert", "sample_table", "error")), 1.0)
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"/api/v1/jobs/123": "/api/v1/jobs/:id/",
		"/api/v1/conversions/3f2c1a9e-8b7d-4c6e-9f01-23456789abcd": "/api/v1/conversions/:id/",
		"/health": "/health/",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeEndpoint(in), in)
	}
}
