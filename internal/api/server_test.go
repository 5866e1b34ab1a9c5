package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashbridge/internal/artifacts"
	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/internal/services"
	"github.com/platformbuilds/dashbridge/internal/store"
	"github.com/platformbuilds/dashbridge/pkg/cache"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

const apiDashboard = `{
  "title": "API Dashboard",
  "panels": [
    {"id": 7, "type": "timeseries", "title": "Requests", "gridPos": {"x": 0, "y": 0, "w": 24, "h": 9},
     "targets": [{"expr": "sum(rate(http_requests_total[5m]))", "datasource": {"type": "prometheus", "uid": "p1"}}]},
    {"type": "text", "title": "Notes"}
  ]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.GetDefaultConfig()
	cfg.WebSocket.PollInterval = 10
	log := logger.NewNop()
	c := cache.NewNoopValkeyCache(log)
	st := store.NewValkeyStore(c, 0)
	svc := services.NewConversionService(converter.New(), st, artifacts.NewMemStore(), nil, log, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return NewServer(cfg, log, svc, c, st)
}

func do(t *testing.T, s *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "grafana-to-kibana-converter", body["service"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, s, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)

	w = do(t, s, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dashbridge_http_requests_total")
}

func TestConvertLifecycle(t *testing.T) {
	s := newTestServer(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"dashboard": json.RawMessage(apiDashboard),
		"options":   map[string]interface{}{"index_pattern_mapping": map[string]string{"prometheus": "metrics-*"}},
	})
	w := do(t, s, http.MethodPost, "/api/v1/convert", payload, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Job-ID"))

	var res models.ConversionResult
	decode(t, w, &res)
	assert.Equal(t, models.StatusCompleted, res.Status)
	require.NotNil(t, res.KibanaDashboard)
	assert.Equal(t, "API Dashboard", res.KibanaDashboard.Attributes.Title)

	w = do(t, s, http.MethodGet, "/api/v1/convert/"+res.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/convert?limit=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Count)

	w = do(t, s, http.MethodGet, "/api/v1/preview/"+res.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Title  string                   `json:"title"`
		Panels []map[string]interface{} `json:"panels"`
	}
	decode(t, w, &preview)
	assert.Equal(t, "API Dashboard", preview.Title)
	require.Len(t, preview.Panels, 2)
	assert.Equal(t, "line", preview.Panels[0]["vis"])

	w = do(t, s, http.MethodGet, "/api/v1/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var status models.ServiceStatus
	decode(t, w, &status)
	assert.Equal(t, 1, status.TotalConversions)

	w = do(t, s, http.MethodDelete, "/api/v1/convert/"+res.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Conversion deleted successfully"}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/convert/"+res.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Conversion not found","code":"NOT_FOUND"}`, w.Body.String())

	w = do(t, s, http.MethodDelete, "/api/v1/convert/"+res.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConvert_BadRequests(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/convert", []byte(`{"options":{}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "dashboard is required")

	w = do(t, s, http.MethodPost, "/api/v1/convert", []byte(`{"dashboard":{"title":"x"}}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var e map[string]string
	decode(t, w, &e)
	assert.True(t, strings.HasPrefix(e["error"], "Conversion failed: "), e["error"])

	w = do(t, s, http.MethodPost, "/api/v1/convert", []byte(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/convert?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvert_TargetVersionField(t *testing.T) {
	s := newTestServer(t)
	payload, _ := json.Marshal(map[string]interface{}{
		"dashboard":      json.RawMessage(apiDashboard),
		"target_version": "8.0.0",
	})
	w := do(t, s, http.MethodPost, "/api/v1/convert", payload, "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var res models.ConversionResult
	decode(t, w, &res)
	require.NotNil(t, res.KibanaDashboard)
	assert.Equal(t, "8.0.0", res.KibanaDashboard.TypeMigrationVersion)
}

func TestBatchLifecycle(t *testing.T) {
	s := newTestServer(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"dashboards": []json.RawMessage{json.RawMessage(apiDashboard), json.RawMessage(`{"panels":[]}`)},
	})
	w := do(t, s, http.MethodPost, "/api/v1/batch", payload, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pending models.BatchResult
	decode(t, w, &pending)
	assert.Equal(t, 2, pending.TotalDashboards)
	require.NotEmpty(t, pending.BatchID)

	var done models.BatchResult
	require.Eventually(t, func() bool {
		w := do(t, s, http.MethodGet, "/api/v1/batch/"+pending.BatchID, nil, "")
		if w.Code != http.StatusOK {
			return false
		}
		_ = json.Unmarshal(w.Body.Bytes(), &done)
		return done.Status == models.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, done.Completed)
	assert.Equal(t, 1, done.Failed)

	w = do(t, s, http.MethodGet, "/api/v1/progress/"+pending.BatchID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Progress
	decode(t, w, &p)
	assert.Equal(t, 100, p.Progress)

	w = do(t, s, http.MethodDelete, "/api/v1/batch/"+pending.BatchID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Batch conversion deleted successfully"}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/batch/"+pending.BatchID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Batch conversion not found")
}

func TestBatch_TooLarge(t *testing.T) {
	s := newTestServer(t)
	docs := make([]json.RawMessage, 51)
	for i := range docs {
		docs[i] = json.RawMessage(apiDashboard)
	}
	payload, _ := json.Marshal(map[string]interface{}{"dashboards": docs})
	w := do(t, s, http.MethodPost, "/api/v1/batch", payload, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "batch exceeds maximum size")
}

func TestValidate(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/validate", []byte(apiDashboard), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var report models.ValidationReport
	decode(t, w, &report)
	assert.True(t, report.Valid)
	require.NotNil(t, report.Summary)
	assert.Equal(t, 2, report.Summary.TotalPanels)

	w = do(t, s, http.MethodPost, "/api/v1/validate", []byte(`{"title":"x"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	report = models.ValidationReport{}
	decode(t, w, &report)
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"Invalid dashboard structure"}, report.Errors)

	body, ct := multipartBody(t, "dash.json", apiDashboard, nil)
	w = do(t, s, http.MethodPost, "/api/v1/validate", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	report = models.ValidationReport{}
	decode(t, w, &report)
	assert.True(t, report.Valid)
}

func TestCapabilities(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/capabilities", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var caps models.Capabilities
	decode(t, w, &caps)
	assert.Contains(t, caps.SupportedPanelTypes, "timeseries")
	assert.Equal(t, 50, caps.Limits.MaxBatchSize)
	assert.True(t, caps.Features["validation"])
}

func TestUploadAndDownload(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartBody(t, "dash.json", apiDashboard, map[string]string{
		"preserve_panel_ids":    "false",
		"target_kibana_version": "8.0.0",
	})
	w := do(t, s, http.MethodPost, "/api/v1/upload", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var up struct {
		Success      bool                     `json:"success"`
		FileID       string                   `json:"file_id"`
		ConversionID string                   `json:"conversion_id"`
		JobID        string                   `json:"job_id"`
		Status       string                   `json:"status"`
		Summary      models.ConversionSummary `json:"summary"`
	}
	decode(t, w, &up)
	assert.True(t, up.Success)
	assert.Equal(t, "completed", up.Status)
	assert.Equal(t, 2, up.Summary.TotalPanels)
	require.NotEmpty(t, up.FileID)

	w = do(t, s, http.MethodGet, "/api/v1/download/"+up.FileID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "kibana_dashboard_"+up.FileID+".json")
	var kd models.KibanaDashboard
	decode(t, w, &kd)
	assert.Equal(t, "8.0.0", kd.TypeMigrationVersion)

	w = do(t, s, http.MethodGet, "/api/v1/download/"+up.FileID+"?format=ndjson", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasSuffix(w.Body.String(), "\n"))
	assert.Equal(t, 1, strings.Count(w.Body.String(), "\n"))

	w = do(t, s, http.MethodGet, "/api/v1/progress/"+up.JobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Progress
	decode(t, w, &p)
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, "Conversion completed!", p.Status)
}

func TestUpload_Rejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		message  string
	}{
		{"wrong extension", "dash.yaml", apiDashboard, nil, "Only JSON or NDJSON files are supported"},
		{"broken json", "dash.json", `{"title":`, nil, "Invalid JSON file"},
		{"not a dashboard", "dash.ndjson", `{"title":"x"}`, nil, "Invalid Grafana dashboard format"},
		{"bad boolean", "dash.json", apiDashboard, map[string]string{"convert_queries": "perhaps"}, "convert_queries must be a boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.filename, tt.content, tt.fields)
			w := do(t, s, http.MethodPost, "/api/v1/upload", body, ct)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var e map[string]string
			decode(t, w, &e)
			assert.Equal(t, tt.message, e["error"])
		})
	}

	w := do(t, s, http.MethodPost, "/api/v1/upload", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload_NotFound(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/v1/download/missing", "/api/v1/download/bad.id"} {
		w := do(t, s, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := do(t, s, http.MethodGet, "/api/v1/download/missing", nil, "")
	assert.JSONEq(t, `{"error":"File not found","code":"NOT_FOUND"}`, w.Body.String())
}

func TestProgress_UnknownJob(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/v1/progress/unknown", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Progress
	decode(t, w, &p)
	assert.Equal(t, 0, p.Progress)
	assert.Equal(t, "Not started", p.Status)
}

func TestProgressStream(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartBody(t, "dash.json", apiDashboard, nil)
	w := do(t, s, http.MethodPost, "/api/v1/upload", body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	var up struct {
		JobID string `json:"job_id"`
	}
	decode(t, w, &up)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/progress/" + up.JobID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var p models.Progress
	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, "Conversion completed!", p.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/convert", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
