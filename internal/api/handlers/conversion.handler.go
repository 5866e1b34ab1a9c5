package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashbridge/internal/api/middleware"
	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/internal/services"
	"github.com/platformbuilds/dashbridge/internal/store"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

// ConversionService is the slice of services.ConversionService the HTTP
// layer needs.
type ConversionService interface {
	Convert(ctx context.Context, raw []byte, rawOpts map[string]interface{}) (*services.ConvertOutcome, error)
	Get(ctx context.Context, id string) (*models.ConversionResult, error)
	List(ctx context.Context, limit int) ([]models.ConversionResult, error)
	Delete(ctx context.Context, id string) error
	StartBatch(ctx context.Context, docs []json.RawMessage, rawOpts map[string]interface{}) (*models.BatchResult, error)
	GetBatch(ctx context.Context, id string) (*models.BatchResult, error)
	DeleteBatch(ctx context.Context, id string) error
	Status(ctx context.Context) (*models.ServiceStatus, error)
	Validate(raw []byte) models.ValidationReport
	Capabilities() models.Capabilities
	Progress(ctx context.Context, jobID string) (models.Progress, error)
	Artifact(fileID, format string) (io.ReadCloser, string, error)
}

// ConvertRequest is the body of POST /convert. TargetVersion is honoured
// only when options do not set one.
type ConvertRequest struct {
	Dashboard     json.RawMessage        `json:"dashboard"`
	Options       map[string]interface{} `json:"options"`
	TargetVersion string                 `json:"target_version"`
}

type BatchRequest struct {
	Dashboards    []json.RawMessage      `json:"dashboards"`
	Options       map[string]interface{} `json:"options"`
	TargetVersion string                 `json:"target_version"`
}

const defaultListLimit = 50

type ConversionHandler struct {
	service ConversionService
	logger  logger.Logger
}

func NewConversionHandler(svc ConversionService, log logger.Logger) *ConversionHandler {
	return &ConversionHandler{service: svc, logger: log}
}

// POST /api/v1/convert
func (h *ConversionHandler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if len(req.Dashboard) == 0 || string(req.Dashboard) == "null" {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "dashboard is required", nil))
		return
	}

	out, err := h.service.Convert(c.Request.Context(), req.Dashboard, withTargetVersion(req.Options, req.TargetVersion))
	if err != nil {
		_ = c.Error(conversionError(err))
		return
	}

	c.Header("X-Job-ID", out.JobID)
	c.JSON(http.StatusOK, out.Result)
}

// GET /api/v1/convert?limit=
func (h *ConversionHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "limit must be a non-negative integer", err))
			return
		}
		limit = n
	}
	recs, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversions": recs, "count": len(recs)})
}

// GET /api/v1/convert/:id
func (h *ConversionHandler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(notFoundOr(err, "Conversion not found"))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DELETE /api/v1/convert/:id
func (h *ConversionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(notFoundOr(err, "Conversion not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversion deleted successfully"})
}

// POST /api/v1/batch
func (h *ConversionHandler) StartBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	batch, err := h.service.StartBatch(c.Request.Context(), req.Dashboards, withTargetVersion(req.Options, req.TargetVersion))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBatchTooLarge), errors.Is(err, services.ErrInvalidOptions):
			_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, err.Error(), err))
		default:
			_ = c.Error(err)
		}
		return
	}
	c.JSON(http.StatusOK, batch)
}

// GET /api/v1/batch/:id
func (h *ConversionHandler) GetBatch(c *gin.Context) {
	batch, err := h.service.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(notFoundOr(err, "Batch conversion not found"))
		return
	}
	c.JSON(http.StatusOK, batch)
}

// DELETE /api/v1/batch/:id
func (h *ConversionHandler) DeleteBatch(c *gin.Context) {
	if err := h.service.DeleteBatch(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(notFoundOr(err, "Batch conversion not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Batch conversion deleted successfully"})
}

// GET /api/v1/status
func (h *ConversionHandler) Status(c *gin.Context) {
	st, err := h.service.Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// POST /api/v1/validate accepts a raw dashboard body or a multipart "file".
// Problems are reported in the body with 200, never as an HTTP error.
func (h *ConversionHandler) Validate(c *gin.Context) {
	var raw []byte
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Unable to read uploaded file", err))
			return
		}
		defer f.Close()
		if raw, err = io.ReadAll(f); err != nil {
			_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Unable to read uploaded file", err))
			return
		}
	} else {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Unable to read request body", err))
			return
		}
		raw = body
	}
	c.JSON(http.StatusOK, h.service.Validate(raw))
}

// GET /api/v1/capabilities
func (h *ConversionHandler) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Capabilities())
}

// GET /api/v1/preview/:id summarises a stored conversion panel by panel.
func (h *ConversionHandler) Preview(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(notFoundOr(err, "Conversion not found"))
		return
	}

	resp := gin.H{
		"conversion_id": rec.ID,
		"status":        rec.Status,
	}
	if rec.KibanaDashboard == nil {
		resp["error_message"] = rec.ErrorMessage
		c.JSON(http.StatusOK, resp)
		return
	}

	var panels []models.KibanaPanel
	if err := json.Unmarshal([]byte(rec.KibanaDashboard.Attributes.PanelsJSON), &panels); err != nil {
		_ = c.Error(err)
		return
	}
	items := make([]gin.H, 0, len(panels))
	for _, p := range panels {
		item := gin.H{"id": p.ID, "title": p.Title, "type": p.Type, "gridData": p.GridData, "aiConverted": p.AIConverted}
		if p.EmbeddableConfig.Vis != nil {
			item["vis"] = p.EmbeddableConfig.Vis.Type
		}
		items = append(items, item)
	}
	resp["title"] = rec.KibanaDashboard.Attributes.Title
	resp["panels"] = items
	resp["references"] = rec.KibanaDashboard.References
	c.JSON(http.StatusOK, resp)
}

// withTargetVersion folds a top-level target_version into the options map
// without overriding an explicit option.
func withTargetVersion(opts map[string]interface{}, version string) map[string]interface{} {
	if version == "" {
		return opts
	}
	for _, k := range []string{"targetVersion", "target_version", "target_kibana_version", "targetKibanaVersion"} {
		if _, ok := opts[k]; ok {
			return opts
		}
	}
	out := make(map[string]interface{}, len(opts)+1)
	for k, v := range opts {
		out[k] = v
	}
	out["targetVersion"] = version
	return out
}

func conversionError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidJSON),
		errors.Is(err, services.ErrInvalidDashboard),
		errors.Is(err, services.ErrInvalidOptions):
		return middleware.NewAPIError(http.StatusBadRequest, "Conversion failed: "+err.Error(), err)
	default:
		return middleware.NewAPIError(http.StatusInternalServerError, "Conversion failed: "+err.Error(), err)
	}
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return middleware.NewAPIError(http.StatusNotFound, message, err)
	}
	return err
}
