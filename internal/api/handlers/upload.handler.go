package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashbridge/internal/api/middleware"
	"github.com/platformbuilds/dashbridge/internal/artifacts"
	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/internal/services"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

// uploadBoolFields are the form fields accepted next to the file.
var uploadBoolFields = []string{
	"preserve_panel_ids",
	"convert_queries",
	"convert_visualizations",
	"convert_variables",
	"convert_annotations",
}

// UploadResponse mirrors what the browser UI expects after an upload.
type UploadResponse struct {
	Success          bool                      `json:"success"`
	FileID           string                    `json:"file_id,omitempty"`
	ConversionID     string                    `json:"conversion_id"`
	JobID            string                    `json:"job_id"`
	Status           models.ConversionStatus   `json:"status,omitempty"`
	ConversionTimeMs int64                     `json:"conversion_time_ms,omitempty"`
	Summary          *models.ConversionSummary `json:"summary,omitempty"`
	Error            string                    `json:"error,omitempty"`
}

type UploadHandler struct {
	service  ConversionService
	logger   logger.Logger
	maxBytes int64
}

func NewUploadHandler(svc ConversionService, log logger.Logger, maxBytes int64) *UploadHandler {
	return &UploadHandler{service: svc, logger: log, maxBytes: maxBytes}
}

// POST /api/v1/upload (multipart: file plus optional option fields)
func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "file is required", err))
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext != ".json" && ext != ".ndjson" {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Only JSON or NDJSON files are supported", nil))
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		_ = c.Error(middleware.NewAPIError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the %d byte upload limit", h.maxBytes), nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Unable to read uploaded file", err))
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Unable to read uploaded file", err))
		return
	}

	opts, err := uploadOptions(c)
	if err != nil {
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, err.Error(), err))
		return
	}

	out, err := h.service.Convert(c.Request.Context(), content, opts)
	switch {
	case errors.Is(err, services.ErrInvalidJSON):
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Invalid JSON file", err))
		return
	case errors.Is(err, services.ErrInvalidDashboard):
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, "Invalid Grafana dashboard format", err))
		return
	case errors.Is(err, services.ErrInvalidOptions):
		_ = c.Error(middleware.NewAPIError(http.StatusBadRequest, err.Error(), err))
		return
	case err != nil:
		_ = c.Error(middleware.NewAPIError(http.StatusInternalServerError, "Conversion failed: "+err.Error(), err))
		return
	}

	res := out.Result
	if res.Status != models.StatusCompleted {
		c.JSON(http.StatusOK, UploadResponse{
			Success:      false,
			ConversionID: res.ID,
			JobID:        out.JobID,
			Error:        res.ErrorMessage,
		})
		return
	}

	h.logger.Info("Uploaded dashboard converted", "file", fh.Filename, "conversion_id", res.ID, "file_id", out.FileID)
	summary := out.Summary
	c.JSON(http.StatusOK, UploadResponse{
		Success:          true,
		FileID:           out.FileID,
		ConversionID:     res.ID,
		JobID:            out.JobID,
		Status:           res.Status,
		ConversionTimeMs: res.ConversionTimeMs,
		Summary:          &summary,
	})
}

// uploadOptions collects option fields sent alongside the file. Fields that
// were not sent keep the server defaults.
func uploadOptions(c *gin.Context) (map[string]interface{}, error) {
	opts := map[string]interface{}{}
	for _, name := range uploadBoolFields {
		raw, ok := c.GetPostForm(name)
		if !ok || raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean", name)
		}
		opts[name] = b
	}
	if v := c.PostForm("target_kibana_version"); v != "" {
		opts["targetVersion"] = v
	}
	return opts, nil
}

// GET /api/v1/download/:fileId?format=json|ndjson
func (h *UploadHandler) Download(c *gin.Context) {
	format := string(artifacts.FormatJSON)
	contentType := "application/json"
	if c.Query("format") == string(artifacts.FormatNDJSON) {
		format = string(artifacts.FormatNDJSON)
		contentType = "application/x-ndjson"
	}

	rc, name, err := h.service.Artifact(c.Param("fileId"), format)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) || errors.Is(err, artifacts.ErrInvalidFileID) {
			_ = c.Error(middleware.NewAPIError(http.StatusNotFound, "File not found", err))
			return
		}
		_ = c.Error(err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, name),
	})
}
