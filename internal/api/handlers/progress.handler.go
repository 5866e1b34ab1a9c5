package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/metrics"
	"github.com/platformbuilds/dashbridge/internal/models"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

type ProgressHandler struct {
	service      ConversionService
	upgrader     websocket.Upgrader
	pollInterval time.Duration
	pingInterval time.Duration
	logger       logger.Logger
}

func NewProgressHandler(svc ConversionService, wsCfg config.WebSocketConfig, log logger.Logger) *ProgressHandler {
	poll := time.Duration(wsCfg.PollInterval) * time.Millisecond
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ping := time.Duration(wsCfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &ProgressHandler{
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsCfg.ReadBufferSize,
			WriteBufferSize: wsCfg.WriteBufferSize,
			// Origin is enforced by the CORS allow-list on the HTTP side.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pollInterval: poll,
		pingInterval: ping,
		logger:       log,
	}
}

// GET /api/v1/progress/:jobId
func (h *ProgressHandler) Get(c *gin.Context) {
	p, err := h.service.Progress(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/v1/progress/:jobId/ws streams a job's progress until it reaches
// 100 or the client goes away. Only changes are sent.
func (h *ProgressHandler) Stream(c *gin.Context) {
	jobID := c.Param("jobId")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "job_id", jobID, "error", err)
		return
	}
	defer conn.Close()

	metrics.ActiveWebSocketConnections.WithLabelValues("progress").Inc()
	defer metrics.ActiveWebSocketConnections.WithLabelValues("progress").Dec()
	h.logger.Debug("Progress stream opened", "job_id", jobID)

	// Reader goroutine surfaces client close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(h.pingInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	var last *models.Progress
	send := func() (done bool) {
		p, err := h.service.Progress(ctx, jobID)
		if err != nil {
			h.logger.Warn("Progress lookup failed", "job_id", jobID, "error", err)
			return false
		}
		if last != nil && last.Progress == p.Progress && last.Status == p.Status {
			return false
		}
		last = &p
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(p); err != nil {
			h.logger.Warn("WebSocket write failed", "job_id", jobID, "error", err)
			return true
		}
		return p.Progress >= 100
	}

	if send() {
		h.closeNormally(conn)
		return
	}
	for {
		select {
		case <-poll.C:
			if send() {
				h.closeNormally(conn)
				return
			}
		case <-heartbeat.C:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *ProgressHandler) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
