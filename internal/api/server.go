package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashbridge/internal/api/handlers"
	"github.com/platformbuilds/dashbridge/internal/api/middleware"
	"github.com/platformbuilds/dashbridge/internal/config"
	"github.com/platformbuilds/dashbridge/internal/monitoring"
	"github.com/platformbuilds/dashbridge/pkg/cache"
	"github.com/platformbuilds/dashbridge/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	cache      cache.ValkeyCluster
	service    handlers.ConversionService
	store      handlers.Pinger
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires routes for svc. c and st are only used for readiness and
// may be nil.
func NewServer(cfg *config.Config, log logger.Logger, svc handlers.ConversionService, c cache.ValkeyCluster, st interface{}) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  cfg,
		logger:  log,
		cache:   c,
		service: svc,
		router:  gin.New(),
	}
	if p, ok := st.(handlers.Pinger); ok {
		s.store = p
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.CORSMiddleware(s.config.Server.CORS))
	s.router.Use(middleware.RequestLogger(s.logger))

	if s.config.Monitoring.Enabled {
		s.router.Use(monitoring.HTTPMetricsMiddleware())
		monitoring.SetupPrometheusMetrics(s.router, s.config.Monitoring.MetricsPath)
	}

	s.router.Use(middleware.ErrorHandler(s.logger))

	if s.config.Server.MaxUploadBytes > 0 {
		// multipart parsing spills to disk above this
		s.router.MaxMultipartMemory = s.config.Server.MaxUploadBytes
	}
}

func (s *Server) setupRoutes() {
	health := handlers.NewHealthHandler(s.cache, s.store, s.logger)
	s.router.GET("/health", health.HealthCheck)
	s.router.GET("/ready", health.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", health.HealthCheck)
	v1.GET("/ready", health.ReadinessCheck)

	conv := handlers.NewConversionHandler(s.service, s.logger)
	v1.POST("/convert", conv.Convert)
	v1.GET("/convert", conv.List)
	v1.GET("/convert/:id", conv.Get)
	v1.DELETE("/convert/:id", conv.Delete)
	v1.GET("/preview/:id", conv.Preview)

	v1.POST("/batch", conv.StartBatch)
	v1.GET("/batch/:id", conv.GetBatch)
	v1.DELETE("/batch/:id", conv.DeleteBatch)

	v1.POST("/validate", conv.Validate)
	v1.GET("/capabilities", conv.Capabilities)
	v1.GET("/status", conv.Status)

	upload := handlers.NewUploadHandler(s.service, s.logger, s.config.Server.MaxUploadBytes)
	v1.POST("/upload", upload.Upload)
	v1.GET("/download/:fileId", upload.Download)

	progress := handlers.NewProgressHandler(s.service, s.config.WebSocket, s.logger)
	v1.GET("/progress/:jobId", progress.Get)
	if s.config.WebSocket.Enabled {
		v1.GET("/progress/:jobId/ws", progress.Stream)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("DASHBRIDGE REST API server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down DASHBRIDGE gracefully")
	}

	timeout := time.Duration(s.config.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
