package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cargohold/config"
	"cargohold/internal/observability"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey       string // Optional: Master key for authentication
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 10MB)
}

// New creates a new HTTP server
func New(deps Deps, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true

	handler := NewHandler(deps)
	logger := handler.deps.Logger

	// Build list of paths that skip authentication
	authSkipPaths := []string{"/health"}

	// Determine metrics path
	metricsPath := "/metrics"
	if cfg != nil && cfg.MetricsEnabled {
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	// Global middleware stack (order matters)
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(observability.Middleware())

	// Body size limit (default: 10MB)
	bodySizeLimit := config.DefaultBodySizeLimit
	if cfg != nil && cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	// Authentication (skips public paths)
	if cfg != nil && cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	e.POST("/api/placement", handler.Placement)
	e.GET("/api/search", handler.Search)
	e.POST("/api/retrieve", handler.Retrieve)
	e.POST("/api/place", handler.Place)

	e.POST("/api/items", handler.CreateItem)
	e.GET("/api/items", handler.ListItems)
	e.GET("/api/items/:itemId", handler.GetItem)
	e.POST("/api/containers", handler.CreateContainer)
	e.GET("/api/containers", handler.ListContainers)
	e.GET("/api/containers/:containerId", handler.GetContainer)
	e.GET("/api/containers/:containerId/analysis", handler.ContainerAnalysis)
	e.POST("/api/rearrangement/plan", handler.RearrangementPlan)

	e.GET("/api/waste/identify", handler.WasteIdentify)
	e.POST("/api/waste/return-plan", handler.WasteReturnPlan)
	e.POST("/api/waste/complete-undocking", handler.WasteCompleteUndocking)

	e.POST("/api/simulate/day", handler.Simulate)

	e.POST("/api/import/items", handler.ImportItems)
	e.POST("/api/import/containers", handler.ImportContainers)
	e.GET("/api/export/arrangement", handler.ExportArrangement)

	e.GET("/api/logs", handler.Logs)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// requestLogger logs one line per request through the configured slog logger.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				logger.Error("request", attrs...)
			} else {
				logger.Info("request", attrs...)
			}
			return nil
		},
	})
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
