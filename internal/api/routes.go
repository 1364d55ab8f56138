// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rislab/flight-review/internal/storage"
	"github.com/rs/zerolog/log"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store      storage.Store
	SessionMgr SessionManager
	IngestMgr  IngestManager
	Version    string
	Decoders   []string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Recording RecordingHandler
	Panel     PanelHandler
	Hub       *ToggleHub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	hub := NewToggleHub(deps.SessionMgr)
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Decoders),
		Recording: NewRecordingHandler(deps.Store, deps.IngestMgr, deps.SessionMgr),
		Panel:     NewPanelHandler(deps.SessionMgr, hub),
		Hub:       hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)

	// Recording routes
	recGroup := e.Group("/api/recordings")
	recGroup.POST("/upload", handlers.Recording.HandleUploadRecording)
	recGroup.POST("/upload/base64", handlers.Recording.HandleUploadBase64)
	recGroup.GET("/recent", handlers.Recording.HandleGetRecentRecordings)
	recGroup.GET("/:id", handlers.Recording.HandleGetRecording)
	recGroup.DELETE("/:id", handlers.Recording.HandleDeleteRecording)
	recGroup.PUT("/:id", handlers.Recording.HandleRenameRecording)

	// Ingest job routes
	jobGroup := e.Group("/api/jobs")
	jobGroup.GET("/:jobId", handlers.Recording.HandleGetJob)
	jobGroup.GET("/:jobId/stream", handlers.Recording.HandleJobStream)

	// Panel routes
	panelGroup := e.Group("/api/panels")
	panelGroup.POST("", handlers.Panel.HandleCreatePanel)
	panelGroup.GET("/:id", handlers.Panel.HandleGetPanel)
	panelGroup.DELETE("/:id", handlers.Panel.HandleDeletePanel)
	panelGroup.GET("/:id/msgpack", handlers.Panel.HandleGetPanelMsgpack)
	panelGroup.GET("/:id/additional", handlers.Panel.HandleGetAdditionalHTML)
	panelGroup.GET("/:id/figures/:figureId", handlers.Panel.HandleGetFigure)
	panelGroup.GET("/:id/toggle", handlers.Panel.HandleGetToggle)
	panelGroup.POST("/:id/toggle", handlers.Panel.HandleToggle)
	panelGroup.POST("/:id/keepalive", handlers.Panel.HandleKeepAlive)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/panels/:id/ws", handlers.Hub.HandleWebSocket)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, requestLogging bool) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return !requestLogging || path == "/health" || strings.HasSuffix(path, "/stream")
		},
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Str("component", "http").
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
}
