package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"HomePulse/internal/realtime"
)

// Server wraps the gin engine serving the REST surface and the websocket
// upgrade endpoint.
type Server struct {
	router     *gin.Engine
	config     *Config
	handlers   *Handlers
	hub        *realtime.Hub
	httpServer *http.Server
	logger     *slog.Logger
}

type Config struct {
	Port int
	Mode string
}

func New(config *Config, handlers *Handlers, hub *realtime.Hub, logger *slog.Logger) *Server {
	if config.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:   gin.New(),
		config:   config,
		handlers: handlers,
		hub:      hub,
		logger:   logger,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddlewares() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.requestIDMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ready", s.readyCheck)

	api := s.router.Group("/api")
	{
		api.GET("/statuses", s.handlers.GetStatuses)
		api.GET("/stats", s.handlers.GetStats)

		servers := api.Group("/servers")
		{
			servers.GET("", s.handlers.GetServers)
			servers.POST("", s.handlers.AddServer)
			servers.DELETE("/:id", s.handlers.RemoveServer)
			servers.POST("/:id/check", s.handlers.CheckServer)
			servers.GET("/:id/metrics", s.handlers.GetServerMetrics)
			servers.GET("/:id/insights", s.handlers.GetServerInsights)
		}

		alerts := api.Group("/alerts")
		{
			alerts.GET("", s.handlers.GetAlerts)
			alerts.POST("/:id/ack", s.handlers.AcknowledgeAlert)
		}
	}

	s.router.GET("/ws", s.hub.HandleConnection)

	s.router.NoRoute(s.notFoundHandler)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "homepulse",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) readyCheck(c *gin.Context) {
	stats := s.handlers.monitor.GetMonitoringStats(c.Request.Context())

	status := http.StatusOK
	if !stats.Running {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"monitor_running": stats.Running,
		"cache_healthy":   stats.CacheHealthy,
		"store_available": stats.StoreAvailable,
		"timestamp":       time.Now().UTC(),
	})
}

func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse("not_found", "endpoint not found"))
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		logFn := s.logger.Info
		if statusCode >= 400 {
			logFn = s.logger.Warn
		}
		if statusCode >= 500 {
			logFn = s.logger.Error
		}

		logFn("HTTP request",
			"status", statusCode,
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", latency,
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// Start blocks and serves HTTP traffic.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server",
		"port", s.config.Port,
		"mode", s.config.Mode,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
