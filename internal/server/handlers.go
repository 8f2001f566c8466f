package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"HomePulse/internal/alerts"
	"HomePulse/internal/apperrors"
	"HomePulse/internal/models"
	"HomePulse/internal/monitor"
	"HomePulse/internal/realtime"
)

type Handlers struct {
	monitor *monitor.Monitor
	alerts  *alerts.Manager
	hub     *realtime.Hub
	logger  *slog.Logger
}

func NewHandlers(mon *monitor.Monitor, alertManager *alerts.Manager, hub *realtime.Hub, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		monitor: mon,
		alerts:  alertManager,
		hub:     hub,
		logger:  logger,
	}
}

// GetStatuses is the polling fallback for clients without a socket.
func (h *Handlers) GetStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.GetAllStatuses())
}

// GetServers returns the full state snapshot per target.
func (h *Handlers) GetServers(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse("servers", gin.H{
		"servers": h.monitor.States(),
	}))
}

// AddServer registers a new monitored target.
func (h *Handlers) AddServer(c *gin.Context) {
	var target models.ServiceTarget
	if err := c.ShouldBindJSON(&target); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "body must be a service target"))
		return
	}

	if err := h.monitor.AddServer(target); err != nil {
		h.respondError(c, err, "add server failed")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse("server_added", gin.H{
		"id": target.ID,
	}))
}

// RemoveServer unregisters a target and purges its data.
func (h *Handlers) RemoveServer(c *gin.Context) {
	id := c.Param("id")

	if err := h.monitor.RemoveServer(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "remove server failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("server_removed", gin.H{"id": id}))
}

// CheckServer triggers one on-demand probe.
func (h *Handlers) CheckServer(c *gin.Context) {
	id := c.Param("id")

	state, err := h.monitor.CheckSingleServer(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "on-demand check failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("check_complete", gin.H{"state": state}))
}

// GetServerMetrics returns aggregated metrics over ?range= (default 1h).
func (h *Handlers) GetServerMetrics(c *gin.Context) {
	id := c.Param("id")
	timeRange := c.DefaultQuery("range", "1h")

	metrics, err := h.monitor.GetServerMetrics(c.Request.Context(), id, timeRange)
	if err != nil {
		h.respondError(c, err, "metrics query failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("metrics", gin.H{"metrics": metrics}))
}

// GetServerInsights returns analytics trends for one target.
func (h *Handlers) GetServerInsights(c *gin.Context) {
	id := c.Param("id")
	timeRange := c.DefaultQuery("range", "24h")

	insights, err := h.monitor.GetServiceInsights(c.Request.Context(), id, timeRange)
	if err != nil {
		h.respondError(c, err, "insights query failed")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("insights", gin.H{"insights": insights}))
}

// GetAlerts returns the most recent alerts, newest first.
func (h *Handlers) GetAlerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	c.JSON(http.StatusOK, SuccessResponse("alerts", gin.H{
		"alerts": h.alerts.RecentAlerts(limit),
	}))
}

// AcknowledgeAlert marks an alert acknowledged. Best-effort, always 200.
func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	var req struct {
		AcknowledgedBy string `json:"acknowledged_by"`
	}
	_ = c.ShouldBindJSON(&req)

	h.alerts.Acknowledge(c.Param("id"), req.AcknowledgedBy)
	c.JSON(http.StatusOK, SuccessResponse("acknowledged", gin.H{"alert_id": c.Param("id")}))
}

// GetStats exposes the monitor's self report.
func (h *Handlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse("stats", gin.H{
		"stats":            h.monitor.GetMonitoringStats(c.Request.Context()),
		"realtime_clients": h.hub.SessionCount(),
	}))
}

func (h *Handlers) respondError(c *gin.Context, err error, logMessage string) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse("validation_error", err.Error()))
	case errors.Is(err, apperrors.ErrServerNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse("not_found", err.Error()))
	default:
		h.logger.Error(logMessage, "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, ErrorResponse("internal_error", err.Error()))
	}
}
