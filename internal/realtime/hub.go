package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"HomePulse/internal/apperrors"
	"HomePulse/internal/models"
	"HomePulse/pkg/uuidutil"
)

// MonitorAPI is what the hub needs from the orchestrator. Requests coming in
// over the socket only ever read snapshots or trigger single on-demand checks.
type MonitorAPI interface {
	GetAllStatuses() map[string]models.ServiceStatus
	GetServiceState(id string) (models.ServiceState, error)
	CheckSingleServer(ctx context.Context, id string) (models.ServiceState, error)
	GetServerMetrics(ctx context.Context, id, timeRange string) (models.ServiceMetrics, error)
	GetMonitoringStats(ctx context.Context) models.MonitoringStats
	SystemHealth() models.SystemHealth
}

// AlertAPI is the alert surface exposed to realtime clients.
type AlertAPI interface {
	RecentAlerts(n int) []models.Alert
	Acknowledge(id, acknowledgedBy string)
}

const (
	TopicAllStatus    = "servers:status"
	TopicDashboard    = "dashboard:overview"
	TopicAlerts       = "alerts"
	TopicSystemHealth = "system:health"
)

func topicServerStatus(id string) string  { return fmt.Sprintf("server:%s:status", id) }
func topicServerMetrics(id string) string { return fmt.Sprintf("server:%s:metrics", id) }

type handlerFunc func(ctx context.Context, s *Session, msg ClientMessage)

// Hub manages realtime sessions, topic subscriptions and fan-out. Sessions,
// topic membership and rate counters are owned exclusively by the hub.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	topics   map[string]map[string]*Session
	// subscriptions mirrors topics per session for cheap teardown.
	subscriptions map[string]map[string]bool
	settings      map[string]interface{}

	handlers map[string]handlerFunc
	limiter  *rateLimiter
	monitor  MonitorAPI
	alerts   AlertAPI

	requestsPerMinute      int
	checkRequestsPerMinute int

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type Config struct {
	RequestsPerMinute      int
	CheckRequestsPerMinute int
}

func NewHub(monitor MonitorAPI, alerts AlertAPI, cfg Config, logger *slog.Logger) *Hub {
	requests := cfg.RequestsPerMinute
	if requests <= 0 {
		requests = 30
	}

	checkRequests := cfg.CheckRequestsPerMinute
	if checkRequests <= 0 {
		checkRequests = 5
	}

	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		sessions:               make(map[string]*Session),
		topics:                 make(map[string]map[string]*Session),
		subscriptions:          make(map[string]map[string]bool),
		settings:               make(map[string]interface{}),
		limiter:                newRateLimiter(time.Minute),
		monitor:                monitor,
		alerts:                 alerts,
		requestsPerMinute:      requests,
		checkRequestsPerMinute: checkRequests,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Dashboard is LAN-facing and unauthenticated by design.
				return true
			},
		},
		logger: logger,
	}

	h.handlers = map[string]handlerFunc{
		"subscribe":         h.handleSubscribe,
		"unsubscribe":       h.handleUnsubscribe,
		"ping":              h.handlePing,
		"request:metrics":   h.handleRequestMetrics,
		"request:status":    h.handleRequestStatus,
		"request:check":     h.handleRequestCheck,
		"settings:update":   h.handleSettingsUpdate,
		"alert:acknowledge": h.handleAlertAcknowledge,
		"custom:event":      h.handleCustomEvent,
	}

	return h
}

// HandleConnection upgrades the request and serves the session until it
// disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", "error", err)
		return
	}

	session := newSession(uuidutil.New(), c.ClientIP(), conn)
	h.register(session)
	h.sendInitialState(session)

	h.readLoop(c.Request.Context(), session)
	h.unregister(session)
}

// Attach registers an already-established connection. Used by tests; the
// production path goes through HandleConnection.
func (h *Hub) Attach(id, remoteAddr string, conn wsConn) *Session {
	session := newSession(id, remoteAddr, conn)
	h.register(session)
	return session
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.subscriptions[s.id] = make(map[string]bool)
	h.mu.Unlock()

	h.logger.Info("realtime client connected",
		"session_id", s.id,
		"remote_addr", s.remoteAddr,
	)
}

// unregister tears the session down: topic membership, rate counters and the
// connection itself.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s.id)
	for topic := range h.subscriptions[s.id] {
		delete(h.topics[topic], s.id)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.subscriptions, s.id)
	h.mu.Unlock()

	h.limiter.forgetClient(s.id)
	_ = s.conn.Close()

	h.logger.Info("realtime client disconnected", "session_id", s.id)
}

func (h *Hub) sendInitialState(s *Session) {
	h.trySend(s, event("initial:server_statuses", h.monitor.GetAllStatuses()))
	h.trySend(s, event("initial:alerts", h.alerts.RecentAlerts(20)))
	h.trySend(s, event("initial:system_health", h.monitor.SystemHealth()))

	h.mu.RLock()
	settings := make(map[string]interface{}, len(h.settings))
	for k, v := range h.settings {
		settings[k] = v
	}
	h.mu.RUnlock()
	h.trySend(s, event("initial:dashboard_config", settings))
}

func (h *Hub) readLoop(ctx context.Context, s *Session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			h.logger.Debug("websocket read ended", "session_id", s.id, "error", err)
			return
		}

		s.touch()

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.trySend(s, errorEvent("error", "invalid_message", "message must be JSON with a type field"))
			continue
		}

		h.Dispatch(ctx, s, msg)
	}
}

// Dispatch routes one inbound message through rate limiting to its handler.
// Handler errors become structured error events, never transport failures.
func (h *Hub) Dispatch(ctx context.Context, s *Session, msg ClientMessage) {
	handler, ok := h.handlers[msg.Type]
	if !ok {
		h.trySend(s, errorEvent("error", "unknown_type", fmt.Sprintf("unknown message type %q", msg.Type)))
		return
	}

	limit := h.requestsPerMinute
	if msg.Type == "request:check" {
		limit = h.checkRequestsPerMinute
	}

	if !h.limiter.allow(s.id, msg.Type, limit) {
		h.trySend(s, errorEvent(msg.Type+":error", "rate_limited",
			fmt.Sprintf("rate limit exceeded for %s (%d/min)", msg.Type, limit)))
		return
	}

	handler(ctx, s, msg)
}

// --- inbound handlers ---

// resolveTopic maps a subscription request onto a topic name. Unknown kinds
// are a client-visible error, not a protocol failure.
func (h *Hub) resolveTopic(msg ClientMessage) (string, error) {
	kind, _ := msg.Data["type"].(string)
	if kind == "" {
		return "", errors.New("subscription requires data.type")
	}

	switch kind {
	case "server:status":
		if msg.ServerID == "" {
			return "", errors.New("server:status subscription requires server_id")
		}
		return topicServerStatus(msg.ServerID), nil
	case "server:metrics":
		if msg.ServerID == "" {
			return "", errors.New("server:metrics subscription requires server_id")
		}
		return topicServerMetrics(msg.ServerID), nil
	case "servers:status":
		return TopicAllStatus, nil
	case "dashboard":
		return TopicDashboard, nil
	case "alerts":
		return TopicAlerts, nil
	case "system:health":
		return TopicSystemHealth, nil
	default:
		return "", fmt.Errorf("unknown subscription type %q", kind)
	}
}

func (h *Hub) handleSubscribe(_ context.Context, s *Session, msg ClientMessage) {
	topic, err := h.resolveTopic(msg)
	if err != nil {
		h.trySend(s, errorEvent("subscription:error", "invalid_subscription", err.Error()))
		return
	}

	h.mu.Lock()
	subs, registered := h.subscriptions[s.id]
	if !registered {
		// Session already torn down.
		h.mu.Unlock()
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]*Session)
	}
	h.topics[topic][s.id] = s
	subs[topic] = true
	h.mu.Unlock()

	h.trySend(s, event("subscription:confirmed", gin.H{"topic": topic}))
}

func (h *Hub) handleUnsubscribe(_ context.Context, s *Session, msg ClientMessage) {
	topic, err := h.resolveTopic(msg)
	if err != nil {
		h.trySend(s, errorEvent("subscription:error", "invalid_subscription", err.Error()))
		return
	}

	h.mu.Lock()
	delete(h.topics[topic], s.id)
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}
	delete(h.subscriptions[s.id], topic)
	h.mu.Unlock()

	h.trySend(s, event("unsubscription:confirmed", gin.H{"topic": topic}))
}

func (h *Hub) handlePing(_ context.Context, s *Session, _ ClientMessage) {
	h.trySend(s, event("pong", nil))
}

func (h *Hub) handleRequestMetrics(ctx context.Context, s *Session, msg ClientMessage) {
	metrics, err := h.monitor.GetServerMetrics(ctx, msg.ServerID, msg.TimeRange)
	if err != nil {
		h.trySend(s, errorEvent("metrics:error", errorCode(err), err.Error()))
		return
	}
	h.trySend(s, event("metrics:response", metrics))
}

func (h *Hub) handleRequestStatus(_ context.Context, s *Session, msg ClientMessage) {
	state, err := h.monitor.GetServiceState(msg.ServerID)
	if err != nil {
		h.trySend(s, errorEvent("status:error", errorCode(err), err.Error()))
		return
	}
	h.trySend(s, event("status:response", state))
}

func (h *Hub) handleRequestCheck(ctx context.Context, s *Session, msg ClientMessage) {
	state, err := h.monitor.CheckSingleServer(ctx, msg.ServerID)
	if err != nil {
		h.trySend(s, errorEvent("check:error", errorCode(err), err.Error()))
		return
	}
	h.trySend(s, event("check:response", state))
}

func (h *Hub) handleSettingsUpdate(_ context.Context, s *Session, msg ClientMessage) {
	h.mu.Lock()
	for k, v := range msg.Data {
		h.settings[k] = v
	}
	h.mu.Unlock()

	h.trySend(s, event("settings:response", gin.H{"updated": len(msg.Data)}))
	h.broadcastToTopic(TopicDashboard, event("settings:updated", msg.Data))
}

func (h *Hub) handleAlertAcknowledge(_ context.Context, s *Session, msg ClientMessage) {
	if msg.AlertID == "" {
		h.trySend(s, errorEvent("acknowledge:error", "invalid_request", "alert_id is required"))
		return
	}

	h.alerts.Acknowledge(msg.AlertID, msg.AcknowledgedBy)
	h.trySend(s, event("acknowledge:response", gin.H{"alert_id": msg.AlertID}))
	h.broadcastToTopic(TopicAlerts, event("alert:acknowledged", gin.H{
		"alert_id":        msg.AlertID,
		"acknowledged_by": msg.AcknowledgedBy,
	}))
}

func (h *Hub) handleCustomEvent(_ context.Context, s *Session, msg ClientMessage) {
	if msg.Broadcast {
		h.broadcastToTopic(TopicDashboard, event("custom:event", msg.Data))
	}
	h.trySend(s, event("custom:response", gin.H{"broadcast": msg.Broadcast}))
}

// --- outbound broadcast operations ---

func (h *Hub) BroadcastServerStatus(state models.ServiceState) {
	msg := event("server:status_update", state)
	h.broadcastToTopic(topicServerStatus(state.ID), msg)
	h.broadcastToTopic(TopicAllStatus, msg)
}

func (h *Hub) BroadcastServersStatus(statuses map[string]models.ServiceStatus) {
	h.broadcastToTopic(TopicAllStatus, event("servers:status_update", statuses))
}

func (h *Hub) BroadcastServerMetrics(serverID string, metrics models.ServiceMetrics) {
	h.broadcastToTopic(topicServerMetrics(serverID), event("server:metrics_update", metrics))
}

// MetricsSubscribers reports the server ids that have at least one live
// server:<id>:metrics subscription, so the monitor only aggregates metrics
// someone is watching.
func (h *Hub) MetricsSubscribers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ids []string
	for topic, members := range h.topics {
		if len(members) == 0 {
			continue
		}
		id, ok := strings.CutPrefix(topic, "server:")
		if !ok {
			continue
		}
		id, ok = strings.CutSuffix(id, ":metrics")
		if !ok || id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) BroadcastDashboardUpdate(health models.SystemHealth) {
	h.broadcastToTopic(TopicDashboard, event("dashboard:overview_update", health))
}

func (h *Hub) BroadcastAlert(alert models.Alert) {
	h.broadcastToTopic(TopicAlerts, event("alert:new", alert))
}

func (h *Hub) BroadcastSystemHealth(health models.SystemHealth) {
	h.broadcastToTopic(TopicSystemHealth, event("system:health_update", health))
}

// Name and Send make the hub a notification channel: alerts raised anywhere
// fan out to subscribed realtime clients like any other sink.
func (h *Hub) Name() string { return "realtime" }

func (h *Hub) Send(_ context.Context, alert models.Alert) error {
	h.BroadcastAlert(alert)
	return nil
}

// broadcastToTopic delivers to a snapshot of the membership. A failed send
// drops only that session; the remaining recipients still get the message.
func (h *Hub) broadcastToTopic(topic string, msg ServerMessage) {
	h.mu.RLock()
	members := make([]*Session, 0, len(h.topics[topic]))
	for _, s := range h.topics[topic] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		if err := s.send(msg); err != nil {
			h.logger.Warn("broadcast send failed, dropping client",
				"error", err,
				"session_id", s.id,
				"topic", topic,
			)
			h.unregister(s)
		}
	}
}

// trySend delivers one direct message; a failure tears the session down.
func (h *Hub) trySend(s *Session, msg ServerMessage) {
	if err := s.send(msg); err != nil {
		h.logger.Warn("send failed, dropping client",
			"error", err,
			"session_id", s.id,
		)
		h.unregister(s)
	}
}

// SessionCount reports connected clients.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// TopicMembers reports current membership size for a topic.
func (h *Hub) TopicMembers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrServerNotFound):
		return "not_found"
	case apperrors.IsValidation(err):
		return "invalid_request"
	default:
		return "internal_error"
	}
}
