package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"HomePulse/internal/models"
	"HomePulse/internal/storage"
	"HomePulse/pkg/uuidutil"
)

// Channel delivers one alert to some notification sink. A failing channel
// never prevents the alert from being recorded or other channels from firing.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert models.Alert) error
}

// Manager records alerts in a bounded most-recent ring and fans them out to
// the configured channels.
type Manager struct {
	mu       sync.RWMutex
	recent   []models.Alert
	capacity int

	channels []Channel
	store    storage.MetricStore
	logger   *slog.Logger
}

type ManagerConfig struct {
	HistorySize int
}

func NewManager(cfg ManagerConfig, store storage.MetricStore, logger *slog.Logger) *Manager {
	capacity := cfg.HistorySize
	if capacity <= 0 {
		capacity = 200
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		capacity: capacity,
		store:    store,
		logger:   logger,
	}
}

// RegisterChannel adds a notification sink. Not safe to call after the
// monitor starts; wiring happens once in the container.
func (m *Manager) RegisterChannel(ch Channel) {
	m.channels = append(m.channels, ch)
}

// SendAlert assigns identity and timestamp if absent, records the alert and
// dispatches it to every channel. Channel failures are isolated per channel.
func (m *Manager) SendAlert(ctx context.Context, alert models.Alert) models.Alert {
	if alert.ID == "" {
		alert.ID = uuidutil.New()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.Severity == "" {
		alert.Severity = models.SeverityInfo
	}

	m.mu.Lock()
	m.recent = append(m.recent, alert)
	if len(m.recent) > m.capacity {
		m.recent = m.recent[len(m.recent)-m.capacity:]
	}
	m.mu.Unlock()

	for _, ch := range m.channels {
		if err := ch.Send(ctx, alert); err != nil {
			m.logger.Warn("alert channel dispatch failed",
				"error", err,
				"channel", ch.Name(),
				"alert_id", alert.ID,
			)
		}
	}

	if m.store != nil {
		if err := m.store.InsertAlert(ctx, alert); err != nil {
			m.logger.Warn("failed to persist alert",
				"error", err,
				"alert_id", alert.ID,
			)
		}
	}

	m.logger.Info("alert raised",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"service_id", alert.ServiceID,
		"message", alert.Message,
	)

	return alert
}

// RecentAlerts returns up to n alerts, most recent first.
func (m *Manager) RecentAlerts(n int) []models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.recent) {
		n = len(m.recent)
	}

	out := make([]models.Alert, 0, n)
	for i := len(m.recent) - 1; i >= len(m.recent)-n; i-- {
		out = append(out, m.recent[i])
	}
	return out
}

// Acknowledge marks an alert acknowledged. Idempotent and best-effort: an
// unknown id or a repeated ack is a silent no-op.
func (m *Manager) Acknowledge(id, acknowledgedBy string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.recent {
		if m.recent[i].ID != id {
			continue
		}
		if m.recent[i].AcknowledgedAt != nil {
			return
		}
		now := time.Now()
		m.recent[i].AcknowledgedBy = acknowledgedBy
		m.recent[i].AcknowledgedAt = &now
		return
	}
}

// ActiveChannels lists the names of the registered channels.
func (m *Manager) ActiveChannels() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
