package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"HomePulse/internal/alerts"
	"HomePulse/internal/analytics"
	"HomePulse/internal/apperrors"
	"HomePulse/internal/cache"
	"HomePulse/internal/metrics"
	"HomePulse/internal/models"
	"HomePulse/internal/storage"
	"HomePulse/pkg/validator"
)

// Prober is the protocol-checker surface the monitor drives each sweep.
type Prober interface {
	DetectProtocol(rawURL string) models.Protocol
	CheckService(ctx context.Context, target models.ServiceTarget) models.CheckResult
	CheckServices(ctx context.Context, targets []models.ServiceTarget) map[string]models.CheckResult
	AvailableProtocols() []models.Protocol
}

// Broadcaster receives sweep outcomes after all reconciliations complete.
type Broadcaster interface {
	BroadcastServerStatus(state models.ServiceState)
	BroadcastServersStatus(statuses map[string]models.ServiceStatus)
	BroadcastServerMetrics(serverID string, metrics models.ServiceMetrics)
	BroadcastDashboardUpdate(health models.SystemHealth)
	BroadcastSystemHealth(health models.SystemHealth)
	// MetricsSubscribers lists server ids with a live metrics subscription.
	MetricsSubscribers() []string
}

// Monitor owns the authoritative ServiceState map and drives the polling
// loop. All mutation of service state happens here; every other component
// reads snapshots through the query methods.
type Monitor struct {
	mu      sync.RWMutex
	targets map[string]models.ServiceTarget
	states  map[string]*models.ServiceState

	prober    Prober
	collector *metrics.Collector
	cache     cache.Cache
	alerts    *alerts.Manager
	store     storage.MetricStore
	engine    *analytics.Engine

	broadcaster Broadcaster

	interval             time.Duration
	highLatencyThreshold time.Duration
	cacheFreshness       time.Duration

	running   bool
	sweeping  atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	startedAt time.Time
	lastSweep atomic.Pointer[time.Time]

	logger *slog.Logger
}

type Config struct {
	Interval             time.Duration
	HighLatencyThreshold time.Duration
	CacheFreshness       time.Duration
}

func New(
	prober Prober,
	collector *metrics.Collector,
	cacheLayer cache.Cache,
	alertManager *alerts.Manager,
	store storage.MetricStore,
	engine *analytics.Engine,
	cfg Config,
	logger *slog.Logger,
) *Monitor {

	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	highLatency := cfg.HighLatencyThreshold
	if highLatency == 0 {
		highLatency = 5 * time.Second
	}

	freshness := cfg.CacheFreshness
	if freshness == 0 {
		freshness = 30 * time.Second
	}

	if cacheLayer == nil {
		cacheLayer = cache.NewNoop()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		targets:              make(map[string]models.ServiceTarget),
		states:               make(map[string]*models.ServiceState),
		prober:               prober,
		collector:            collector,
		cache:                cacheLayer,
		alerts:               alertManager,
		store:                store,
		engine:               engine,
		interval:             interval,
		highLatencyThreshold: highLatency,
		cacheFreshness:       freshness,
		startedAt:            time.Now(),
		logger:               logger,
	}
}

// SetBroadcaster wires the realtime hub in after construction; the hub needs
// the monitor for query handling, so the dependency runs both ways.
func (m *Monitor) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcaster = b
}

// Start launches the sweep loop: one immediate sweep, then one per interval.
// No-op with a warning when already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Warn("monitor already running, ignoring start")
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("starting status monitor",
		"interval", m.interval,
		"targets", m.TargetCount(),
	)

	go m.run()
}

// Stop cancels the loop and waits for it to drain. In-flight probes from the
// last sweep finish and their results are still applied. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done
	m.logger.Info("status monitor stopped")
}

// The next delay starts counting after a sweep completes, so slow sweeps
// never overlap.
func (m *Monitor) run() {
	defer close(m.doneCh)

	m.RunSweep(context.Background())

	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			m.RunSweep(context.Background())
			timer.Reset(m.interval)
		case <-m.stopCh:
			return
		}
	}
}

// RunSweep probes every registered target concurrently, reconciles all
// results, records metrics, and only then notifies the broadcaster. At most
// one sweep runs at a time; a second caller is skipped, never queued.
func (m *Monitor) RunSweep(ctx context.Context) {
	if !m.sweeping.CompareAndSwap(false, true) {
		m.logger.Warn("sweep already in flight, skipping")
		return
	}
	defer m.sweeping.Store(false)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("sweep panicked, loop continues", "panic", r)
		}
	}()

	targets := m.Targets()
	results := m.prober.CheckServices(ctx, targets)

	// Broadcasts are deferred until every result is reconciled, so a
	// status push never exposes a half-applied sweep.
	var transitions []models.ServiceState
	for id, result := range results {
		if snapshot, transitioned := m.reconcile(ctx, id, result); transitioned {
			transitions = append(transitions, snapshot)
		}
	}

	health := m.computeHealth()
	m.collector.RecordSystemHealth(health)
	m.collector.SaveMetrics(ctx)

	now := time.Now()
	m.lastSweep.Store(&now)

	if b := m.currentBroadcaster(); b != nil {
		for _, snapshot := range transitions {
			b.BroadcastServerStatus(snapshot)
		}
		b.BroadcastServersStatus(m.GetAllStatuses())
		b.BroadcastDashboardUpdate(health)
		b.BroadcastSystemHealth(health)
		m.pushSubscribedMetrics(b)
	}

	m.logger.Debug("sweep complete",
		"targets", len(targets),
		"online", health.OnlineServices,
		"offline", health.OfflineServices,
		"health_score", health.HealthScore,
	)
}

// reconcile applies one CheckResult to its ServiceState: detects the status
// transition, maintains the failure streak, records a sample, refreshes the
// cache entry and raises alerts. The state update itself is atomic under the
// monitor lock. Broadcasting is the caller's job so sweep-driven pushes can
// wait for the whole sweep.
func (m *Monitor) reconcile(ctx context.Context, id string, result models.CheckResult) (models.ServiceState, bool) {
	now := time.Now()

	m.mu.Lock()
	state, ok := m.states[id]
	if !ok {
		// Target was removed while its probe was in flight.
		m.mu.Unlock()
		return models.ServiceState{}, false
	}

	previous := state.Status
	state.Status = result.Status
	state.LastCheck = &now
	state.ResponseTimeMs = result.ResponseTimeMs
	state.Error = result.Error

	if result.Status == models.StatusOnline {
		state.ConsecutiveFailures = 0
	} else {
		state.ConsecutiveFailures++
	}

	transitioned := previous != result.Status
	if transitioned {
		state.LastStatusChange = now
	}

	snapshot := *state
	target := m.targets[id]
	m.mu.Unlock()

	m.collector.RecordCheck(id, models.MetricSample{
		Status:         result.Status,
		ResponseTimeMs: result.ResponseTimeMs,
		Timestamp:      now,
	})

	m.cache.CacheServerStatus(ctx, id, snapshot)

	if transitioned {
		m.raiseTransitionAlert(ctx, target, previous, snapshot)
	}
	if result.ResponseTimeMs != nil && *result.ResponseTimeMs > m.highLatencyThreshold.Milliseconds() {
		m.raiseLatencyAlert(ctx, target, snapshot)
	}

	return snapshot, transitioned
}

// pushSubscribedMetrics sends fresh last-hour aggregates to the services
// with live metrics subscriptions.
func (m *Monitor) pushSubscribedMetrics(b Broadcaster) {
	to := time.Now()
	from := to.Add(-time.Hour)

	for _, id := range b.MetricsSubscribers() {
		if aggregated, ok := m.collector.ServiceMetrics(id, from, to); ok {
			b.BroadcastServerMetrics(id, aggregated)
		}
	}
}

func (m *Monitor) raiseTransitionAlert(ctx context.Context, target models.ServiceTarget, previous models.ServiceStatus, state models.ServiceState) {
	severity := models.SeverityInfo
	message := fmt.Sprintf("%s is back online", target.Name)
	if state.Status == models.StatusOffline {
		severity = models.SeverityError
		message = fmt.Sprintf("%s went offline: %s", target.Name, state.Error)
	}

	m.alerts.SendAlert(ctx, models.Alert{
		Type:           models.AlertTypeStatusChange,
		Severity:       severity,
		ServiceID:      target.ID,
		ServiceName:    target.Name,
		Message:        message,
		PreviousStatus: previous,
		CurrentStatus:  state.Status,
		ResponseTimeMs: state.ResponseTimeMs,
	})
}

func (m *Monitor) raiseLatencyAlert(ctx context.Context, target models.ServiceTarget, state models.ServiceState) {
	m.alerts.SendAlert(ctx, models.Alert{
		Type:           models.AlertTypePerformance,
		Severity:       models.SeverityWarning,
		ServiceID:      target.ID,
		ServiceName:    target.Name,
		Message:        fmt.Sprintf("%s responded in %dms (threshold %dms)", target.Name, *state.ResponseTimeMs, m.highLatencyThreshold.Milliseconds()),
		CurrentStatus:  state.Status,
		ResponseTimeMs: state.ResponseTimeMs,
	})
}

// CheckSingleServer reuses the cached status when fresh enough, otherwise
// performs one on-demand probe and reconciles it.
func (m *Monitor) CheckSingleServer(ctx context.Context, id string) (models.ServiceState, error) {
	m.mu.RLock()
	target, ok := m.targets[id]
	m.mu.RUnlock()
	if !ok {
		return models.ServiceState{}, fmt.Errorf("check server %s: %w", id, apperrors.ErrServerNotFound)
	}

	if cached, hit := m.cache.CachedServerStatus(ctx, id); hit {
		if cached.LastCheck != nil && time.Since(*cached.LastCheck) < m.cacheFreshness {
			m.logger.Debug("serving cached status", "service_id", id)
			return cached, nil
		}
	}

	result := m.prober.CheckService(ctx, target)
	snapshot, transitioned := m.reconcile(ctx, id, result)

	// On-demand checks broadcast right away; there is no sweep to wait for.
	if b := m.currentBroadcaster(); b != nil && transitioned {
		b.BroadcastServerStatus(snapshot)
	}

	return m.GetServiceState(id)
}

// GetServerMetrics prefers the cache, then the durable store, then the
// in-memory collector. A dead cache or store degrades, never errors.
func (m *Monitor) GetServerMetrics(ctx context.Context, id, timeRange string) (models.ServiceMetrics, error) {
	m.mu.RLock()
	_, ok := m.targets[id]
	m.mu.RUnlock()
	if !ok {
		return models.ServiceMetrics{}, fmt.Errorf("metrics for %s: %w", id, apperrors.ErrServerNotFound)
	}

	duration, err := ParseTimeRange(timeRange)
	if err != nil {
		return models.ServiceMetrics{}, err
	}
	to := time.Now()
	from := to.Add(-duration)

	if cached, hit := m.cache.CachedServerMetrics(ctx, id, timeRange); hit {
		return cached, nil
	}

	if m.store != nil {
		aggregated, err := m.store.AggregateRange(ctx, id, from, to)
		if err == nil {
			m.cache.CacheServerMetrics(ctx, id, timeRange, *aggregated)
			return *aggregated, nil
		}
		m.logger.Warn("metric store unavailable, falling back to memory",
			"error", err,
			"service_id", id,
		)
	}

	if aggregated, ok := m.collector.ServiceMetrics(id, from, to); ok {
		return aggregated, nil
	}

	// No samples anywhere yet: an empty aggregate, not an error.
	return models.ServiceMetrics{ServiceID: id, From: from, To: to, Source: "memory"}, nil
}

// GetServiceInsights runs the analytics engine over the service's samples.
func (m *Monitor) GetServiceInsights(ctx context.Context, id, timeRange string) (models.ServiceInsights, error) {
	m.mu.RLock()
	_, ok := m.targets[id]
	m.mu.RUnlock()
	if !ok {
		return models.ServiceInsights{}, fmt.Errorf("insights for %s: %w", id, apperrors.ErrServerNotFound)
	}

	duration, err := ParseTimeRange(timeRange)
	if err != nil {
		return models.ServiceInsights{}, err
	}
	to := time.Now()
	from := to.Add(-duration)

	samples := m.collector.Samples(id, from, to)
	if len(samples) == 0 && m.store != nil {
		if stored, err := m.store.SamplesRange(ctx, id, from, to); err == nil {
			samples = stored
		}
	}

	return m.engine.AnalyzeService(id, samples), nil
}

// AddServer registers a target and seeds its pending state.
func (m *Monitor) AddServer(target models.ServiceTarget) error {
	if target.ID == "" {
		return apperrors.NewValidationError("id", "must not be empty")
	}
	if target.Name == "" {
		return apperrors.NewValidationError("name", "must not be empty")
	}
	if target.URL == "" {
		return apperrors.NewValidationError("url", "must not be empty")
	}
	if !validator.ValidateTarget(target.URL) {
		return apperrors.NewValidationError("url", fmt.Sprintf("unsupported target %q", target.URL))
	}
	if target.Protocol != "" && !validator.ValidateProtocol(string(target.Protocol)) {
		return apperrors.NewValidationError("protocol", fmt.Sprintf("unknown protocol %q", target.Protocol))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.targets[target.ID]; exists {
		return apperrors.NewValidationError("id", fmt.Sprintf("target %q already registered", target.ID))
	}

	if target.Protocol == "" {
		target.Protocol = m.prober.DetectProtocol(target.URL)
	}

	m.targets[target.ID] = target
	m.states[target.ID] = &models.ServiceState{
		ID:               target.ID,
		Status:           models.StatusPending,
		LastStatusChange: time.Now(),
	}

	m.logger.Info("server registered",
		"service_id", target.ID,
		"name", target.Name,
		"url", target.URL,
		"protocol", target.Protocol,
	)

	return nil
}

// RemoveServer unregisters a target and purges its cached and recorded data.
func (m *Monitor) RemoveServer(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.targets[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("remove server %s: %w", id, apperrors.ErrServerNotFound)
	}
	delete(m.targets, id)
	delete(m.states, id)
	m.mu.Unlock()

	m.cache.ClearServer(ctx, id)
	m.collector.RemoveService(id)

	if m.store != nil {
		if err := m.store.DeleteService(ctx, id); err != nil {
			m.logger.Warn("failed to purge stored samples", "error", err, "service_id", id)
		}
	}

	m.logger.Info("server removed", "service_id", id)
	return nil
}

// GetServiceState returns a copy of one service's state.
func (m *Monitor) GetServiceState(id string) (models.ServiceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[id]
	if !ok {
		return models.ServiceState{}, fmt.Errorf("state for %s: %w", id, apperrors.ErrServerNotFound)
	}
	return *state, nil
}

// GetAllStatuses is the fallback-polling snapshot: id -> status.
func (m *Monitor) GetAllStatuses() map[string]models.ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.ServiceStatus, len(m.states))
	for id, state := range m.states {
		out[id] = state.Status
	}
	return out
}

// States returns copies of every service state.
func (m *Monitor) States() []models.ServiceState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ServiceState, 0, len(m.states))
	for _, state := range m.states {
		out = append(out, *state)
	}
	return out
}

// Targets returns a snapshot of the registered targets.
func (m *Monitor) Targets() []models.ServiceTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ServiceTarget, 0, len(m.targets))
	for _, target := range m.targets {
		out = append(out, target)
	}
	return out
}

func (m *Monitor) TargetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.targets)
}

// SystemHealth returns the current aggregate snapshot.
func (m *Monitor) SystemHealth() models.SystemHealth {
	return m.computeHealth()
}

func (m *Monitor) computeHealth() models.SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := models.SystemHealth{
		Timestamp:     time.Now(),
		TotalServices: len(m.states),
	}

	for _, state := range m.states {
		switch state.Status {
		case models.StatusOnline:
			health.OnlineServices++
		case models.StatusOffline:
			health.OfflineServices++
		default:
			health.PendingServices++
		}
	}

	if health.TotalServices == 0 {
		health.HealthScore = 100
	} else {
		health.HealthScore = int(math.Round(100 * float64(health.OnlineServices) / float64(health.TotalServices)))
	}

	return health
}

// GetMonitoringStats is a pure read of the monitor's own condition.
func (m *Monitor) GetMonitoringStats(ctx context.Context) models.MonitoringStats {
	health := m.computeHealth()

	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()

	stats := models.MonitoringStats{
		TotalServices:   health.TotalServices,
		OnlineServices:  health.OnlineServices,
		OfflineServices: health.OfflineServices,
		PendingServices: health.PendingServices,
		HealthScore:     health.HealthScore,
		LastSweep:       m.lastSweep.Load(),
		UptimeSeconds:   time.Since(m.startedAt).Seconds(),
		Running:         running,
		CacheHealthy:    m.cache.HealthCheck(ctx) == nil,
		StoreAvailable:  m.store != nil,
		TrackedServices: m.collector.TrackedServices(),
		ActiveChannels:  m.alerts.ActiveChannels(),
		Health:          &health,
	}

	return stats
}

// ParseTimeRange converts "30m", "1h", "24h", "7d" into a duration.
func ParseTimeRange(timeRange string) (time.Duration, error) {
	if timeRange == "" {
		return time.Hour, nil
	}

	// time.ParseDuration has no day unit.
	if n := len(timeRange); n > 1 && timeRange[n-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(timeRange, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}

	duration, err := time.ParseDuration(timeRange)
	if err != nil || duration <= 0 {
		return 0, apperrors.NewValidationError("time_range", fmt.Sprintf("cannot parse %q", timeRange))
	}
	return duration, nil
}

func (m *Monitor) currentBroadcaster() Broadcaster {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.broadcaster
}
