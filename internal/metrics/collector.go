package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"HomePulse/internal/models"
	"HomePulse/internal/storage"
)

// Collector keeps bounded in-memory time series per service plus an aggregate
// system-health series. It is the fallback source for metrics queries when
// the durable store is unavailable.
type Collector struct {
	mu         sync.RWMutex
	series     map[string][]models.MetricSample
	health     []models.SystemHealth
	unflushed  []models.MetricSample
	maxSamples int

	store  storage.MetricStore
	logger *slog.Logger
}

type CollectorConfig struct {
	MaxSamplesPerService int
}

func NewCollector(cfg CollectorConfig, store storage.MetricStore, logger *slog.Logger) *Collector {
	maxSamples := cfg.MaxSamplesPerService
	if maxSamples <= 0 {
		maxSamples = 1000
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Collector{
		series:     make(map[string][]models.MetricSample),
		maxSamples: maxSamples,
		store:      store,
		logger:     logger,
	}
}

// RecordCheck appends one sample to the service's series.
func (c *Collector) RecordCheck(serviceID string, sample models.MetricSample) {
	sample.ServiceID = serviceID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	series := append(c.series[serviceID], sample)
	if len(series) > c.maxSamples {
		series = series[len(series)-c.maxSamples:]
	}
	c.series[serviceID] = series

	if c.store != nil {
		c.unflushed = append(c.unflushed, sample)
	}
}

// RecordSystemHealth appends one aggregate snapshot.
func (c *Collector) RecordSystemHealth(snapshot models.SystemHealth) {
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.health = append(c.health, snapshot)
	if len(c.health) > c.maxSamples {
		c.health = c.health[len(c.health)-c.maxSamples:]
	}
}

// ServiceMetrics aggregates the in-memory samples over [from, to].
func (c *Collector) ServiceMetrics(serviceID string, from, to time.Time) (models.ServiceMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	series, ok := c.series[serviceID]
	if !ok {
		return models.ServiceMetrics{}, false
	}

	metrics := models.ServiceMetrics{
		ServiceID: serviceID,
		From:      from,
		To:        to,
		Source:    "memory",
	}

	var online, withLatency int
	var totalLatency float64
	for _, sample := range series {
		if sample.Timestamp.Before(from) || sample.Timestamp.After(to) {
			continue
		}
		metrics.SampleCount++
		if sample.Status == models.StatusOnline {
			online++
		}
		if sample.ResponseTimeMs != nil {
			withLatency++
			totalLatency += float64(*sample.ResponseTimeMs)
		}
	}

	if metrics.SampleCount > 0 {
		metrics.UptimePercent = float64(online) / float64(metrics.SampleCount) * 100
	}
	if withLatency > 0 {
		metrics.AvgResponseTimeMs = totalLatency / float64(withLatency)
	}

	return metrics, true
}

// Samples returns a copy of the in-memory samples over [from, to].
func (c *Collector) Samples(serviceID string, from, to time.Time) []models.MetricSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.MetricSample
	for _, sample := range c.series[serviceID] {
		if sample.Timestamp.Before(from) || sample.Timestamp.After(to) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// LatestSystemHealth returns the most recent aggregate snapshot.
func (c *Collector) LatestSystemHealth() (models.SystemHealth, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.health) == 0 {
		return models.SystemHealth{}, false
	}
	return c.health[len(c.health)-1], true
}

// TrackedServices reports how many services have at least one sample.
func (c *Collector) TrackedServices() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}

// RemoveService drops the series for a deleted target.
func (c *Collector) RemoveService(serviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.series, serviceID)
}

// SaveMetrics flushes unpersisted samples to the durable store. Best-effort:
// failures are logged and the samples are retried on the next flush.
func (c *Collector) SaveMetrics(ctx context.Context) {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	pending := c.unflushed
	c.unflushed = nil
	c.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	if err := c.store.InsertSamples(ctx, pending); err != nil {
		c.logger.Warn("failed to flush metric samples, will retry",
			"error", err,
			"samples", len(pending),
		)
		c.mu.Lock()
		// Keep the series bound even while the store is down.
		c.unflushed = append(pending, c.unflushed...)
		if len(c.unflushed) > c.maxSamples {
			c.unflushed = c.unflushed[len(c.unflushed)-c.maxSamples:]
		}
		c.mu.Unlock()
	}
}
