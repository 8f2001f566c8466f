package cache

import (
	"context"

	"HomePulse/internal/models"
)

// Cache fronts the durable stores with fast status/metrics lookups. It is an
// optimization only: reads may miss, writes may be dropped, and neither ever
// surfaces an error to the caller.
type Cache interface {
	CacheServerStatus(ctx context.Context, id string, state models.ServiceState)
	CachedServerStatus(ctx context.Context, id string) (models.ServiceState, bool)
	CacheServerMetrics(ctx context.Context, id, rangeKey string, metrics models.ServiceMetrics)
	CachedServerMetrics(ctx context.Context, id, rangeKey string) (models.ServiceMetrics, bool)
	ClearServer(ctx context.Context, id string)
	HealthCheck(ctx context.Context) error
}

// Noop is the degraded cache used when Redis is disabled or unreachable at
// startup. Every read misses, every write is dropped.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) CacheServerStatus(context.Context, string, models.ServiceState) {}

func (Noop) CachedServerStatus(context.Context, string) (models.ServiceState, bool) {
	return models.ServiceState{}, false
}

func (Noop) CacheServerMetrics(context.Context, string, string, models.ServiceMetrics) {}

func (Noop) CachedServerMetrics(context.Context, string, string) (models.ServiceMetrics, bool) {
	return models.ServiceMetrics{}, false
}

func (Noop) ClearServer(context.Context, string) {}

func (Noop) HealthCheck(context.Context) error { return nil }
