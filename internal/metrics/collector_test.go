package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HomePulse/internal/models"
)

type memoryStore struct {
	mu      sync.Mutex
	fail    bool
	flushed []models.MetricSample
}

func (s *memoryStore) InsertSample(_ context.Context, sample models.MetricSample) error {
	return s.InsertSamples(context.Background(), []models.MetricSample{sample})
}

func (s *memoryStore) InsertSamples(_ context.Context, samples []models.MetricSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("connection refused")
	}
	s.flushed = append(s.flushed, samples...)
	return nil
}

func (s *memoryStore) AggregateRange(context.Context, string, time.Time, time.Time) (*models.ServiceMetrics, error) {
	return nil, errors.New("not implemented")
}

func (s *memoryStore) SamplesRange(context.Context, string, time.Time, time.Time) ([]models.MetricSample, error) {
	return nil, errors.New("not implemented")
}

func (s *memoryStore) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
func (s *memoryStore) DeleteService(context.Context, string) error               { return nil }
func (s *memoryStore) InsertAlert(context.Context, models.Alert) error           { return nil }

func (s *memoryStore) flushedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flushed)
}

func millis(ms int64) *int64 { return &ms }

func sampleAt(offset time.Duration, status models.ServiceStatus, latency *int64) models.MetricSample {
	return models.MetricSample{
		Status:         status,
		ResponseTimeMs: latency,
		Timestamp:      time.Now().Add(offset),
	}
}

func TestServiceMetricsAggregation(t *testing.T) {
	collector := NewCollector(CollectorConfig{MaxSamplesPerService: 100}, nil, nil)

	collector.RecordCheck("a", sampleAt(-3*time.Minute, models.StatusOnline, millis(100)))
	collector.RecordCheck("a", sampleAt(-2*time.Minute, models.StatusOnline, millis(300)))
	collector.RecordCheck("a", sampleAt(-time.Minute, models.StatusOffline, nil))

	aggregated, ok := collector.ServiceMetrics("a", time.Now().Add(-time.Hour), time.Now())
	require.True(t, ok)
	assert.Equal(t, 3, aggregated.SampleCount)
	assert.InDelta(t, 66.67, aggregated.UptimePercent, 0.01)
	assert.InDelta(t, 200.0, aggregated.AvgResponseTimeMs, 0.01, "offline sample without latency excluded from the mean")
	assert.Equal(t, "memory", aggregated.Source)
}

func TestServiceMetricsRangeFilter(t *testing.T) {
	collector := NewCollector(CollectorConfig{MaxSamplesPerService: 100}, nil, nil)

	collector.RecordCheck("a", sampleAt(-2*time.Hour, models.StatusOffline, nil))
	collector.RecordCheck("a", sampleAt(-time.Minute, models.StatusOnline, millis(50)))

	aggregated, ok := collector.ServiceMetrics("a", time.Now().Add(-time.Hour), time.Now())
	require.True(t, ok)
	assert.Equal(t, 1, aggregated.SampleCount)
	assert.InDelta(t, 100.0, aggregated.UptimePercent, 0.01)
}

func TestServiceMetricsUnknownService(t *testing.T) {
	collector := NewCollector(CollectorConfig{}, nil, nil)

	_, ok := collector.ServiceMetrics("ghost", time.Now().Add(-time.Hour), time.Now())
	assert.False(t, ok)
}

func TestSeriesBounded(t *testing.T) {
	collector := NewCollector(CollectorConfig{MaxSamplesPerService: 10}, nil, nil)

	for i := 0; i < 25; i++ {
		collector.RecordCheck("a", sampleAt(0, models.StatusOnline, millis(int64(i))))
	}

	samples := collector.Samples("a", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.Len(t, samples, 10)
	assert.EqualValues(t, 15, *samples[0].ResponseTimeMs, "oldest samples are evicted")
}

func TestRemoveService(t *testing.T) {
	collector := NewCollector(CollectorConfig{}, nil, nil)

	collector.RecordCheck("a", sampleAt(0, models.StatusOnline, millis(10)))
	collector.RecordCheck("b", sampleAt(0, models.StatusOnline, millis(20)))
	assert.Equal(t, 2, collector.TrackedServices())

	collector.RemoveService("a")
	assert.Equal(t, 1, collector.TrackedServices())
	_, ok := collector.ServiceMetrics("a", time.Now().Add(-time.Hour), time.Now())
	assert.False(t, ok)
}

func TestLatestSystemHealth(t *testing.T) {
	collector := NewCollector(CollectorConfig{}, nil, nil)

	_, ok := collector.LatestSystemHealth()
	assert.False(t, ok)

	collector.RecordSystemHealth(models.SystemHealth{HealthScore: 50})
	collector.RecordSystemHealth(models.SystemHealth{HealthScore: 75})

	latest, ok := collector.LatestSystemHealth()
	require.True(t, ok)
	assert.Equal(t, 75, latest.HealthScore)
	assert.False(t, latest.Timestamp.IsZero())
}

func TestSaveMetricsFlushes(t *testing.T) {
	store := &memoryStore{}
	collector := NewCollector(CollectorConfig{MaxSamplesPerService: 100}, store, nil)

	collector.RecordCheck("a", sampleAt(0, models.StatusOnline, millis(10)))
	collector.RecordCheck("b", sampleAt(0, models.StatusOffline, nil))

	collector.SaveMetrics(context.Background())
	assert.Equal(t, 2, store.flushedCount())

	// Nothing pending: second flush writes nothing new.
	collector.SaveMetrics(context.Background())
	assert.Equal(t, 2, store.flushedCount())
}

func TestSaveMetricsRetriesAfterFailure(t *testing.T) {
	store := &memoryStore{fail: true}
	collector := NewCollector(CollectorConfig{MaxSamplesPerService: 100}, store, nil)

	collector.RecordCheck("a", sampleAt(0, models.StatusOnline, millis(10)))
	collector.SaveMetrics(context.Background())
	assert.Zero(t, store.flushedCount())

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	collector.SaveMetrics(context.Background())
	assert.Equal(t, 1, store.flushedCount(), "failed batch is retried on the next flush")
}

func TestSaveMetricsNoStore(t *testing.T) {
	collector := NewCollector(CollectorConfig{}, nil, nil)
	collector.RecordCheck("a", sampleAt(0, models.StatusOnline, millis(10)))
	collector.SaveMetrics(context.Background()) // must not panic
}
