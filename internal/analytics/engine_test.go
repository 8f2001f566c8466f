package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HomePulse/internal/models"
)

func onlineSample(ms int64) models.MetricSample {
	return models.MetricSample{Status: models.StatusOnline, ResponseTimeMs: &ms}
}

func offlineSample() models.MetricSample {
	return models.MetricSample{Status: models.StatusOffline}
}

func TestAnalyzeServiceEmpty(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	insights := engine.AnalyzeService("a", nil)
	assert.Equal(t, "a", insights.ServiceID)
	assert.Zero(t, insights.SampleCount)
	assert.Equal(t, models.TrendUnknown, insights.LatencyTrend)
	assert.Equal(t, models.TrendUnknown, insights.UptimeTrend)
	assert.Empty(t, insights.Recommendations)
}

func TestAnalyzeServiceStableLatency(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	samples := []models.MetricSample{
		onlineSample(100), onlineSample(110), onlineSample(105), onlineSample(100),
	}
	insights := engine.AnalyzeService("a", samples)
	assert.Equal(t, models.TrendStable, insights.LatencyTrend)
	assert.Equal(t, models.TrendStable, insights.UptimeTrend)
	assert.InDelta(t, 100.0, insights.UptimePercent, 0.01)
}

func TestAnalyzeServiceDegradingLatency(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	samples := []models.MetricSample{
		onlineSample(100), onlineSample(100),
		onlineSample(300), onlineSample(300),
	}
	insights := engine.AnalyzeService("a", samples)
	assert.Equal(t, models.TrendDegrading, insights.LatencyTrend)
	assert.Contains(t, insights.Recommendations, "response times are degrading, check service load")
}

func TestAnalyzeServiceImprovingLatency(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	samples := []models.MetricSample{
		onlineSample(400), onlineSample(400),
		onlineSample(100), onlineSample(100),
	}
	insights := engine.AnalyzeService("a", samples)
	assert.Equal(t, models.TrendImproving, insights.LatencyTrend)
}

func TestAnalyzeServiceUptimeDegrading(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	samples := []models.MetricSample{
		onlineSample(100), onlineSample(100),
		offlineSample(), offlineSample(),
	}
	insights := engine.AnalyzeService("a", samples)
	assert.Equal(t, models.TrendDegrading, insights.UptimeTrend)
	assert.InDelta(t, 50.0, insights.UptimePercent, 0.01)
}

func TestAnalyzeServiceTooFewSamplesForTrend(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	samples := []models.MetricSample{onlineSample(100), onlineSample(200)}
	insights := engine.AnalyzeService("a", samples)
	assert.Equal(t, models.TrendUnknown, insights.LatencyTrend)
	assert.Equal(t, models.TrendUnknown, insights.UptimeTrend)
}

func TestRecommendationsLowUptime(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	var samples []models.MetricSample
	for i := 0; i < 9; i++ {
		samples = append(samples, onlineSample(50))
	}
	samples = append(samples, offlineSample(), offlineSample(), offlineSample())

	insights := engine.AnalyzeService("a", samples)
	require.NotEmpty(t, insights.Recommendations)
	assert.Contains(t, insights.Recommendations[0], "investigate recurring failures")
}

func TestRecommendationsHighLatency(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	samples := []models.MetricSample{
		onlineSample(3000), onlineSample(3100), onlineSample(2900), onlineSample(3000),
	}
	insights := engine.AnalyzeService("a", samples)

	var found bool
	for _, rec := range insights.Recommendations {
		if rec == "average response time 3000ms is high" {
			found = true
		}
	}
	assert.True(t, found, "got %v", insights.Recommendations)
}

func TestDashboardInsights(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil)

	out := engine.DashboardInsights(map[string][]models.MetricSample{
		"a": {onlineSample(100)},
		"b": nil,
	})
	require.Len(t, out, 2)
	assert.Equal(t, 1, out["a"].SampleCount)
	assert.Zero(t, out["b"].SampleCount)
}
