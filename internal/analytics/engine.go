package analytics

import (
	"fmt"
	"log/slog"

	"HomePulse/internal/models"
)

// Engine derives trends and recommendations from metric time series. Pure
// computation, no state beyond configuration.
type Engine struct {
	// Relative latency change between window halves before a trend is
	// called, e.g. 0.2 = 20%.
	latencyTrendThreshold float64
	logger                *slog.Logger
}

type EngineConfig struct {
	LatencyTrendThreshold float64
}

func NewEngine(cfg EngineConfig, logger *slog.Logger) *Engine {
	threshold := cfg.LatencyTrendThreshold
	if threshold <= 0 {
		threshold = 0.2
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		latencyTrendThreshold: threshold,
		logger:                logger,
	}
}

// AnalyzeService computes trends over chronologically ordered samples.
func (e *Engine) AnalyzeService(serviceID string, samples []models.MetricSample) models.ServiceInsights {
	insights := models.ServiceInsights{
		ServiceID:    serviceID,
		SampleCount:  len(samples),
		LatencyTrend: models.TrendUnknown,
		UptimeTrend:  models.TrendUnknown,
	}

	if len(samples) == 0 {
		return insights
	}

	var online, withLatency int
	var totalLatency float64
	for _, sample := range samples {
		if sample.Status == models.StatusOnline {
			online++
		}
		if sample.ResponseTimeMs != nil {
			withLatency++
			totalLatency += float64(*sample.ResponseTimeMs)
		}
	}

	insights.UptimePercent = float64(online) / float64(len(samples)) * 100
	if withLatency > 0 {
		insights.AvgResponseTimeMs = totalLatency / float64(withLatency)
	}

	if len(samples) >= 4 {
		half := len(samples) / 2
		insights.LatencyTrend = e.latencyTrend(samples[:half], samples[half:])
		insights.UptimeTrend = e.uptimeTrend(samples[:half], samples[half:])
	}

	insights.Recommendations = e.recommend(insights)
	return insights
}

// DashboardInsights analyzes every service series.
func (e *Engine) DashboardInsights(series map[string][]models.MetricSample) map[string]models.ServiceInsights {
	out := make(map[string]models.ServiceInsights, len(series))
	for id, samples := range series {
		out[id] = e.AnalyzeService(id, samples)
	}
	return out
}

func (e *Engine) latencyTrend(older, newer []models.MetricSample) models.Trend {
	oldAvg, oldOK := avgLatency(older)
	newAvg, newOK := avgLatency(newer)
	if !oldOK || !newOK || oldAvg == 0 {
		return models.TrendUnknown
	}

	change := (newAvg - oldAvg) / oldAvg
	switch {
	case change > e.latencyTrendThreshold:
		return models.TrendDegrading
	case change < -e.latencyTrendThreshold:
		return models.TrendImproving
	default:
		return models.TrendStable
	}
}

func (e *Engine) uptimeTrend(older, newer []models.MetricSample) models.Trend {
	oldUp := uptimeRatio(older)
	newUp := uptimeRatio(newer)

	switch {
	case newUp < oldUp-0.05:
		return models.TrendDegrading
	case newUp > oldUp+0.05:
		return models.TrendImproving
	default:
		return models.TrendStable
	}
}

func (e *Engine) recommend(insights models.ServiceInsights) []string {
	var recs []string

	if insights.UptimePercent < 99 && insights.SampleCount >= 10 {
		recs = append(recs, fmt.Sprintf("uptime is %.1f%%, investigate recurring failures", insights.UptimePercent))
	}
	if insights.LatencyTrend == models.TrendDegrading {
		recs = append(recs, "response times are degrading, check service load")
	}
	if insights.AvgResponseTimeMs > 2000 {
		recs = append(recs, fmt.Sprintf("average response time %.0fms is high", insights.AvgResponseTimeMs))
	}

	return recs
}

func avgLatency(samples []models.MetricSample) (float64, bool) {
	var total float64
	var count int
	for _, sample := range samples {
		if sample.ResponseTimeMs != nil {
			total += float64(*sample.ResponseTimeMs)
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return total / float64(count), true
}

func uptimeRatio(samples []models.MetricSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var online int
	for _, sample := range samples {
		if sample.Status == models.StatusOnline {
			online++
		}
	}
	return float64(online) / float64(len(samples))
}
