package models

import "time"

type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolHTTPS  Protocol = "https"
	ProtocolTCP    Protocol = "tcp"
	ProtocolPing   Protocol = "ping"
	ProtocolDNS    Protocol = "dns"
	ProtocolCustom Protocol = "custom"
)

type ServiceStatus string

const (
	StatusPending ServiceStatus = "pending"
	StatusOnline  ServiceStatus = "online"
	StatusOffline ServiceStatus = "offline"
)

// ServiceTarget is the configuration of one monitored endpoint. Protocol may
// be empty, in which case it is inferred from the URL on first use.
type ServiceTarget struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	URL       string                 `json:"url"`
	Protocol  Protocol               `json:"protocol,omitempty"`
	TimeoutMs int                    `json:"timeout_ms,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

// Timeout returns the per-probe deadline, defaulting to 10s.
func (t ServiceTarget) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// ServiceState is the authoritative runtime record for one target. It is
// owned and mutated exclusively by the monitor; everyone else reads copies.
type ServiceState struct {
	ID                  string                 `json:"id"`
	Status              ServiceStatus          `json:"status"`
	LastCheck           *time.Time             `json:"last_check"`
	ResponseTimeMs      *int64                 `json:"response_time_ms"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	LastStatusChange    time.Time              `json:"last_status_change"`
	Error               string                 `json:"error,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// CheckResult is the transient outcome of a single probe.
type CheckResult struct {
	ID             string                 `json:"id"`
	Status         ServiceStatus          `json:"status"`
	ResponseTimeMs *int64                 `json:"response_time_ms"`
	Error          string                 `json:"error,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// MetricSample is one append-only historical data point.
type MetricSample struct {
	ServiceID      string        `json:"service_id"`
	Status         ServiceStatus `json:"status"`
	ResponseTimeMs *int64        `json:"response_time_ms"`
	Timestamp      time.Time     `json:"timestamp"`
}

// ServiceMetrics is an aggregate over a time range of samples.
type ServiceMetrics struct {
	ServiceID         string    `json:"service_id"`
	From              time.Time `json:"from"`
	To                time.Time `json:"to"`
	SampleCount       int       `json:"sample_count"`
	UptimePercent     float64   `json:"uptime_percent"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	Source            string    `json:"source"`
}

type AlertType string

const (
	AlertTypeStatusChange AlertType = "status_change"
	AlertTypePerformance  AlertType = "performance"
	AlertTypeSystem       AlertType = "system"
)

type AlertSeverity string

const (
	SeverityInfo    AlertSeverity = "info"
	SeverityWarning AlertSeverity = "warning"
	SeverityError   AlertSeverity = "error"
)

type Alert struct {
	ID             string                 `json:"id"`
	Type           AlertType              `json:"type"`
	Severity       AlertSeverity          `json:"severity"`
	ServiceID      string                 `json:"service_id"`
	ServiceName    string                 `json:"service_name"`
	Message        string                 `json:"message"`
	PreviousStatus ServiceStatus          `json:"previous_status,omitempty"`
	CurrentStatus  ServiceStatus          `json:"current_status,omitempty"`
	ResponseTimeMs *int64                 `json:"response_time_ms,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	AcknowledgedBy string                 `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// SystemHealth is an aggregate snapshot over all monitored services.
type SystemHealth struct {
	Timestamp       time.Time `json:"timestamp"`
	TotalServices   int       `json:"total_services"`
	OnlineServices  int       `json:"online_services"`
	OfflineServices int       `json:"offline_services"`
	PendingServices int       `json:"pending_services"`
	HealthScore     int       `json:"health_score"`
}

// ServiceInsights is the analytics output for one service.
type ServiceInsights struct {
	ServiceID         string   `json:"service_id"`
	SampleCount       int      `json:"sample_count"`
	UptimePercent     float64  `json:"uptime_percent"`
	AvgResponseTimeMs float64  `json:"avg_response_time_ms"`
	LatencyTrend      Trend    `json:"latency_trend"`
	UptimeTrend       Trend    `json:"uptime_trend"`
	Recommendations   []string `json:"recommendations"`
}

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
	TrendUnknown   Trend = "unknown"
)

// MonitoringStats is the monitor's read-only self report.
type MonitoringStats struct {
	TotalServices   int           `json:"total_services"`
	OnlineServices  int           `json:"online_services"`
	OfflineServices int           `json:"offline_services"`
	PendingServices int           `json:"pending_services"`
	HealthScore     int           `json:"health_score"`
	LastSweep       *time.Time    `json:"last_sweep"`
	UptimeSeconds   float64       `json:"uptime_seconds"`
	Running         bool          `json:"running"`
	CacheHealthy    bool          `json:"cache_healthy"`
	StoreAvailable  bool          `json:"store_available"`
	TrackedServices int           `json:"tracked_services"`
	ActiveChannels  []string      `json:"active_channels"`
	Health          *SystemHealth `json:"health,omitempty"`
}
