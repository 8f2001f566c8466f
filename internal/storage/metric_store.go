package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"HomePulse/internal/models"
	"HomePulse/pkg/uuidutil"
)

// MetricStore is the durable sink for check samples and alerts. Callers must
// treat every error as a recoverable dependency failure and fall back to the
// in-memory collector.
type MetricStore interface {
	InsertSample(ctx context.Context, sample models.MetricSample) error
	InsertSamples(ctx context.Context, samples []models.MetricSample) error
	AggregateRange(ctx context.Context, serviceID string, from, to time.Time) (*models.ServiceMetrics, error)
	SamplesRange(ctx context.Context, serviceID string, from, to time.Time) ([]models.MetricSample, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteService(ctx context.Context, serviceID string) error
	InsertAlert(ctx context.Context, alert models.Alert) error
}

type metricStore struct {
	pool *pgxpool.Pool
}

func NewMetricStore(pool *pgxpool.Pool) MetricStore {
	return &metricStore{pool: pool}
}

func (s *metricStore) InsertSample(ctx context.Context, sample models.MetricSample) error {
	query := `INSERT INTO metric_samples (service_id, status, response_time_ms, recorded_at)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query,
		sample.ServiceID,
		sample.Status,
		sample.ResponseTimeMs,
		sample.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert sample for %s: %w", sample.ServiceID, err)
	}

	return nil
}

func (s *metricStore) InsertSamples(ctx context.Context, samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO metric_samples (service_id, status, response_time_ms, recorded_at)
		VALUES ($1, $2, $3, $4)`

	for _, sample := range samples {
		batch.Queue(query, sample.ServiceID, sample.Status, sample.ResponseTimeMs, sample.Timestamp)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range samples {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert sample batch: %w", err)
		}
	}

	return nil
}

func (s *metricStore) AggregateRange(ctx context.Context, serviceID string, from, to time.Time) (*models.ServiceMetrics, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'online'),
			COALESCE(AVG(response_time_ms) FILTER (WHERE response_time_ms IS NOT NULL), 0)
		FROM metric_samples
		WHERE service_id = $1 AND recorded_at BETWEEN $2 AND $3
	`

	var total, online int
	var avgResponse float64
	err := s.pool.QueryRow(ctx, query, serviceID, from, to).Scan(&total, &online, &avgResponse)
	if err != nil {
		return nil, fmt.Errorf("aggregate samples for %s: %w", serviceID, err)
	}

	metrics := &models.ServiceMetrics{
		ServiceID:         serviceID,
		From:              from,
		To:                to,
		SampleCount:       total,
		AvgResponseTimeMs: avgResponse,
		Source:            "database",
	}
	if total > 0 {
		metrics.UptimePercent = float64(online) / float64(total) * 100
	}

	return metrics, nil
}

func (s *metricStore) SamplesRange(ctx context.Context, serviceID string, from, to time.Time) ([]models.MetricSample, error) {
	query := `
		SELECT service_id, status, response_time_ms, recorded_at
		FROM metric_samples
		WHERE service_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at ASC
	`

	rows, err := s.pool.Query(ctx, query, serviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query samples for %s: %w", serviceID, err)
	}
	defer rows.Close()

	var samples []models.MetricSample
	for rows.Next() {
		var sample models.MetricSample
		err := rows.Scan(
			&sample.ServiceID,
			&sample.Status,
			&sample.ResponseTimeMs,
			&sample.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample row iteration: %w", err)
	}

	return samples, nil
}

func (s *metricStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM metric_samples WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old samples: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *metricStore) DeleteService(ctx context.Context, serviceID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM metric_samples WHERE service_id = $1`, serviceID)
	if err != nil {
		return fmt.Errorf("delete samples for %s: %w", serviceID, err)
	}
	return nil
}

func (s *metricStore) InsertAlert(ctx context.Context, alert models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuidutil.New()
	}

	query := `INSERT INTO alerts (id, type, severity, service_id, service_name, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		alert.ID,
		alert.Type,
		alert.Severity,
		alert.ServiceID,
		alert.ServiceName,
		alert.Message,
		alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}

	return nil
}

// Schema returns the DDL the store expects. Applied by deploy tooling, kept
// here so the tables and the queries stay in one file.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS metric_samples (
	id BIGSERIAL PRIMARY KEY,
	service_id TEXT NOT NULL,
	status TEXT NOT NULL,
	response_time_ms BIGINT,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_samples_service_time
	ON metric_samples (service_id, recorded_at);

CREATE TABLE IF NOT EXISTS alerts (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	service_id TEXT NOT NULL,
	service_name TEXT,
	message TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`
}
