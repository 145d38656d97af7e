package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadwatch/pavement/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS survey_reports (
	report_id            UUID PRIMARY KEY,
	dataset_id           UUID NOT NULL,
	dataset_version      INTEGER NOT NULL,
	generated_at_utc     TIMESTAMPTZ NOT NULL,
	record_count         INTEGER NOT NULL,
	mean_roughness       DOUBLE PRECISION NOT NULL,
	roughness_exceed_pct DOUBLE PRECISION NOT NULL,
	report               JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_survey_reports_generated ON survey_reports (generated_at_utc DESC);
`

// PostgresReportRepository archives reports in PostgreSQL for sharing
// outside the service host
type PostgresReportRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresReportRepository connects to databaseURL and checks the connection
func NewPostgresReportRepository(ctx context.Context, databaseURL string) (*PostgresReportRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresReportRepository{pool: pool}, nil
}

// Close releases the pool
func (r *PostgresReportRepository) Close() {
	r.pool.Close()
}

// EnsureSchema creates the reports table if it doesn't exist
func (r *PostgresReportRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveReport inserts a report
func (r *PostgresReportRepository) SaveReport(ctx context.Context, rep *models.StoredReport) error {
	body, err := json.Marshal(rep.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO survey_reports (
			report_id, dataset_id, dataset_version, generated_at_utc,
			record_count, mean_roughness, roughness_exceed_pct, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.ID, rep.DatasetID, rep.DatasetVersion, rep.Report.GeneratedAt,
		rep.Report.RecordCount, rep.Report.Means.Roughness, rep.Report.ExceedPercentages.Roughness,
		body,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// ListReports returns report summaries, newest first
func (r *PostgresReportRepository) ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT report_id::text, dataset_id::text, dataset_version, generated_at_utc,
			record_count, mean_roughness, roughness_exceed_pct
		FROM survey_reports
		ORDER BY generated_at_utc DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	summaries := []models.ReportSummary{}
	for rows.Next() {
		var s models.ReportSummary
		err := rows.Scan(&s.ID, &s.DatasetID, &s.DatasetVersion, &s.GeneratedAt,
			&s.RecordCount, &s.MeanRoughness, &s.RoughnessExceedPct)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return summaries, nil
}

// GetReport returns a full stored report
func (r *PostgresReportRepository) GetReport(ctx context.Context, id string) (*models.StoredReport, error) {
	var (
		rep  models.StoredReport
		body []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT report_id::text, dataset_id::text, dataset_version, report
		FROM survey_reports
		WHERE report_id::text = $1`, id,
	).Scan(&rep.ID, &rep.DatasetID, &rep.DatasetVersion, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	if err := json.Unmarshal(body, &rep.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &rep, nil
}

// Ping checks the database is reachable
func (r *PostgresReportRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
