package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roadwatch/pavement/models"
)

// ErrReportNotFound is returned when a report ID does not exist
var ErrReportNotFound = errors.New("report not found")

// timestampLayout is fixed-width so stored timestamps sort as text
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteReportRepository stores generated reports in the survey_reports table
type SQLiteReportRepository struct {
	db *sql.DB
}

// NewSQLiteReportRepository creates a new SQLiteReportRepository
func NewSQLiteReportRepository(db *sql.DB) *SQLiteReportRepository {
	return &SQLiteReportRepository{db: db}
}

// SaveReport inserts a report
func (r *SQLiteReportRepository) SaveReport(ctx context.Context, rep *models.StoredReport) error {
	body, err := json.Marshal(rep.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO survey_reports (
			report_id, dataset_id, dataset_version, generated_at_utc,
			record_count, mean_roughness, roughness_exceed_pct, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.DatasetID, rep.DatasetVersion,
		rep.Report.GeneratedAt.UTC().Format(timestampLayout),
		rep.Report.RecordCount, rep.Report.Means.Roughness, rep.Report.ExceedPercentages.Roughness,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// ListReports returns report summaries, newest first
func (r *SQLiteReportRepository) ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT report_id, dataset_id, dataset_version, generated_at_utc,
			record_count, mean_roughness, roughness_exceed_pct
		FROM survey_reports
		ORDER BY generated_at_utc DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	summaries := []models.ReportSummary{}
	for rows.Next() {
		var (
			s           models.ReportSummary
			generatedAt string
		)
		err := rows.Scan(&s.ID, &s.DatasetID, &s.DatasetVersion, &generatedAt,
			&s.RecordCount, &s.MeanRoughness, &s.RoughnessExceedPct)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, generatedAt); err == nil {
			s.GeneratedAt = t
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return summaries, nil
}

// GetReport returns a full stored report
func (r *SQLiteReportRepository) GetReport(ctx context.Context, id string) (*models.StoredReport, error) {
	var (
		rep  models.StoredReport
		body string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT report_id, dataset_id, dataset_version, report_json
		FROM survey_reports
		WHERE report_id = ?`, id,
	).Scan(&rep.ID, &rep.DatasetID, &rep.DatasetVersion, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &rep.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &rep, nil
}

// Ping checks the database is reachable
func (r *SQLiteReportRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
