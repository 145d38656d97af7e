package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/internal/survey"
)

// ErrNoDataset is returned when no dataset has been persisted yet
var ErrNoDataset = errors.New("no survey dataset stored")

// timestampLayout is fixed-width so stored timestamps sort as text
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DatasetRow is the metadata of a persisted dataset
type DatasetRow struct {
	ID            string    `json:"id"`
	Version       int       `json:"version"`
	Source        string    `json:"source"`
	Checksum      string    `json:"checksum"`
	Layout        string    `json:"layout"`
	LayoutVersion int       `json:"layoutVersion"`
	PrimaryLane   string    `json:"primaryLane"`
	Rows          int       `json:"rows"`
	Records       int       `json:"records"`
	Skipped       int       `json:"skipped"`
	LoadedAt      time.Time `json:"loadedAt"`
}

// SaveDataset stores a dataset and all its segments in one transaction.
// Saving a dataset ID twice replaces the earlier copy.
func (db *DB) SaveDataset(ctx context.Context, ds *store.Dataset) error {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := ds.ID.String()
	if _, err := tx.ExecContext(ctx, "DELETE FROM survey_segments WHERE dataset_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear segments: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO survey_datasets (
			dataset_id, version, source, checksum, layout, layout_version,
			primary_lane, row_count, record_count, skipped_rows, loaded_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ds.Version, ds.Source, ds.Checksum, ds.Layout, ds.LayoutVersion,
		string(ds.PrimaryLane), ds.Rows, len(ds.Records), ds.Skipped,
		ds.LoadedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO survey_segments (
			dataset_id, seq, source_row, highway, start_chainage, end_chainage, length,
			structure_details, remark, roughness_limit, maintenance, status, lanes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for i := range ds.Records {
		rec := &ds.Records[i]
		lanes, err := json.Marshal(rec.Lanes)
		if err != nil {
			return fmt.Errorf("failed to encode lanes of row %d: %w", rec.Row, err)
		}
		maintenance := 0
		if rec.Maintenance {
			maintenance = 1
		}
		_, err = stmt.ExecContext(ctx,
			id, i, rec.Row, rec.Highway, rec.StartChainage, rec.EndChainage, rec.Length,
			rec.StructureDetails, rec.Remark, rec.RoughnessLimit, maintenance, string(rec.Status), string(lanes),
		)
		if err != nil {
			return fmt.Errorf("failed to insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	return nil
}

// ListDatasets returns dataset metadata, newest first
func (db *DB) ListDatasets(ctx context.Context, limit int) ([]DatasetRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT dataset_id, version, source, checksum, layout, layout_version,
			primary_lane, row_count, record_count, skipped_rows, loaded_at_utc
		FROM survey_datasets
		ORDER BY loaded_at_utc DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetRow
	for rows.Next() {
		row, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}
	return out, nil
}

// LatestDataset rebuilds the most recently loaded dataset, segments included.
// The version is left at zero; the store assigns one on publish.
func (db *DB) LatestDataset(ctx context.Context) (*store.Dataset, error) {
	rows, err := db.ListDatasets(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDataset
	}
	meta := rows[0]

	id, err := uuid.Parse(meta.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset id %q: %w", meta.ID, err)
	}
	records, err := db.loadSegments(ctx, meta.ID)
	if err != nil {
		return nil, err
	}

	primary := survey.LaneCode(meta.PrimaryLane)
	return &store.Dataset{
		ID:            id,
		Source:        meta.Source,
		Checksum:      meta.Checksum,
		Layout:        meta.Layout,
		LayoutVersion: meta.LayoutVersion,
		PrimaryLane:   primary,
		LoadedAt:      meta.LoadedAt,
		Rows:          meta.Rows,
		Skipped:       meta.Skipped,
		Records:       records,
		Coordinates:   survey.Coordinates(records, primary),
	}, nil
}

func (db *DB) loadSegments(ctx context.Context, datasetID string) ([]survey.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT source_row, highway, start_chainage, end_chainage, length,
			structure_details, remark, roughness_limit, maintenance, status, lanes_json
		FROM survey_segments
		WHERE dataset_id = ?
		ORDER BY seq`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	records := []survey.Record{}
	for rows.Next() {
		var (
			rec         survey.Record
			maintenance int
			status      string
			lanes       string
		)
		err := rows.Scan(
			&rec.Row, &rec.Highway, &rec.StartChainage, &rec.EndChainage, &rec.Length,
			&rec.StructureDetails, &rec.Remark, &rec.RoughnessLimit, &maintenance, &status, &lanes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		if err := json.Unmarshal([]byte(lanes), &rec.Lanes); err != nil {
			return nil, fmt.Errorf("failed to decode lanes of row %d: %w", rec.Row, err)
		}
		rec.Maintenance = maintenance != 0
		rec.Status = survey.Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segments: %w", err)
	}
	return records, nil
}

func scanDataset(rows *sql.Rows) (DatasetRow, error) {
	var (
		row      DatasetRow
		loadedAt string
	)
	err := rows.Scan(
		&row.ID, &row.Version, &row.Source, &row.Checksum, &row.Layout, &row.LayoutVersion,
		&row.PrimaryLane, &row.Rows, &row.Records, &row.Skipped, &loadedAt,
	)
	if err != nil {
		return DatasetRow{}, fmt.Errorf("failed to scan dataset: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, loadedAt); err == nil {
		row.LoadedAt = t
	}
	return row, nil
}
