package db

import (
	"context"
	"fmt"
	"log"
)

// PruneDatasets keeps the newest keep datasets and deletes the rest,
// segments included
func (db *DB) PruneDatasets(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	db.LockWrite()
	defer db.UnlockWrite()

	stale := `SELECT dataset_id FROM survey_datasets
		ORDER BY loaded_at_utc DESC
		LIMIT -1 OFFSET ?`

	queries := []struct {
		name  string
		query string
	}{
		{"segments", "DELETE FROM survey_segments WHERE dataset_id IN (" + stale + ")"},
		{"datasets", "DELETE FROM survey_datasets WHERE dataset_id IN (" + stale + ")"},
	}

	deleted := 0
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query, keep)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", q.name, err)
		}
		if q.name == "datasets" {
			n, _ := result.RowsAffected()
			deleted = int(n)
		}
	}

	if deleted > 0 {
		log.Printf("Cleanup: deleted %d old survey datasets (keeping %d)", deleted, keep)
	}
	return deleted, nil
}
