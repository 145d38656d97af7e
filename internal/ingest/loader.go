package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/internal/survey"
)

// maxSourceBytes is the default cap on the size of a survey source
const maxSourceBytes = 64 << 20

// ErrNoRecords is returned when a source parses to zero survey records
var ErrNoRecords = errors.New("survey source contains no records")

// ErrSourceTooLarge is returned when a source exceeds the size cap.
// Oversized sources are rejected whole, never truncated.
var ErrSourceTooLarge = errors.New("survey source too large")

// Archive persists published datasets. *db.DB satisfies it.
type Archive interface {
	SaveDataset(ctx context.Context, ds *store.Dataset) error
	PruneDatasets(ctx context.Context, keep int) (int, error)
	LatestDataset(ctx context.Context) (*store.Dataset, error)
}

// Options configures a Loader
type Options struct {
	Source    string // http(s) URL or file path
	Layout    survey.Layout
	Limits    classify.Limits
	Archive   Archive // optional
	Retention int     // datasets kept in the archive
	Timeout   time.Duration
	MaxBytes  int64 // size cap; <= 0 means 64 MiB
}

// Loader is the store's only writer: it fetches, parses and classifies a
// survey and publishes the result as one dataset
type Loader struct {
	opts   Options
	store  *store.Store
	writer *store.Writer
	client *http.Client

	mu sync.Mutex // one load at a time
}

// NewLoader creates a loader publishing into st through w
func NewLoader(st *store.Store, w *store.Writer, opts Options) *Loader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = maxSourceBytes
	}
	return &Loader{
		opts:   opts,
		store:  st,
		writer: w,
		client: &http.Client{Timeout: timeout},
	}
}

// Load fetches the source and publishes it unless it is unchanged since the
// last publish. changed is false when the published dataset was kept.
// On failure the store is marked unavailable and any earlier dataset stays.
func (l *Loader) Load(ctx context.Context) (ds *store.Dataset, changed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.fetch(ctx)
	if err != nil {
		l.writer.Fail(err)
		return nil, false, err
	}

	checksum := sha256Sum(data)
	if cur := l.store.Snapshot(); cur != nil && cur.Checksum == checksum &&
		cur.Layout == l.opts.Layout.Name && cur.LayoutVersion == l.opts.Layout.Version {
		if l.store.Status().State != store.StateReady {
			// recover from an earlier failure without touching the published copy
			next := *cur
			cur = l.writer.Publish(&next)
		}
		log.Printf("Survey source unchanged (sha256 %s), keeping dataset v%d", checksum[:12], cur.Version)
		return cur, false, nil
	}

	result := survey.Parse(data, l.opts.Layout)
	if len(result.Records) == 0 {
		err := fmt.Errorf("%w: %d rows read from %s", ErrNoRecords, result.Rows, l.opts.Source)
		l.writer.Fail(err)
		return nil, false, err
	}

	records := classify.Records(result.Records, l.opts.Limits, l.opts.Layout.PrimaryLane)
	ds = l.writer.Publish(&store.Dataset{
		ID:            uuid.New(),
		Source:        l.opts.Source,
		Checksum:      checksum,
		Layout:        l.opts.Layout.Name,
		LayoutVersion: l.opts.Layout.Version,
		PrimaryLane:   l.opts.Layout.PrimaryLane,
		LoadedAt:      time.Now().UTC(),
		Rows:          result.Rows,
		Skipped:       result.Skipped,
		Records:       records,
		Coordinates:   survey.Coordinates(records, l.opts.Layout.PrimaryLane),
	})

	counts := classify.CountLanes(records)
	log.Printf("Published survey v%d: %d records (%d rows skipped), %d coordinates; lanes good=%d warning=%d exceeds=%d maintenance=%d",
		ds.Version, len(records), result.Skipped, len(ds.Coordinates),
		counts.Good, counts.Warning, counts.Exceeds, counts.UnderMaintenance)

	l.archive(ctx, ds)
	return ds, true, nil
}

// Restore publishes the last archived dataset, reclassified with the
// current limits. It does nothing if a dataset is already published.
func (l *Loader) Restore(ctx context.Context) (*store.Dataset, error) {
	if l.opts.Archive == nil {
		return nil, errors.New("no archive configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cur := l.store.Snapshot(); cur != nil {
		return cur, nil
	}

	ds, err := l.opts.Archive.LatestDataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived dataset: %w", err)
	}
	ds.Records = classify.Records(ds.Records, l.opts.Limits, ds.PrimaryLane)
	ds = l.writer.Publish(ds)

	log.Printf("Restored archived survey %s (%d records, loaded %s) as v%d",
		ds.ID, len(ds.Records), ds.LoadedAt.Format(time.RFC3339), ds.Version)
	return ds, nil
}

// Run reloads the source every interval until ctx is cancelled.
// Load failures are logged and retried on the next tick.
func (l *Loader) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, _, err := l.Load(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("Survey reload failed: %v", err)
			}
		}
	}
}

func (l *Loader) archive(ctx context.Context, ds *store.Dataset) {
	if l.opts.Archive == nil {
		return
	}
	if err := l.opts.Archive.SaveDataset(ctx, ds); err != nil {
		log.Printf("Warning: failed to archive survey v%d: %v", ds.Version, err)
		return
	}
	if l.opts.Retention > 0 {
		if _, err := l.opts.Archive.PruneDatasets(ctx, l.opts.Retention); err != nil {
			log.Printf("Warning: failed to prune archived surveys: %v", err)
		}
	}
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	src := l.opts.Source
	if src == "" {
		return nil, errors.New("no survey source configured")
	}

	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read survey file: %w", err)
		}
		defer f.Close()
		return l.readCapped(f)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch survey: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("survey source returned status %d", resp.StatusCode)
	}

	return l.readCapped(resp.Body)
}

// readCapped reads r whole, failing once it passes MaxBytes
func (l *Loader) readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read survey source: %w", err)
	}
	if int64(len(data)) > l.opts.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, l.opts.MaxBytes)
	}
	return data, nil
}

func sha256Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
