package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/roadwatch/pavement/internal/survey"
)

// State describes whether survey data is available to readers
type State string

const (
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateUnavailable State = "unavailable"
)

// Dataset is one fully ingested and classified survey. It is immutable once
// published: readers must not modify Records or Coordinates.
type Dataset struct {
	ID            uuid.UUID       `json:"id"`
	Version       int             `json:"version"` // assigned by the store on publish
	Source        string          `json:"source"`
	Checksum      string          `json:"checksum"`
	Layout        string          `json:"layout"`
	LayoutVersion int             `json:"layoutVersion"`
	PrimaryLane   survey.LaneCode `json:"primaryLane"`
	LoadedAt      time.Time       `json:"loadedAt"`
	Rows          int             `json:"rows"`
	Skipped       int             `json:"skipped"`
	Records       []survey.Record `json:"-"`
	Coordinates   []orb.Point     `json:"-"`
}

// Status is a point-in-time view of the store
type Status struct {
	State     State      `json:"state"`
	Version   int        `json:"version"`
	DatasetID *uuid.UUID `json:"datasetId,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Store holds the current dataset. Readers get whole datasets only; the
// single Writer returned by New is the only way to replace it.
type Store struct {
	current atomic.Pointer[Dataset]

	mu        sync.RWMutex // protects everything below
	state     State
	lastErr   error
	version   int
	updatedAt time.Time
	hooks     map[int]func(*Dataset)
	nextHook  int
}

// Writer publishes datasets into its Store
type Writer struct {
	store *Store
	mu    sync.Mutex // serializes publishes
}

// New creates an empty store in the loading state and its only writer
func New() (*Store, *Writer) {
	s := &Store{
		state:     StateLoading,
		updatedAt: time.Now().UTC(),
		hooks:     make(map[int]func(*Dataset)),
	}
	return s, &Writer{store: s}
}

// Snapshot returns the current dataset, or nil before the first publish
func (s *Store) Snapshot() *Dataset {
	return s.current.Load()
}

// Status reports the store state
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:     s.state,
		Version:   s.version,
		UpdatedAt: s.updatedAt,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	if ds := s.current.Load(); ds != nil {
		id := ds.ID
		st.DatasetID = &id
	}
	return st
}

// OnPublish registers fn to run after each publish. The returned function
// removes the hook.
func (s *Store) OnPublish(fn func(*Dataset)) func() {
	s.mu.Lock()
	id := s.nextHook
	s.nextHook++
	s.hooks[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.hooks, id)
		s.mu.Unlock()
	}
}

// Publish atomically replaces the current dataset and returns it with its
// version set. The caller must not modify ds afterwards.
func (w *Writer) Publish(ds *Dataset) *Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.store
	s.mu.Lock()
	s.version++
	ds.Version = s.version
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	s.current.Store(ds)
	s.state = StateReady
	s.lastErr = nil
	s.updatedAt = time.Now().UTC()
	hooks := make([]func(*Dataset), 0, len(s.hooks))
	for _, fn := range s.hooks {
		hooks = append(hooks, fn)
	}
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(ds)
	}
	return ds
}

// Fail records a load failure. A dataset published earlier stays readable,
// but the state becomes unavailable until the next successful publish.
func (w *Writer) Fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.store
	s.mu.Lock()
	s.state = StateUnavailable
	s.lastErr = err
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()
}
