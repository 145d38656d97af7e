package playback

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or already closed sessions
var ErrSessionNotFound = errors.New("playback session not found")

// Session is one open playback view
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Sync      *Synchronizer

	lastSeen time.Time
}

// Registry tracks the open playback sessions of the process
type Registry struct {
	source Source
	ease   time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty registry whose sessions follow source
func NewRegistry(source Source, ease time.Duration) *Registry {
	return &Registry{
		source:   source,
		ease:     ease,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open starts a new session with its own synchronizer
func (r *Registry) Open() *Session {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		CreatedAt: now,
		Sync:      NewSynchronizer(r.source, r.ease),
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess
}

// Get returns a session and marks it as recently used
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = time.Now().UTC()
	return sess, nil
}

// Close tears a session down, releasing its subscriptions
func (r *Registry) Close(id uuid.UUID) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sess.Sync.Close()
	return nil
}

// CloseAll tears every session down
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Sync.Close()
	}
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ReapIdle closes sessions unused for longer than maxIdle.
// Sessions with an open stream are never idle.
func (r *Registry) ReapIdle(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	var idle []*Session
	r.mu.Lock()
	for id, sess := range r.sessions {
		if sess.lastSeen.Before(cutoff) && sess.Sync.Subscribers() == 0 {
			idle = append(idle, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range idle {
		sess.Sync.Close()
	}
	return len(idle)
}

// RunReaper reaps idle sessions every interval until ctx is cancelled
func (r *Registry) RunReaper(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return nil
		case <-ticker.C:
			if n := r.ReapIdle(maxIdle); n > 0 {
				log.Printf("Closed %d idle playback sessions", n)
			}
		}
	}
}
