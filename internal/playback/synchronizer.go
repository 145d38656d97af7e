package playback

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/roadwatch/pavement/internal/store"
)

// Source supplies the dataset a synchronizer follows.
// *store.Store satisfies it.
type Source interface {
	Snapshot() *store.Dataset
	OnPublish(fn func(*store.Dataset)) func()
}

// Synchronizer turns playback clock updates into frames for one view.
// Every update is recomputed synchronously and the newest frame replaces
// any frame a subscriber has not read yet.
type Synchronizer struct {
	source Source
	ease   time.Duration

	mu          sync.Mutex
	position    float64
	hasPosition bool
	frozen      bool
	closed      bool
	seq         uint64
	frame       Frame
	subs        map[int]chan Frame
	nextSub     int
	unsubscribe func()
}

// NewSynchronizer creates a synchronizer that recomputes on every clock
// update and whenever the source publishes a new dataset
func NewSynchronizer(source Source, ease time.Duration) *Synchronizer {
	s := &Synchronizer{
		source: source,
		ease:   ease,
		subs:   make(map[int]chan Frame),
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unsubscribe = source.OnPublish(func(*store.Dataset) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.recompute()
	})
	s.recompute()
	return s
}

// UpdateClock applies a media clock reading. While frozen the reading is
// ignored and the frozen frame is returned.
func (s *Synchronizer) UpdateClock(currentTime, duration float64) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.frozen {
		return s.frame
	}
	s.position, s.hasPosition = Position(currentTime, duration)
	s.recompute()
	return s.frame
}

// Seek jumps to a playback fraction and clears a freeze
func (s *Synchronizer) Seek(position float64) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.frame
	}
	s.frozen = false
	if math.IsNaN(position) || math.IsInf(position, 0) {
		s.position, s.hasPosition = 0, false
	} else {
		s.position, s.hasPosition = clamp(position, 0, 1), true
	}
	s.recompute()
	return s.frame
}

// MediaError logs a playback failure and freezes at the last known position
func (s *Synchronizer) MediaError(reason string) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.frame
	}
	log.Printf("Warning: playback media error, freezing at position %.4f: %s", s.position, reason)
	s.frozen = true
	s.recompute()
	return s.frame
}

// Resume clears a freeze without moving the position
func (s *Synchronizer) Resume() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.frozen {
		return s.frame
	}
	s.frozen = false
	s.recompute()
	return s.frame
}

// Frame returns the most recent frame
func (s *Synchronizer) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Subscribe returns a channel that always holds the newest unread frame.
// The channel starts with the current frame and is closed by cancel or Close.
func (s *Synchronizer) Subscribe() (<-chan Frame, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Frame, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.frame

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Subscribers returns the number of open subscriptions
func (s *Synchronizer) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close detaches from the source and closes every subscription.
// No recomputation happens after Close returns.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// recompute builds a new frame from the current position and dataset and
// delivers it. Caller must hold s.mu.
func (s *Synchronizer) recompute() {
	ds := s.source.Snapshot()

	var f Frame
	if ds == nil || !s.hasPosition {
		f = LoadingFrame()
	} else {
		f = Compute(s.position, ds.Records, ds.Coordinates)
		if f.Marker != nil {
			f.EaseMillis = s.ease.Milliseconds()
		}
	}
	if ds != nil {
		f.DatasetID = ds.ID.String()
		f.DatasetVersion = ds.Version
	}
	f.Frozen = s.frozen

	s.seq++
	f.Sequence = s.seq
	s.frame = f

	for _, ch := range s.subs {
		deliverLatest(ch, f)
	}
}

// deliverLatest replaces any unread frame in ch with f
func deliverLatest(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}
