package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch/pavement/internal/playback"
)

// PositionRequest carries either a media clock reading or a direct seek.
// Exactly one form must be present.
type PositionRequest struct {
	CurrentTime *float64 `json:"currentTime,omitempty"` // seconds
	Duration    *float64 `json:"duration,omitempty"`    // seconds
	Position    *float64 `json:"position,omitempty"`    // fraction in [0, 1]
}

// IsSeek reports whether the request is a direct seek
func (p PositionRequest) IsSeek() bool {
	return p.Position != nil
}

// Validate checks the request shape. Degenerate clock values (zero or NaN
// duration) are accepted; they produce a loading frame.
func (p PositionRequest) Validate() error {
	clock := p.CurrentTime != nil || p.Duration != nil
	switch {
	case p.Position != nil && clock:
		return errors.New("send either position or currentTime/duration, not both")
	case p.Position != nil:
		if math.IsNaN(*p.Position) || *p.Position < 0 || *p.Position > 1 {
			return errors.New("position must be within [0, 1]")
		}
	case clock:
		if p.CurrentTime == nil || p.Duration == nil {
			return errors.New("currentTime and duration must be sent together")
		}
	default:
		return errors.New("position or currentTime/duration is required")
	}
	return nil
}

// MediaErrorRequest reports a playback failure on the client
type MediaErrorRequest struct {
	Reason string `json:"reason"`
}

// SessionResponse describes an open playback session
type SessionResponse struct {
	ID        uuid.UUID      `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Frame     playback.Frame `json:"frame"`
}
