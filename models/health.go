package models

import (
	"time"

	"github.com/roadwatch/pavement/internal/store"
)

// Health status values
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// HealthResponse is the JSON response for GET /health
type HealthResponse struct {
	Status           string       `json:"status"`
	Database         string       `json:"database"` // "connected" or "disconnected"
	Survey           store.Status `json:"survey"`
	PlaybackSessions int          `json:"playbackSessions"`
	Timestamp        time.Time    `json:"timestamp"`
	Error            string       `json:"error,omitempty"`
}

// OverallStatus derives the health status from its parts
func OverallStatus(dbOK bool, state store.State) string {
	if !dbOK {
		return StatusError
	}
	if state != store.StateReady {
		return StatusDegraded
	}
	return StatusOK
}
