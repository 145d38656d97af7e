package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/models"
)

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource reports the survey store state
type StatusSource interface {
	Status() store.Status
}

// SessionCounter reports the number of open playback sessions
type SessionCounter interface {
	Len() int
}

// HealthHandler handles GET /health
type HealthHandler struct {
	db       Pinger
	survey   StatusSource
	sessions SessionCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, survey StatusSource, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{db: db, survey: survey, sessions: sessions}
}

// GetHealth handles GET /health
// Pings the database and reports survey store state. Returns 503 only when
// the database is unreachable; a missing dataset is reported as degraded.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Database:         "connected",
		Survey:           h.survey.Status(),
		PlaybackSessions: h.sessions.Len(),
		Timestamp:        time.Now().UTC(),
	}

	err := h.db.Ping(ctx)
	if err != nil {
		resp.Database = "disconnected"
		resp.Error = err.Error()
	}
	resp.Status = models.OverallStatus(err == nil, resp.Survey.State)

	code := http.StatusOK
	if resp.Status == models.StatusError {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
