package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/roadwatch/pavement/internal/playback"
	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/models"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestGetHealth(t *testing.T) {
	loading, _ := store.New()
	ready := publishedStore(3)

	tests := []struct {
		name       string
		pingErr    error
		survey     *store.Store
		wantStatus string
		wantCode   int
		wantDB     string
	}{
		{"healthy", nil, ready, models.StatusOK, http.StatusOK, "connected"},
		{"no dataset yet", nil, loading, models.StatusDegraded, http.StatusOK, "connected"},
		{"database down", errors.New("database is locked"), ready, models.StatusError, http.StatusServiceUnavailable, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := playback.NewRegistry(tt.survey, time.Millisecond)
			defer registry.CloseAll()
			registry.Open()

			h := NewHealthHandler(fakePinger{err: tt.pingErr}, tt.survey, registry)
			rec := doRequest(t, http.HandlerFunc(h.GetHealth), http.MethodGet, "/health", "")

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var resp models.HealthResponse
			decode(t, rec, &resp)
			if resp.Status != tt.wantStatus || resp.Database != tt.wantDB {
				t.Errorf("status=%s database=%s", resp.Status, resp.Database)
			}
			if resp.PlaybackSessions != 1 {
				t.Errorf("playbackSessions = %d, want 1", resp.PlaybackSessions)
			}
			if tt.pingErr != nil && resp.Error != tt.pingErr.Error() {
				t.Errorf("error = %q", resp.Error)
			}
		})
	}
}
