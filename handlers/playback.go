package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roadwatch/pavement/internal/playback"
	"github.com/roadwatch/pavement/models"
)

// SessionRegistry opens and looks up playback sessions
type SessionRegistry interface {
	Open() *playback.Session
	Get(id uuid.UUID) (*playback.Session, error)
	Close(id uuid.UUID) error
}

// PlaybackHandler drives per-viewer synchronizers from the media clock
type PlaybackHandler struct {
	sessions SessionRegistry
}

// NewPlaybackHandler creates a new handler over sessions
func NewPlaybackHandler(sessions SessionRegistry) *PlaybackHandler {
	return &PlaybackHandler{sessions: sessions}
}

// OpenSession handles POST /api/playback/sessions
func (h *PlaybackHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Open()
	writeJSON(w, http.StatusCreated, models.SessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Frame:     sess.Sync.Frame(),
	})
}

// CloseSession handles DELETE /api/playback/sessions/{sessionId}
func (h *PlaybackHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(id); err != nil {
		writeSessionError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePosition handles POST /api/playback/sessions/{sessionId}/position
// Accepts {currentTime, duration} from the media clock or {position} for a seek
func (h *PlaybackHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.PositionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var frame playback.Frame
	if req.IsSeek() {
		frame = sess.Sync.Seek(*req.Position)
	} else {
		frame = sess.Sync.UpdateClock(*req.CurrentTime, *req.Duration)
	}
	writeJSON(w, http.StatusOK, frame)
}

// ReportMediaError handles POST /api/playback/sessions/{sessionId}/error
// Freezes the session on its last frame until a seek or resume
func (h *PlaybackHandler) ReportMediaError(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.MediaErrorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, sess.Sync.MediaError(req.Reason))
}

// Resume handles POST /api/playback/sessions/{sessionId}/resume
func (h *PlaybackHandler) Resume(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Sync.Resume())
}

// GetFrame handles GET /api/playback/sessions/{sessionId}/frame
func (h *PlaybackHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Sync.Frame())
}

// StreamFrames handles GET /api/playback/sessions/{sessionId}/stream
// Server-sent events, one per frame. A slow client skips to the newest frame.
func (h *PlaybackHandler) StreamFrames(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	frames, cancel := sess.Sync.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-frames:
			if !open {
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", frame.Sequence, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *PlaybackHandler) session(w http.ResponseWriter, r *http.Request) (*playback.Session, bool) {
	id, ok := sessionID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		writeSessionError(w, id, err)
		return nil, false
	}
	return sess, true
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "sessionId")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID", map[string]interface{}{
			"sessionId": raw,
		})
		return uuid.Nil, false
	}
	return id, true
}

func writeSessionError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, playback.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found", map[string]interface{}{
			"sessionId": id.String(),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to access session", map[string]interface{}{
		"internal": err.Error(),
	})
}
