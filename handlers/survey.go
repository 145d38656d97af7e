package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/mapview"
	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/models"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// SurveySource is the read side of the survey store
type SurveySource interface {
	Snapshot() *store.Dataset
	Status() store.Status
}

// Reloader refreshes the survey store from its source
type Reloader interface {
	Load(ctx context.Context) (*store.Dataset, bool, error)
}

// SurveyHandler serves the current survey dataset
type SurveyHandler struct {
	source   SurveySource
	reloader Reloader
	limits   classify.Limits
}

// NewSurveyHandler creates a new handler over source
func NewSurveyHandler(source SurveySource, reloader Reloader, limits classify.Limits) *SurveyHandler {
	return &SurveyHandler{source: source, reloader: reloader, limits: limits}
}

// GetSummary handles GET /api/survey
// Returns store state, dataset metadata, status counts and the map viewport
func (h *SurveyHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	status := h.source.Status()
	summary := models.SurveySummary{
		State:     status.State,
		Error:     status.Error,
		UpdatedAt: status.UpdatedAt,
	}

	if ds := h.source.Snapshot(); ds != nil {
		summary.Dataset = ds
		summary.RecordCount = len(ds.Records)
		summary.CoordinateCount = len(ds.Coordinates)
		summary.StatusCounts = classify.CountLanes(ds.Records)
		if vp, ok := mapview.ComputeViewport(ds.Coordinates); ok {
			summary.Viewport = &vp
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetSegments handles GET /api/survey/segments?offset&limit
func (h *SurveyHandler) GetSegments(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize, maxPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ds, ok := h.dataset(w)
	if !ok {
		return
	}

	total := len(ds.Records)
	start := min(offset, total)
	end := min(start+limit, total)

	writeJSON(w, http.StatusOK, models.SegmentsPage{
		Segments: ds.Records[start:end:end],
		Offset:   start,
		Limit:    limit,
		Total:    total,
	})
}

// GetRoadGeoJSON handles GET /api/survey/road.geojson
// Returns the primary lane coordinate sequence as one LineString
func (h *SurveyHandler) GetRoadGeoJSON(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}

	highway := ""
	if len(ds.Records) > 0 {
		highway = ds.Records[0].Highway
	}
	writeGeoJSON(w, mapview.RoadCollection(ds.Coordinates, highway))
}

// GetLanesGeoJSON handles GET /api/survey/lanes.geojson
// Returns one classified LineString per lane segment with geometry
func (h *SurveyHandler) GetLanesGeoJSON(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}
	writeGeoJSON(w, mapview.LaneCollection(ds.Records, h.limits))
}

// Reload handles POST /api/survey/reload
func (h *SurveyHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	ds, changed, err := h.reloader.Load(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to reload survey", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.ReloadResponse{Changed: changed, Dataset: ds})
}

// GetLimits handles GET /api/limits
func (h *SurveyHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.limits)
}

// dataset returns the current dataset or writes 503 when none is published
func (h *SurveyHandler) dataset(w http.ResponseWriter) (*store.Dataset, bool) {
	ds := h.source.Snapshot()
	if ds == nil {
		status := h.source.Status()
		details := map[string]interface{}{"state": status.State}
		if status.Error != "" {
			details["internal"] = status.Error
		}
		writeError(w, http.StatusServiceUnavailable, "Survey data not loaded", details)
		return nil, false
	}
	return ds, true
}

func writeGeoJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
