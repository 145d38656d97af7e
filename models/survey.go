package models

import (
	"time"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/mapview"
	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/internal/survey"
)

// SurveySummary describes the current dataset and store state
type SurveySummary struct {
	State           store.State       `json:"state"`
	Error           string            `json:"error,omitempty"`
	Dataset         *store.Dataset    `json:"dataset,omitempty"` // metadata only
	RecordCount     int               `json:"recordCount"`
	CoordinateCount int               `json:"coordinateCount"`
	StatusCounts    classify.Counts   `json:"statusCounts"`
	Viewport        *mapview.Viewport `json:"viewport,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// SegmentsPage is one page of classified survey records
type SegmentsPage struct {
	Segments []survey.Record `json:"segments"`
	Offset   int             `json:"offset"`
	Limit    int             `json:"limit"`
	Total    int             `json:"total"`
}

// ReloadResponse is returned by POST /api/survey/reload
type ReloadResponse struct {
	Changed bool           `json:"changed"`
	Dataset *store.Dataset `json:"dataset"`
}
