package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/report"
	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/internal/survey"
	"github.com/roadwatch/pavement/models"
	"github.com/roadwatch/pavement/repository"
)

const (
	defaultReportPage = 20
	maxReportPage     = 200
)

// ReportRepository defines the interface for report archive operations
type ReportRepository interface {
	SaveReport(ctx context.Context, rep *models.StoredReport) error
	ListReports(ctx context.Context, limit int) ([]models.ReportSummary, error)
	GetReport(ctx context.Context, id string) (*models.StoredReport, error)
}

// DatasetSource returns the current survey dataset
type DatasetSource interface {
	Snapshot() *store.Dataset
}

// ReportsHandler generates and serves condition reports
type ReportsHandler struct {
	source    DatasetSource
	repo      ReportRepository
	limits    classify.Limits
	trendSize int
}

// NewReportsHandler creates a new handler
func NewReportsHandler(source DatasetSource, repo ReportRepository, limits classify.Limits, trendSize int) *ReportsHandler {
	return &ReportsHandler{source: source, repo: repo, limits: limits, trendSize: trendSize}
}

// CreateReport handles POST /api/reports
// Generates a report from the current dataset and archives it
func (h *ReportsHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}
	if req.TrendSize < 0 {
		writeError(w, http.StatusBadRequest, "trendSize must not be negative", nil)
		return
	}

	ds := h.source.Snapshot()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "Survey data not loaded", nil)
		return
	}

	lane := ds.PrimaryLane
	if req.Lane != "" {
		lane = survey.LaneCode(req.Lane)
		if !slices.Contains(survey.AllLanes(), lane) {
			writeError(w, http.StatusBadRequest, "Unknown lane", map[string]interface{}{
				"lane": req.Lane,
			})
			return
		}
	}
	trendSize := h.trendSize
	if req.TrendSize > 0 {
		trendSize = req.TrendSize
	}

	stored := &models.StoredReport{
		ID:             uuid.New().String(),
		DatasetID:      ds.ID.String(),
		DatasetVersion: ds.Version,
		Report:         report.Generate(ds.Records, h.limits, report.Options{TrendSize: trendSize, Lane: lane}),
	}
	if err := h.repo.SaveReport(r.Context(), stored); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save report", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

// ListReports handles GET /api/reports?limit
func (h *ReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultReportPage, maxReportPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	summaries, err := h.repo.ListReports(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve reports", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": summaries,
		"count":   len(summaries),
	})
}

// GetReport handles GET /api/reports/{reportId}
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportId")
	if _, err := uuid.Parse(reportID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid report ID", map[string]interface{}{
			"reportId": reportID,
		})
		return
	}

	rep, err := h.repo.GetReport(r.Context(), reportID)
	if errors.Is(err, repository.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "Report not found", map[string]interface{}{
			"reportId": reportID,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve report", map[string]interface{}{
			"internal": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, rep)
}
