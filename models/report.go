package models

import (
	"time"

	"github.com/roadwatch/pavement/internal/report"
)

// StoredReport is a generated report together with the dataset it covers
type StoredReport struct {
	ID             string        `json:"id"`
	DatasetID      string        `json:"datasetId"`
	DatasetVersion int           `json:"datasetVersion"`
	Report         report.Report `json:"report"`
}

// ReportSummary is the list view of a stored report
type ReportSummary struct {
	ID                 string    `json:"id"`
	DatasetID          string    `json:"datasetId"`
	DatasetVersion     int       `json:"datasetVersion"`
	GeneratedAt        time.Time `json:"generatedAt"`
	RecordCount        int       `json:"recordCount"`
	MeanRoughness      float64   `json:"meanRoughness"`
	RoughnessExceedPct float64   `json:"roughnessExceedPct"`
}

// Summary returns the list view of r
func (r *StoredReport) Summary() ReportSummary {
	return ReportSummary{
		ID:                 r.ID,
		DatasetID:          r.DatasetID,
		DatasetVersion:     r.DatasetVersion,
		GeneratedAt:        r.Report.GeneratedAt,
		RecordCount:        r.Report.RecordCount,
		MeanRoughness:      r.Report.Means.Roughness,
		RoughnessExceedPct: r.Report.ExceedPercentages.Roughness,
	}
}

// CreateReportRequest optionally overrides report options
type CreateReportRequest struct {
	TrendSize int    `json:"trendSize,omitempty"`
	Lane      string `json:"lane,omitempty"`
}
