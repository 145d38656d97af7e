package models

import (
	"math"
	"testing"
	"time"

	"github.com/roadwatch/pavement/internal/report"
	"github.com/roadwatch/pavement/internal/store"
)

func ptr(v float64) *float64 { return &v }

func TestPositionRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     PositionRequest
		wantErr bool
		seek    bool
	}{
		{"clock", PositionRequest{CurrentTime: ptr(3), Duration: ptr(10)}, false, false},
		{"degenerate clock", PositionRequest{CurrentTime: ptr(0), Duration: ptr(0)}, false, false},
		{"nan duration", PositionRequest{CurrentTime: ptr(1), Duration: ptr(math.NaN())}, false, false},
		{"seek", PositionRequest{Position: ptr(0.5)}, false, true},
		{"seek bounds", PositionRequest{Position: ptr(1)}, false, true},
		{"empty", PositionRequest{}, true, false},
		{"time only", PositionRequest{CurrentTime: ptr(1)}, true, false},
		{"duration only", PositionRequest{Duration: ptr(1)}, true, false},
		{"both", PositionRequest{Position: ptr(0.5), Duration: ptr(1)}, true, true},
		{"negative position", PositionRequest{Position: ptr(-0.1)}, true, true},
		{"nan position", PositionRequest{Position: ptr(math.NaN())}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.req.IsSeek() != tt.seek {
				t.Errorf("IsSeek() = %v, want %v", tt.req.IsSeek(), tt.seek)
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		dbOK  bool
		state store.State
		want  string
	}{
		{true, store.StateReady, StatusOK},
		{true, store.StateLoading, StatusDegraded},
		{true, store.StateUnavailable, StatusDegraded},
		{false, store.StateReady, StatusError},
	}

	for _, tt := range tests {
		if got := OverallStatus(tt.dbOK, tt.state); got != tt.want {
			t.Errorf("OverallStatus(%v, %s) = %s, want %s", tt.dbOK, tt.state, got, tt.want)
		}
	}
}

func TestReportSummary(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rep := StoredReport{
		ID:             "r1",
		DatasetID:      "d1",
		DatasetVersion: 2,
		Report: report.Report{
			GeneratedAt:       at,
			RecordCount:       40,
			Means:             report.Metrics{Roughness: 2100},
			ExceedPercentages: report.Metrics{Roughness: 12.5},
		},
	}

	got := rep.Summary()
	want := ReportSummary{
		ID: "r1", DatasetID: "d1", DatasetVersion: 2, GeneratedAt: at,
		RecordCount: 40, MeanRoughness: 2100, RoughnessExceedPct: 12.5,
	}
	if got != want {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}
}
