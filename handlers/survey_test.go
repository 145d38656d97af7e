package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/models"
)

type fakeReloader struct {
	ds      *store.Dataset
	changed bool
	err     error
	calls   int
}

func (f *fakeReloader) Load(context.Context) (*store.Dataset, bool, error) {
	f.calls++
	return f.ds, f.changed, f.err
}

func surveyRouter(h *SurveyHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/survey", h.GetSummary)
	r.Get("/api/survey/segments", h.GetSegments)
	r.Get("/api/survey/road.geojson", h.GetRoadGeoJSON)
	r.Get("/api/survey/lanes.geojson", h.GetLanesGeoJSON)
	r.Post("/api/survey/reload", h.Reload)
	r.Get("/api/limits", h.GetLimits)
	return r
}

func TestSurveyBeforeFirstLoad(t *testing.T) {
	st, _ := store.New()
	router := surveyRouter(NewSurveyHandler(st, &fakeReloader{}, testLimits))

	rec := doRequest(t, router, http.MethodGet, "/api/survey", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary models.SurveySummary
	decode(t, rec, &summary)
	if summary.State != store.StateLoading || summary.Dataset != nil {
		t.Errorf("expected loading summary without dataset, got %+v", summary)
	}

	for _, path := range []string{"/api/survey/segments", "/api/survey/road.geojson", "/api/survey/lanes.geojson"} {
		rec := doRequest(t, router, http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, rec.Code)
		}
		var resp ErrorResponse
		decode(t, rec, &resp)
		if resp.Details["state"] != string(store.StateLoading) {
			t.Errorf("%s: expected loading state in details, got %v", path, resp.Details)
		}
	}
}

func TestSurveySummary(t *testing.T) {
	router := surveyRouter(NewSurveyHandler(publishedStore(10), &fakeReloader{}, testLimits))

	rec := doRequest(t, router, http.MethodGet, "/api/survey", "")
	var summary models.SurveySummary
	decode(t, rec, &summary)

	if summary.State != store.StateReady {
		t.Errorf("state = %s, want ready", summary.State)
	}
	if summary.RecordCount != 10 || summary.CoordinateCount != 20 {
		t.Errorf("counts = %d records, %d coords", summary.RecordCount, summary.CoordinateCount)
	}
	// roughness 1000..2800: 1000-1800 good, 2000-2400 warning, 2600-2800 exceeds
	counts := summary.StatusCounts
	if counts.Good != 5 || counts.Warning != 3 || counts.Exceeds != 2 {
		t.Errorf("unexpected status counts %+v", counts)
	}
	if summary.Viewport == nil {
		t.Fatal("expected a viewport")
	}
	if summary.Viewport.Center.Lat != 28.5 {
		t.Errorf("viewport center lat = %v", summary.Viewport.Center.Lat)
	}
	if summary.Dataset == nil || summary.Dataset.Version != 1 {
		t.Errorf("expected dataset version 1, got %+v", summary.Dataset)
	}
}

func TestSurveySegments(t *testing.T) {
	router := surveyRouter(NewSurveyHandler(publishedStore(10), &fakeReloader{}, testLimits))

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
		wantOffset int
	}{
		{"default page", "", http.StatusOK, 10, 0},
		{"middle page", "?offset=4&limit=3", http.StatusOK, 3, 4},
		{"tail page", "?offset=8&limit=5", http.StatusOK, 2, 8},
		{"past the end", "?offset=50", http.StatusOK, 0, 10},
		{"negative offset", "?offset=-1", http.StatusBadRequest, 0, 0},
		{"bad limit", "?limit=ten", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, "/api/survey/segments"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var page models.SegmentsPage
			decode(t, rec, &page)
			if len(page.Segments) != tt.wantLen || page.Offset != tt.wantOffset || page.Total != 10 {
				t.Errorf("got %d segments at offset %d of %d", len(page.Segments), page.Offset, page.Total)
			}
			if tt.wantLen > 0 && page.Segments[0].Row != tt.wantOffset+2 {
				t.Errorf("first segment row = %d", page.Segments[0].Row)
			}
		})
	}
}

func TestSurveyGeoJSON(t *testing.T) {
	router := surveyRouter(NewSurveyHandler(publishedStore(4), &fakeReloader{}, testLimits))

	rec := doRequest(t, router, http.MethodGet, "/api/survey/road.geojson", "")
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	road, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("road.geojson did not parse: %v", err)
	}
	if len(road.Features) != 1 {
		t.Fatalf("expected one road feature, got %d", len(road.Features))
	}
	line, ok := road.Features[0].Geometry.(orb.LineString)
	if !ok || len(line) != 8 {
		t.Errorf("expected an 8-point LineString, got %T", road.Features[0].Geometry)
	}
	if road.Features[0].Properties.MustString("highway") != "NH48" {
		t.Errorf("unexpected properties %v", road.Features[0].Properties)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/survey/lanes.geojson", "")
	lanes, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("lanes.geojson did not parse: %v", err)
	}
	if len(lanes.Features) != 4 {
		t.Errorf("expected 4 lane features, got %d", len(lanes.Features))
	}
}

func TestSurveyReload(t *testing.T) {
	ds := sampleDataset(3)

	t.Run("success", func(t *testing.T) {
		reloader := &fakeReloader{ds: ds, changed: true}
		router := surveyRouter(NewSurveyHandler(publishedStore(3), reloader, testLimits))

		rec := doRequest(t, router, http.MethodPost, "/api/survey/reload", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp models.ReloadResponse
		decode(t, rec, &resp)
		if !resp.Changed || resp.Dataset == nil || reloader.calls != 1 {
			t.Errorf("unexpected reload response %+v", resp)
		}
	})

	t.Run("failure", func(t *testing.T) {
		reloader := &fakeReloader{err: errors.New("source unreachable")}
		router := surveyRouter(NewSurveyHandler(publishedStore(3), reloader, testLimits))

		rec := doRequest(t, router, http.MethodPost, "/api/survey/reload", "")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		var resp ErrorResponse
		decode(t, rec, &resp)
		if resp.Details["internal"] != "source unreachable" {
			t.Errorf("unexpected details %v", resp.Details)
		}
	})
}

func TestGetLimits(t *testing.T) {
	router := surveyRouter(NewSurveyHandler(publishedStore(1), &fakeReloader{}, testLimits))

	rec := doRequest(t, router, http.MethodGet, "/api/limits", "")
	var got map[string]interface{}
	decode(t, rec, &got)
	if got["roughnessLimit"] != 2400.0 || got["warningRatio"] != 0.8 {
		t.Errorf("unexpected limits %v", got)
	}
}
