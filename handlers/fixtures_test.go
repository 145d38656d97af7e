package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/internal/survey"
)

var testLimits = classify.Limits{Roughness: 2400, Rutting: 5, Cracking: 1, Ravelling: 1, WarningRatio: 0.8}

// sampleDataset returns n classified records along a straight road, each
// with L2 geometry and roughness rising by 200 per record from 1000
func sampleDataset(n int) *store.Dataset {
	records := make([]survey.Record, n)
	for i := range records {
		lng := 77.0 + float64(i)*0.001
		records[i] = survey.Record{
			Row:           i + 2,
			Highway:       "NH48",
			StartChainage: fmt.Sprintf("%d+000", i),
			EndChainage:   fmt.Sprintf("%d+100", i),
			Length:        100,
			Lanes: []survey.Lane{{
				Code:         survey.LaneL2,
				Geometry:     &survey.Geometry{Start: orb.Point{lng, 28.5}, End: orb.Point{lng + 0.0005, 28.5}},
				Measured:     true,
				Measurements: survey.Measurements{Roughness: 1000 + float64(i)*200, Rutting: 2},
			}},
		}
	}
	records = classify.Records(records, testLimits, survey.LaneL2)

	return &store.Dataset{
		Source:      "survey.csv",
		Layout:      survey.LayoutNameL2,
		PrimaryLane: survey.LaneL2,
		Records:     records,
		Coordinates: survey.Coordinates(records, survey.LaneL2),
	}
}

// publishedStore returns a store holding a published sample dataset
func publishedStore(n int) *store.Store {
	st, w := store.New()
	w.Publish(sampleDataset(n))
	return st
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}
