package classify

import (
	"errors"
	"fmt"
	"math"

	"github.com/roadwatch/pavement/internal/survey"
)

// Limits holds the condition thresholds a dataset is judged against.
// Values come from configuration; nothing here is a universal constant.
type Limits struct {
	Roughness float64 `json:"roughnessLimit"` // mm/km
	Rutting   float64 `json:"ruttingLimit"`   // mm
	Cracking  float64 `json:"crackingLimit"`  // % area
	Ravelling float64 `json:"ravellingLimit"` // % area

	// WarningRatio is the fraction of the roughness limit above which a lane
	// is flagged as approaching the limit
	WarningRatio float64 `json:"warningRatio"`

	// UseRowLimit prefers a positive per-row roughness limit when the sheet carries one
	UseRowLimit bool `json:"useRowLimit"`
}

// Validate checks the limits are usable
func (l Limits) Validate() error {
	values := []struct {
		name string
		v    float64
	}{
		{"roughness limit", l.Roughness},
		{"rutting limit", l.Rutting},
		{"cracking limit", l.Cracking},
		{"ravelling limit", l.Ravelling},
		{"warning ratio", l.WarningRatio},
	}
	// NaN slips past every ordered comparison below
	for _, f := range values {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
	}
	if l.Roughness <= 0 {
		return errors.New("roughness limit must be positive")
	}
	if l.Rutting < 0 || l.Cracking < 0 || l.Ravelling < 0 {
		return errors.New("secondary limits must not be negative")
	}
	if l.WarningRatio <= 0 || l.WarningRatio > 1 {
		return fmt.Errorf("warning ratio %v must be in (0, 1]", l.WarningRatio)
	}
	return nil
}

// RoughnessLimitFor returns the roughness limit that applies to a record
func (l Limits) RoughnessLimitFor(rec *survey.Record) float64 {
	if l.UseRowLimit && rec.RoughnessLimit > 0 {
		return rec.RoughnessLimit
	}
	return l.Roughness
}

// Lane classifies one lane. The first matching rule wins:
//  1. maintenance token in the remark or the lane's geometry cell
//  2. roughness above the limit
//  3. roughness above WarningRatio x limit
//  4. good
//
// Lanes with no geometry, no measurement and no maintenance flag are
// left unclassified.
func Lane(lane survey.Lane, recordMaintenance bool, roughnessLimit float64, limits Limits) (survey.Status, survey.Highlights) {
	maintenance := recordMaintenance || lane.MaintenanceFlag
	if !maintenance && lane.Geometry == nil && !lane.Measured {
		return survey.StatusUnclassified, survey.Highlights{}
	}

	highlights := survey.Highlights{
		Rutting:   lane.Rutting > limits.Rutting,
		Cracking:  lane.Cracking > limits.Cracking,
		Ravelling: lane.Ravelling > limits.Ravelling,
	}

	switch {
	case maintenance:
		return survey.StatusUnderMaintenance, highlights
	case lane.Roughness > roughnessLimit:
		return survey.StatusExceeds, highlights
	case lane.Roughness > limits.WarningRatio*roughnessLimit:
		return survey.StatusWarning, highlights
	default:
		return survey.StatusGood, highlights
	}
}

// Records returns a classified copy of records; the input is not modified.
// Each record's status mirrors its primary lane.
func Records(records []survey.Record, limits Limits, primary survey.LaneCode) []survey.Record {
	out := make([]survey.Record, len(records))
	for i := range records {
		rec := records[i]
		rec.Lanes = make([]survey.Lane, len(records[i].Lanes))
		copy(rec.Lanes, records[i].Lanes)

		limit := limits.RoughnessLimitFor(&rec)
		rec.Status = survey.StatusUnclassified
		for j := range rec.Lanes {
			lane := &rec.Lanes[j]
			lane.Status, lane.Highlights = Lane(*lane, rec.Maintenance, limit, limits)
			if lane.Code == primary {
				rec.Status = lane.Status
			}
		}
		out[i] = rec
	}
	return out
}

// Counts tallies classified lanes by status; unclassified lanes are skipped
type Counts struct {
	Good             int `json:"good"`
	Warning          int `json:"warning"`
	Exceeds          int `json:"exceeds"`
	UnderMaintenance int `json:"underMaintenance"`
}

// Total returns the number of classified lanes
func (c Counts) Total() int {
	return c.Good + c.Warning + c.Exceeds + c.UnderMaintenance
}

// Add counts one status
func (c *Counts) Add(s survey.Status) {
	switch s {
	case survey.StatusGood:
		c.Good++
	case survey.StatusWarning:
		c.Warning++
	case survey.StatusExceeds:
		c.Exceeds++
	case survey.StatusUnderMaintenance:
		c.UnderMaintenance++
	}
}

// CountLanes tallies every classified lane of every record
func CountLanes(records []survey.Record) Counts {
	var c Counts
	for i := range records {
		for _, lane := range records[i].Lanes {
			c.Add(lane.Status)
		}
	}
	return c
}
