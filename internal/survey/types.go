package survey

import "github.com/paulmach/orb"

// LaneCode identifies a carriageway lane (L1-L4 left, R1-R4 right)
type LaneCode string

const (
	LaneL1 LaneCode = "L1"
	LaneL2 LaneCode = "L2"
	LaneL3 LaneCode = "L3"
	LaneL4 LaneCode = "L4"
	LaneR1 LaneCode = "R1"
	LaneR2 LaneCode = "R2"
	LaneR3 LaneCode = "R3"
	LaneR4 LaneCode = "R4"
)

// AllLanes returns every lane code in survey sheet order
func AllLanes() []LaneCode {
	return []LaneCode{LaneL1, LaneL2, LaneL3, LaneL4, LaneR1, LaneR2, LaneR3, LaneR4}
}

// Status is the condition class assigned to a lane or record
type Status string

const (
	// StatusUnclassified marks lanes with nothing to classify (no geometry,
	// no measurement, no maintenance flag). They are left out of counts.
	StatusUnclassified     Status = "unclassified"
	StatusGood             Status = "good"
	StatusWarning          Status = "warning"
	StatusExceeds          Status = "exceeds"
	StatusUnderMaintenance Status = "under_maintenance"
)

// Label returns the display label used by map popups and reports
func (s Status) Label() string {
	switch s {
	case StatusGood:
		return "Good"
	case StatusWarning:
		return "Warning"
	case StatusExceeds:
		return "Exceeds Limit"
	case StatusUnderMaintenance:
		return "Under Maintenance"
	default:
		return "Unclassified"
	}
}

// Measurements holds the surveyed condition values of one lane.
// All values are finite and non-negative after ingestion.
type Measurements struct {
	Roughness float64 `json:"roughness"` // mm/km
	Rutting   float64 `json:"rutting"`   // mm
	Cracking  float64 `json:"cracking"`  // % area
	Ravelling float64 `json:"ravelling"` // % area
}

// Geometry is a lane's start/end position as [lng, lat] points
type Geometry struct {
	Start orb.Point `json:"start"`
	End   orb.Point `json:"end"`
}

// Highlights flags secondary metrics above their limits.
// Presentational only, never changes the primary status.
type Highlights struct {
	Rutting   bool `json:"rutting"`
	Cracking  bool `json:"cracking"`
	Ravelling bool `json:"ravelling"`
}

// Lane is one lane of a surveyed segment
type Lane struct {
	Code     LaneCode  `json:"code"`
	Geometry *Geometry `json:"geometry,omitempty"` // nil when either endpoint is unusable
	Measurements

	// Measured is true when at least one measurement cell held a number
	Measured bool `json:"measured"`
	// MaintenanceFlag is set when the lane's geometry cell carries the
	// maintenance token instead of a coordinate
	MaintenanceFlag bool `json:"maintenanceFlag,omitempty"`

	// Derived by the classifier
	Status     Status     `json:"status"`
	Highlights Highlights `json:"highlights"`
}

// Record is one surveyed highway segment, in source row order
type Record struct {
	Row              int     `json:"row"` // 1-based line in the source file
	Highway          string  `json:"highway"`
	StartChainage    string  `json:"startChainage"`
	EndChainage      string  `json:"endChainage"`
	Length           float64 `json:"length"`
	StructureDetails string  `json:"structureDetails,omitempty"`
	Remark           string  `json:"remark,omitempty"`

	// RoughnessLimit is the per-row limit for layouts that carry one, 0 otherwise
	RoughnessLimit float64 `json:"roughnessLimit,omitempty"`
	// Maintenance is true when the remark carries the maintenance token
	Maintenance bool `json:"maintenance"`

	Lanes []Lane `json:"lanes"`

	// Status mirrors the primary lane's status (set by the classifier)
	Status Status `json:"status"`
}

// Lane returns the lane with the given code
func (r *Record) Lane(code LaneCode) (*Lane, bool) {
	for i := range r.Lanes {
		if r.Lanes[i].Code == code {
			return &r.Lanes[i], true
		}
	}
	return nil, false
}

// Values returns the measurements of the given lane, or zeros when absent
func (r *Record) Values(code LaneCode) Measurements {
	if lane, ok := r.Lane(code); ok {
		return lane.Measurements
	}
	return Measurements{}
}

// Coordinates flattens the given lane's start/end points of every record,
// in record order. This is the index space the map marker moves across.
func Coordinates(records []Record, code LaneCode) []orb.Point {
	coords := make([]orb.Point, 0, len(records)*2)
	for i := range records {
		lane, ok := records[i].Lane(code)
		if !ok || lane.Geometry == nil {
			continue
		}
		coords = append(coords, lane.Geometry.Start, lane.Geometry.End)
	}
	return coords
}
