package report

import (
	"reflect"
	"strconv"
	"time"

	"github.com/roadwatch/pavement/internal/classify"
	"github.com/roadwatch/pavement/internal/survey"
)

// DefaultTrendSize is the number of leading records in the trend sample
const DefaultTrendSize = 50

// Histogram edges. Buckets are half-open [lower, upper); the last bucket of
// each histogram is open-ended.
var (
	RoughnessEdges = []float64{1000, 1500, 2000, 2400} // mm/km
	RuttingEdges   = []float64{2, 3, 4, 5}             // mm
)

// Options controls report generation
type Options struct {
	// TrendSize caps the trend sample; <= 0 means DefaultTrendSize
	TrendSize int
	// Lane whose values are summarized; empty means L2
	Lane survey.LaneCode
	// Now stamps GeneratedAt; nil means time.Now
	Now func() time.Time
}

// Metrics holds one value per surveyed metric
type Metrics struct {
	Roughness float64 `json:"roughness"`
	Rutting   float64 `json:"rutting"`
	Cracking  float64 `json:"cracking"`
	Ravelling float64 `json:"ravelling"`
}

// ExceedCounts holds the number of records above each limit
type ExceedCounts struct {
	Roughness int `json:"roughness"`
	Rutting   int `json:"rutting"`
	Cracking  int `json:"cracking"`
	Ravelling int `json:"ravelling"`
}

// Bucket is one histogram bar
type Bucket struct {
	Label string   `json:"label"`
	Lower float64  `json:"lower"`
	Upper *float64 `json:"upper,omitempty"` // nil for the open-ended top bucket
	Count int      `json:"count"`
}

// Histogram holds the roughness and rutting distributions
type Histogram struct {
	Roughness []Bucket `json:"roughnessBuckets"`
	Rutting   []Bucket `json:"ruttingBuckets"`
}

// TrendPoint is one record of the trend sample
type TrendPoint struct {
	Chainage string `json:"chainage"`
	Metrics
}

// LaneRoughness is the mean roughness of one lane over its classified segments
type LaneRoughness struct {
	Lane     survey.LaneCode `json:"lane"`
	Mean     float64         `json:"mean"`
	Segments int             `json:"segments"`
}

// Report summarizes a full record set
type Report struct {
	// GeneratedAt is presentation metadata and is ignored by Equivalent
	GeneratedAt time.Time       `json:"generatedAt"`
	Lane        survey.LaneCode `json:"lane"`
	Limits      classify.Limits `json:"limits"`
	RecordCount int             `json:"recordCount"`

	Means             Metrics      `json:"means"`
	StdDevs           Metrics      `json:"stdDevs"`
	ExceedCounts      ExceedCounts `json:"exceedCounts"`
	ExceedPercentages Metrics      `json:"exceedPercentages"`
	Histogram         Histogram    `json:"histogram"`
	TrendSample       []TrendPoint `json:"trendSample"`

	StatusCounts     classify.Counts `json:"statusCounts"`
	LaneRoughness    []LaneRoughness `json:"laneRoughness"`
	OverallRoughness float64         `json:"overallRoughness"`
}

// Generate builds a report over records. It only reads its inputs; records
// absent the summarized lane contribute zeros, as blank sheet cells do.
func Generate(records []survey.Record, limits classify.Limits, opts Options) Report {
	lane := opts.Lane
	if lane == "" {
		lane = survey.LaneL2
	}
	trendSize := opts.TrendSize
	if trendSize <= 0 {
		trendSize = DefaultTrendSize
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	r := Report{
		GeneratedAt: now().UTC(),
		Lane:        lane,
		Limits:      limits,
		RecordCount: len(records),
		Histogram: Histogram{
			Roughness: newBuckets(RoughnessEdges),
			Rutting:   newBuckets(RuttingEdges),
		},
		TrendSample:  make([]TrendPoint, 0, min(trendSize, len(records))),
		StatusCounts: classify.CountLanes(records),
	}

	var roughness, rutting, cracking, ravelling running
	for i := range records {
		rec := &records[i]
		v := rec.Values(lane)

		roughness.add(v.Roughness)
		rutting.add(v.Rutting)
		cracking.add(v.Cracking)
		ravelling.add(v.Ravelling)

		if v.Roughness > limits.RoughnessLimitFor(rec) {
			r.ExceedCounts.Roughness++
		}
		if v.Rutting > limits.Rutting {
			r.ExceedCounts.Rutting++
		}
		if v.Cracking > limits.Cracking {
			r.ExceedCounts.Cracking++
		}
		if v.Ravelling > limits.Ravelling {
			r.ExceedCounts.Ravelling++
		}

		countInto(r.Histogram.Roughness, RoughnessEdges, v.Roughness)
		countInto(r.Histogram.Rutting, RuttingEdges, v.Rutting)

		if i < trendSize {
			r.TrendSample = append(r.TrendSample, TrendPoint{
				Chainage: rec.StartChainage,
				Metrics: Metrics{
					Roughness: v.Roughness,
					Rutting:   v.Rutting,
					Cracking:  v.Cracking,
					Ravelling: v.Ravelling,
				},
			})
		}
	}

	r.Means = Metrics{roughness.Mean(), rutting.Mean(), cracking.Mean(), ravelling.Mean()}
	r.StdDevs = Metrics{roughness.StdDev(), rutting.StdDev(), cracking.StdDev(), ravelling.StdDev()}
	r.ExceedPercentages = Metrics{
		Roughness: percent(r.ExceedCounts.Roughness, len(records)),
		Rutting:   percent(r.ExceedCounts.Rutting, len(records)),
		Cracking:  percent(r.ExceedCounts.Cracking, len(records)),
		Ravelling: percent(r.ExceedCounts.Ravelling, len(records)),
	}
	r.LaneRoughness, r.OverallRoughness = laneRoughness(records)
	return r
}

// Equivalent reports whether two reports carry the same results,
// ignoring their generation time
func Equivalent(a, b Report) bool {
	a.GeneratedAt = time.Time{}
	b.GeneratedAt = time.Time{}
	return reflect.DeepEqual(a, b)
}

// laneRoughness averages each lane over its classified segments. The
// overall figure is the mean of the lanes that have any.
func laneRoughness(records []survey.Record) ([]LaneRoughness, float64) {
	lanes := survey.AllLanes()
	stats := make(map[survey.LaneCode]*running, len(lanes))
	for _, code := range lanes {
		stats[code] = &running{}
	}

	for i := range records {
		for _, lane := range records[i].Lanes {
			if lane.Status == survey.StatusUnclassified || lane.Status == "" {
				continue
			}
			if s, ok := stats[lane.Code]; ok {
				s.add(lane.Roughness)
			}
		}
	}

	out := make([]LaneRoughness, 0, len(lanes))
	var overall running
	for _, code := range lanes {
		s := stats[code]
		out = append(out, LaneRoughness{Lane: code, Mean: s.Mean(), Segments: s.n})
		if s.n > 0 {
			overall.add(s.Mean())
		}
	}
	return out, overall.Mean()
}

func newBuckets(edges []float64) []Bucket {
	buckets := make([]Bucket, 0, len(edges)+1)
	lower := 0.0
	for i := range edges {
		upper := edges[i]
		buckets = append(buckets, Bucket{
			Label: bucketLabel(lower, upper, i == 0),
			Lower: lower,
			Upper: &upper,
		})
		lower = upper
	}
	buckets = append(buckets, Bucket{
		Label: ">= " + formatEdge(lower),
		Lower: lower,
	})
	return buckets
}

func bucketLabel(lower, upper float64, first bool) string {
	if first {
		return "< " + formatEdge(upper)
	}
	return formatEdge(lower) + "-" + formatEdge(upper)
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// countInto increments the bucket v falls in
func countInto(buckets []Bucket, edges []float64, v float64) {
	for i, edge := range edges {
		if v < edge {
			buckets[i].Count++
			return
		}
	}
	buckets[len(edges)].Count++
}
