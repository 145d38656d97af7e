package playback

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/roadwatch/pavement/internal/survey"
)

const (
	// WindowSize is the number of records in a full visible window
	WindowSize = 7
	// windowLead is how many records precede the active one in the window
	windowLead = 3

	// NoIndex marks an index that does not exist (empty record or coordinate set)
	NoIndex = -1
)

// Frame is one synchronized view of the dataset at a playback position.
// The table window, the chart marker and the map marker are all read from
// the same Frame so they can never disagree.
type Frame struct {
	Sequence       uint64 `json:"sequence"`
	DatasetID      string `json:"datasetId,omitempty"`
	DatasetVersion int    `json:"datasetVersion"`

	// Loading is set when there is no usable position or no dataset yet
	Loading bool `json:"loading"`
	// Frozen is set after a media error until the next seek or resume
	Frozen bool `json:"frozen"`

	Position         float64         `json:"position"`
	ActiveIndex      int             `json:"activeIndex"`
	ActiveCoordIndex int             `json:"activeCoordIndex"`
	WindowStart      int             `json:"windowStart"`
	WindowEnd        int             `json:"windowEnd"` // exclusive
	Window           []survey.Record `json:"window"`
	Marker           *orb.Point      `json:"marker,omitempty"`
	CurrentChainage  string          `json:"currentChainage,omitempty"`

	// EaseMillis is how long the map marker should take to glide to Marker.
	// Presentation only: indices above are already exact.
	EaseMillis int64 `json:"easeMillis"`
}

// LoadingFrame returns the frame shown while no position or dataset is known
func LoadingFrame() Frame {
	return Frame{
		Loading:          true,
		ActiveIndex:      NoIndex,
		ActiveCoordIndex: NoIndex,
		Window:           []survey.Record{},
	}
}

// Position converts a media clock reading into a playback fraction in [0, 1].
// It returns false when the clock cannot produce one (NaN/Inf values or a
// non-positive duration).
func Position(currentTime, duration float64) (float64, bool) {
	if math.IsNaN(currentTime) || math.IsInf(currentTime, 0) {
		return 0, false
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0, false
	}
	return clamp(currentTime/duration, 0, 1), true
}

// ActiveIndex maps a position to the active record index, or NoIndex when n is 0
func ActiveIndex(position float64, n int) int {
	if n <= 0 || math.IsNaN(position) {
		return NoIndex
	}
	return clampInt(int(math.Floor(position*float64(n))), 0, n-1)
}

// CoordIndex maps a position to an index into the coordinate sequence,
// or NoIndex when m is 0
func CoordIndex(position float64, m int) int {
	if m <= 0 || math.IsNaN(position) {
		return NoIndex
	}
	return clampInt(int(math.Floor(position*float64(m-1))), 0, m-1)
}

// WindowBounds returns the half-open [start, end) record range shown around
// the active index. The window is shortened at the end of the sequence, never padded.
func WindowBounds(active, n int) (int, int) {
	if n <= 0 || active < 0 {
		return 0, 0
	}
	start := clampInt(active-windowLead, 0, n)
	end := min(n, start+WindowSize)
	return start, end
}

// Compute derives every frame field from a single position value. A NaN
// position yields the loading frame; an empty record set yields an empty
// frame with no active index.
func Compute(position float64, records []survey.Record, coords []orb.Point) Frame {
	if math.IsNaN(position) || math.IsInf(position, 0) {
		return LoadingFrame()
	}
	p := clamp(position, 0, 1)

	f := Frame{
		Position:         p,
		ActiveIndex:      ActiveIndex(p, len(records)),
		ActiveCoordIndex: CoordIndex(p, len(coords)),
	}

	f.WindowStart, f.WindowEnd = WindowBounds(f.ActiveIndex, len(records))
	f.Window = records[f.WindowStart:f.WindowEnd:f.WindowEnd]
	if f.Window == nil {
		f.Window = []survey.Record{}
	}

	if f.ActiveIndex != NoIndex {
		f.CurrentChainage = records[f.ActiveIndex].StartChainage
	}
	if f.ActiveCoordIndex != NoIndex {
		marker := coords[f.ActiveCoordIndex]
		f.Marker = &marker
	}
	return f
}

// clamp restricts v to [lo, hi]
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
