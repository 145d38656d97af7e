package survey

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// NoColumn marks a field the layout does not carry
const NoColumn = -1

// LaneColumns holds the column offsets of one lane.
// Geometry is the first of four consecutive cells:
// start lat, start lng, end lat, end lng.
type LaneColumns struct {
	Lane      LaneCode `json:"lane"`
	Geometry  int      `json:"geometry"`
	Roughness int      `json:"roughness"`
	Rutting   int      `json:"rutting"`
	Cracking  int      `json:"cracking"`
	Ravelling int      `json:"ravelling"`
}

// Layout is a named, versioned column map for one survey sheet vintage.
// Offsets are 0-based; NoColumn (-1) means the sheet has no such field.
// JSON layouts must spell out -1 explicitly since 0 is a valid offset.
type Layout struct {
	Name    string `json:"name"`
	Version int    `json:"version"`

	// Rows shorter than MinColumns are treated as header/garbage rows
	MinColumns int `json:"minColumns"`
	// Rows whose first field starts with none of these are skipped
	HighwayPrefixes []string `json:"highwayPrefixes"`
	// Case-insensitive markers for segments under maintenance
	MaintenanceTokens []string `json:"maintenanceTokens"`

	Highway          int `json:"highway"`
	StartChainage    int `json:"startChainage"`
	EndChainage      int `json:"endChainage"`
	Length           int `json:"length"`
	StructureDetails int `json:"structureDetails"`
	RoughnessLimit   int `json:"roughnessLimit"`
	Remark           int `json:"remark"`

	Lanes []LaneColumns `json:"lanes"`

	// PrimaryLane drives the road coordinate sequence, the record status and reports
	PrimaryLane LaneCode `json:"primaryLane"`
}

// Built-in layout names
const (
	LayoutNameL2      = "nhai-l2"
	LayoutNameRoadmap = "nhai-roadmap"
)

// ErrUnknownLayout is returned by LookupLayout for unregistered names
var ErrUnknownLayout = errors.New("unknown survey layout")

// LayoutL2 is the sync dashboard's sheet: geometry quads from column 5,
// then one block of eight lane values per metric. No remark or row limit.
func LayoutL2() Layout {
	l := Layout{
		Name:              LayoutNameL2,
		Version:           2,
		MinColumns:        11,
		HighwayPrefixes:   []string{"NH"},
		MaintenanceTokens: []string{"under maintenance"},
		Highway:           0,
		StartChainage:     1,
		EndChainage:       2,
		Length:            3,
		StructureDetails:  4,
		RoughnessLimit:    NoColumn,
		Remark:            NoColumn,
		PrimaryLane:       LaneL2,
	}
	for i, code := range AllLanes() {
		l.Lanes = append(l.Lanes, LaneColumns{
			Lane:      code,
			Geometry:  5 + 4*i,
			Roughness: 39 + i,
			Rutting:   48 + i,
			Cracking:  57 + i,
			Ravelling: 66 + i,
		})
	}
	return l
}

// LayoutRoadmap is the overview map's sheet: geometry quads from column 5,
// per-row roughness limit at 33, lane roughness at 34-41 and a remark at 42.
// It carries no secondary metrics, and its R4 quad shares cells with the
// limit/roughness block (see Overlaps).
func LayoutRoadmap() Layout {
	l := Layout{
		Name:              LayoutNameRoadmap,
		Version:           1,
		MinColumns:        40,
		HighwayPrefixes:   []string{"NH"},
		MaintenanceTokens: []string{"under maintenance"},
		Highway:           0,
		StartChainage:     1,
		EndChainage:       2,
		Length:            3,
		StructureDetails:  4,
		RoughnessLimit:    33,
		Remark:            42,
		PrimaryLane:       LaneL2,
	}
	for i, code := range AllLanes() {
		l.Lanes = append(l.Lanes, LaneColumns{
			Lane:      code,
			Geometry:  5 + 4*i,
			Roughness: 34 + i,
			Rutting:   NoColumn,
			Cracking:  NoColumn,
			Ravelling: NoColumn,
		})
	}
	return l
}

// LookupLayout returns a built-in layout by name
func LookupLayout(name string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LayoutNameL2:
		return LayoutL2(), nil
	case LayoutNameRoadmap:
		return LayoutRoadmap(), nil
	}
	return Layout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
}

// LoadLayoutFile reads and validates a JSON layout
func LoadLayoutFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to read layout file: %w", err)
	}

	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("failed to parse layout file: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks the layout is usable by the parser
func (l Layout) Validate() error {
	if l.Name == "" {
		return errors.New("layout name is required")
	}
	if l.Version < 1 {
		return fmt.Errorf("layout %s: version must be >= 1", l.Name)
	}
	if l.MinColumns < 1 {
		return fmt.Errorf("layout %s: minColumns must be >= 1", l.Name)
	}
	if len(l.HighwayPrefixes) == 0 {
		return fmt.Errorf("layout %s: at least one highway prefix is required", l.Name)
	}
	if l.Highway < 0 {
		return fmt.Errorf("layout %s: highway column is required", l.Name)
	}
	if len(l.Lanes) == 0 {
		return fmt.Errorf("layout %s: no lanes defined", l.Name)
	}

	for name, col := range l.scalarColumns() {
		if col < NoColumn {
			return fmt.Errorf("layout %s: invalid %s column %d", l.Name, name, col)
		}
	}

	seen := make(map[LaneCode]bool, len(l.Lanes))
	primaryFound := false
	for _, lc := range l.Lanes {
		if lc.Lane == "" {
			return fmt.Errorf("layout %s: lane code is required", l.Name)
		}
		if seen[lc.Lane] {
			return fmt.Errorf("layout %s: duplicate lane %s", l.Name, lc.Lane)
		}
		seen[lc.Lane] = true
		if lc.Lane == l.PrimaryLane {
			primaryFound = true
		}
		for _, col := range []int{lc.Geometry, lc.Roughness, lc.Rutting, lc.Cracking, lc.Ravelling} {
			if col < NoColumn {
				return fmt.Errorf("layout %s: invalid column %d for lane %s", l.Name, col, lc.Lane)
			}
		}
	}
	if !primaryFound {
		return fmt.Errorf("layout %s: primary lane %q is not defined", l.Name, l.PrimaryLane)
	}

	return nil
}

// Overlaps lists cells claimed by more than one field, sorted by column
func (l Layout) Overlaps() []string {
	owners := make(map[int][]string)
	claim := func(col int, field string) {
		if col >= 0 {
			owners[col] = append(owners[col], field)
		}
	}

	for name, col := range l.scalarColumns() {
		claim(col, name)
	}
	for _, lc := range l.Lanes {
		if lc.Geometry >= 0 {
			for k := 0; k < 4; k++ {
				claim(lc.Geometry+k, fmt.Sprintf("%s.geometry[%d]", lc.Lane, k))
			}
		}
		claim(lc.Roughness, string(lc.Lane)+".roughness")
		claim(lc.Rutting, string(lc.Lane)+".rutting")
		claim(lc.Cracking, string(lc.Lane)+".cracking")
		claim(lc.Ravelling, string(lc.Lane)+".ravelling")
	}

	cols := make([]int, 0, len(owners))
	for col, fields := range owners {
		if len(fields) > 1 {
			cols = append(cols, col)
		}
	}
	sort.Ints(cols)

	var out []string
	for _, col := range cols {
		fields := owners[col]
		sort.Strings(fields)
		out = append(out, fmt.Sprintf("column %d: %s", col, strings.Join(fields, ", ")))
	}
	return out
}

func (l Layout) scalarColumns() map[string]int {
	return map[string]int{
		"highway":          l.Highway,
		"startChainage":    l.StartChainage,
		"endChainage":      l.EndChainage,
		"length":           l.Length,
		"structureDetails": l.StructureDetails,
		"roughnessLimit":   l.RoughnessLimit,
		"remark":           l.Remark,
	}
}
