package survey

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

// l2Row builds a 75-column sheet row for the nhai-l2 layout with an L2
// quad and L2 metrics; other lanes are left empty.
func l2Row(highway, start, end string, lat, lng float64, roughness, rutting, cracking, ravelling string) string {
	cells := make([]string, 75)
	cells[0] = highway
	cells[1] = start
	cells[2] = end
	cells[3] = "0.1"
	cells[9] = strconv.FormatFloat(lat, 'f', 6, 64)
	cells[10] = strconv.FormatFloat(lng, 'f', 6, 64)
	cells[11] = strconv.FormatFloat(lat+0.001, 'f', 6, 64)
	cells[12] = strconv.FormatFloat(lng+0.001, 'f', 6, 64)
	cells[40] = roughness
	cells[49] = rutting
	cells[58] = cracking
	cells[67] = ravelling
	return strings.Join(cells, ",")
}

func sampleSheet() string {
	return strings.Join([]string{
		"NH Number,Start Chainage,End Chainage,Length,Structure",
		",,,,,Lat,Lng,Lat,Lng",
		l2Row("NH148N", "0+000", "0+100", 26.34, 76.24, "1900", "2.5", "0.4", "0.1"),
		l2Row("NH148N", "0+100", "0+200", 26.35, 76.25, "2500", "6", "1.5", "0"),
		l2Row("NH148N", "0+200", "0+300", 26.36, 76.26, "abc", "-3", "NaN", ""),
		"NH148N,short,row",
		"",
		l2Row("SH12", "0+300", "0+400", 26.37, 76.27, "1000", "1", "1", "1"),
	}, "\n")
}

func TestParseSkipsHeaderAndGarbageRows(t *testing.T) {
	result := Parse([]byte(sampleSheet()), LayoutL2())

	if len(result.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(result.Records))
	}
	if result.Skipped != 4 {
		t.Errorf("expected 4 skipped rows (2 headers, short row, SH row), got %d", result.Skipped)
	}

	wantChainages := []string{"0+000", "0+100", "0+200"}
	for i, rec := range result.Records {
		if rec.StartChainage != wantChainages[i] {
			t.Errorf("record %d: start chainage %q, want %q", i, rec.StartChainage, wantChainages[i])
		}
		if rec.Highway != "NH148N" {
			t.Errorf("record %d: highway %q, want NH148N", i, rec.Highway)
		}
	}
}

func TestParseL2Values(t *testing.T) {
	result := Parse([]byte(sampleSheet()), LayoutL2())
	rec := result.Records[1]

	got := rec.Values(LaneL2)
	want := Measurements{Roughness: 2500, Rutting: 6, Cracking: 1.5, Ravelling: 0}
	if got != want {
		t.Errorf("L2 values = %+v, want %+v", got, want)
	}

	lane, ok := rec.Lane(LaneL2)
	if !ok {
		t.Fatal("record has no L2 lane")
	}
	if lane.Geometry == nil {
		t.Fatal("expected L2 geometry")
	}
	if lane.Geometry.Start.Lon() != 76.25 || lane.Geometry.Start.Lat() != 26.35 {
		t.Errorf("start point = %v, want [76.25 26.35]", lane.Geometry.Start)
	}
	if rec.Row != 4 {
		t.Errorf("source row = %d, want 4", rec.Row)
	}
}

func TestParseNumericFallback(t *testing.T) {
	result := Parse([]byte(sampleSheet()), LayoutL2())
	rec := result.Records[2]

	got := rec.Values(LaneL2)
	if got != (Measurements{}) {
		t.Errorf("unparsable/negative values should fall back to 0, got %+v", got)
	}
	lane, _ := rec.Lane(LaneL2)
	if lane.Measured {
		t.Error("lane with no numeric measurement cell should not be marked measured")
	}
}

func TestParseDropsLaneGeometryNotRecord(t *testing.T) {
	cells := make([]string, 75)
	cells[0] = "NH148N"
	cells[1] = "1+000"
	cells[9] = "26.3"
	cells[10] = "76.2"
	cells[11] = "not-a-number"
	cells[12] = "76.3"
	cells[40] = "1200"

	result := Parse([]byte(strings.Join(cells, ",")), LayoutL2())
	if len(result.Records) != 1 {
		t.Fatalf("record must be retained when geometry is unusable, got %d records", len(result.Records))
	}

	lane, _ := result.Records[0].Lane(LaneL2)
	if lane.Geometry != nil {
		t.Error("geometry with an unparsable endpoint must be dropped")
	}
	if lane.Roughness != 1200 || !lane.Measured {
		t.Errorf("measurements must survive geometry loss, got %+v", lane)
	}
}

func TestParseOutOfRangeCoordinate(t *testing.T) {
	cells := make([]string, 75)
	cells[0] = "NH1"
	cells[9], cells[10], cells[11], cells[12] = "95", "76.2", "26.3", "76.3"

	result := Parse([]byte(strings.Join(cells, ",")), LayoutL2())
	lane, _ := result.Records[0].Lane(LaneL2)
	if lane.Geometry != nil {
		t.Error("latitude 95 should not produce geometry")
	}
}

func TestParseMaintenanceMarkers(t *testing.T) {
	cells := make([]string, 44)
	cells[0] = "NH148N"
	cells[9] = "Under Maintenance"
	cells[42] = "lane closed - UNDER MAINTENANCE"

	result := Parse([]byte(strings.Join(cells, ",")), LayoutRoadmap())
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	rec := result.Records[0]
	if !rec.Maintenance {
		t.Error("remark maintenance token not detected")
	}
	lane, _ := rec.Lane(LaneL2)
	if !lane.MaintenanceFlag {
		t.Error("geometry cell maintenance token not detected")
	}
	if lane.Geometry != nil {
		t.Error("maintenance token cell cannot produce geometry")
	}
}

func TestParseRoadmapLayout(t *testing.T) {
	cells := make([]string, 43)
	cells[0] = "NH148N"
	cells[1] = "2+000"
	cells[5], cells[6], cells[7], cells[8] = "26.1", "76.1", "26.2", "76.2"
	cells[33] = "2400"
	cells[34] = "1800"
	cells[35] = "2600"

	result := Parse([]byte(strings.Join(cells, ",")), LayoutRoadmap())
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	rec := result.Records[0]
	if rec.RoughnessLimit != 2400 {
		t.Errorf("row roughness limit = %v, want 2400", rec.RoughnessLimit)
	}
	if v := rec.Values(LaneL1).Roughness; v != 1800 {
		t.Errorf("L1 roughness = %v, want 1800", v)
	}
	if v := rec.Values(LaneL2).Roughness; v != 2600 {
		t.Errorf("L2 roughness = %v, want 2600", v)
	}
	l1, _ := rec.Lane(LaneL1)
	if l1.Geometry == nil {
		t.Error("expected L1 geometry")
	}
}

func TestParseQuotedFields(t *testing.T) {
	row := l2Row("NH148N", "\"0+000\"", "0+100", 26.34, 76.24, "1500", "1", "0", "0")
	row = strings.Replace(row, "0.1", "\"0,1\"", 1)

	result := Parse([]byte(row), LayoutL2())
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if result.Records[0].StartChainage != "0+000" {
		t.Errorf("quoted chainage = %q", result.Records[0].StartChainage)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	data := []byte(sampleSheet())
	first := Parse(data, LayoutL2())
	second := Parse(data, LayoutL2())

	if !reflect.DeepEqual(first, second) {
		t.Error("parsing the same input twice produced different results")
	}
}

func TestParseMeasurementsAreFiniteAndNonNegative(t *testing.T) {
	inputs := []string{"-1", "NaN", "+Inf", "-Inf", "1e400", "", " ", "12.5", "0", "x"}
	var rows []string
	for _, in := range inputs {
		rows = append(rows, l2Row("NH1", "c", "d", 26, 76, in, in, in, in))
	}

	result := Parse([]byte(strings.Join(rows, "\n")), LayoutL2())
	if len(result.Records) != len(inputs) {
		t.Fatalf("expected %d records, got %d", len(inputs), len(result.Records))
	}
	for _, rec := range result.Records {
		for _, lane := range rec.Lanes {
			for _, v := range []float64{lane.Roughness, lane.Rutting, lane.Cracking, lane.Ravelling} {
				if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
					t.Errorf("row %d lane %s: invalid measurement %v", rec.Row, lane.Code, v)
				}
			}
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	result := Parse(nil, LayoutL2())
	if len(result.Records) != 0 || result.Rows != 0 {
		t.Errorf("empty input should produce nothing, got %+v", result)
	}
}

func TestParseReader(t *testing.T) {
	result, err := ParseReader(strings.NewReader("\ufeff"+sampleSheet()), LayoutL2())
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	if len(result.Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(result.Records))
	}
}

func TestCoordinatesFlattenPrimaryLane(t *testing.T) {
	result := Parse([]byte(sampleSheet()), LayoutL2())
	coords := Coordinates(result.Records, LaneL2)

	if len(coords) != 6 {
		t.Fatalf("expected 6 coordinates (start+end per record), got %d", len(coords))
	}
	if coords[0].Lon() != 76.24 || coords[1].Lon() != 76.241 {
		t.Errorf("unexpected coordinate order: %v", coords[:2])
	}
	if got := Coordinates(result.Records, LaneR4); len(got) != 0 {
		t.Errorf("lane without geometry should contribute nothing, got %d", len(got))
	}
}

func withCell(row string, col int, value string) string {
	cells := strings.Split(row, ",")
	cells[col] = value
	return strings.Join(cells, ",")
}

func TestParseMalformedCellCostsOnlyItsRow(t *testing.T) {
	var rows []string
	for i := 0; i < 5; i++ {
		rows = append(rows, l2Row("NH48", strconv.Itoa(i)+"+000", strconv.Itoa(i)+"+100", 26.34, 76.24, "1500", "1", "0", "0"))
	}
	rows[1] = withCell(rows[1], 4, `"culvert 2m`)

	result := Parse([]byte(strings.Join(rows, "\n")), LayoutL2())

	if result.Rows != 5 || result.Skipped != 1 {
		t.Errorf("rows=%d skipped=%d, want 5 and 1", result.Rows, result.Skipped)
	}
	if len(result.Records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(result.Records))
	}
	wantRows := []int{1, 3, 4, 5}
	for i, rec := range result.Records {
		if rec.Row != wantRows[i] {
			t.Errorf("record %d: row %d, want %d", i, rec.Row, wantRows[i])
		}
	}
}

func TestParseKeepsBareQuotes(t *testing.T) {
	row := withCell(l2Row("NH48", "0+000", "0+100", 26.34, 76.24, "1500", "1", "0", "0"), 4, `pipe 12" dia`)

	result := Parse([]byte(row+"\r\n"), LayoutL2())
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d (skipped %d)", len(result.Records), result.Skipped)
	}
	if got := result.Records[0].StructureDetails; got != `pipe 12" dia` {
		t.Errorf("structure details = %q", got)
	}
}
