package survey

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result is the outcome of parsing one survey sheet
type Result struct {
	Records []Record
	Rows    int // rows read, including skipped ones
	Skipped int // header, garbage and malformed rows
}

// ParseReader reads the whole input before parsing so that an I/O failure
// never leaves a partial record sequence behind.
func ParseReader(r io.Reader, layout Layout) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read survey data: %w", err)
	}
	return Parse(data, layout), nil
}

// Parse turns raw comma-delimited survey text into records in row order.
// It never fails on row content: bad rows are skipped, unusable lane
// geometry is dropped per lane, and unparsable numbers become 0.
// Each physical line is one row, so a malformed cell can only cost its
// own row. The same input always yields the same output.
func Parse(data []byte, layout Layout) Result {
	data = bytes.TrimPrefix(data, utf8BOM)

	var result Result
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			continue
		}
		result.Rows++

		row, err := splitRow(line)
		if err != nil {
			result.Skipped++
			continue
		}

		record, ok := parseRow(row, i+1, layout)
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result
}

// splitRow reads one line as CSV. Bare quotes inside unquoted cells (inch
// marks in structure notes) are kept literally; an unterminated quoted
// cell rejects the row.
func splitRow(line []byte) ([]string, error) {
	row, err := readRow(line, false)
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrBareQuote) {
		return readRow(line, true)
	}
	return row, err
}

func readRow(line []byte, lazyQuotes bool) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = lazyQuotes

	return reader.Read()
}

func parseRow(row []string, line int, layout Layout) (Record, bool) {
	if len(row) < layout.MinColumns || isBlank(row) {
		return Record{}, false
	}

	highway := getField(row, layout.Highway)
	if !hasHighwayPrefix(highway, layout.HighwayPrefixes) {
		return Record{}, false
	}

	remark := getField(row, layout.Remark)
	record := Record{
		Row:              line,
		Highway:          highway,
		StartChainage:    getField(row, layout.StartChainage),
		EndChainage:      getField(row, layout.EndChainage),
		Length:           parseMeasurement(getField(row, layout.Length)),
		StructureDetails: getField(row, layout.StructureDetails),
		Remark:           remark,
		RoughnessLimit:   parseMeasurement(getField(row, layout.RoughnessLimit)),
		Maintenance:      containsToken(remark, layout.MaintenanceTokens),
		Lanes:            make([]Lane, 0, len(layout.Lanes)),
	}

	for _, lc := range layout.Lanes {
		record.Lanes = append(record.Lanes, parseLane(row, lc, layout.MaintenanceTokens))
	}

	return record, true
}

func parseLane(row []string, lc LaneColumns, tokens []string) Lane {
	lane := Lane{
		Code:   lc.Lane,
		Status: StatusUnclassified,
	}

	if lc.Geometry != NoColumn {
		lane.Geometry = parseGeometry(row, lc.Geometry)
		lane.MaintenanceFlag = containsToken(getField(row, lc.Geometry), tokens)
	}

	var measured bool
	lane.Roughness, measured = parseLaneValue(row, lc.Roughness, measured)
	lane.Rutting, measured = parseLaneValue(row, lc.Rutting, measured)
	lane.Cracking, measured = parseLaneValue(row, lc.Cracking, measured)
	lane.Ravelling, measured = parseLaneValue(row, lc.Ravelling, measured)
	lane.Measured = measured

	return lane
}

func parseLaneValue(row []string, col int, measured bool) (float64, bool) {
	raw := getField(row, col)
	if v, ok := parseFinite(raw); ok && v >= 0 {
		measured = true
	}
	return parseMeasurement(raw), measured
}

// parseGeometry reads a lat,lng,lat,lng quad starting at col.
// Both endpoints must be finite and in range, otherwise the lane has no geometry.
func parseGeometry(row []string, col int) *Geometry {
	startLat, ok1 := parseFinite(getField(row, col))
	startLng, ok2 := parseFinite(getField(row, col+1))
	endLat, ok3 := parseFinite(getField(row, col+2))
	endLng, ok4 := parseFinite(getField(row, col+3))
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}
	if !validCoordinate(startLat, startLng) || !validCoordinate(endLat, endLng) {
		return nil
	}

	return &Geometry{
		Start: orb.Point{startLng, startLat},
		End:   orb.Point{endLng, endLat},
	}
}

// parseMeasurement parses a condition value, falling back to 0 for
// empty, unparsable, non-finite or negative cells
func parseMeasurement(s string) float64 {
	v, ok := parseFinite(s)
	if !ok || v < 0 {
		return 0
	}
	return v
}

func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func hasHighwayPrefix(highway string, prefixes []string) bool {
	if highway == "" {
		return false
	}
	upper := strings.ToUpper(highway)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(upper, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

func containsToken(cell string, tokens []string) bool {
	if cell == "" {
		return false
	}
	lower := strings.ToLower(cell)
	for _, t := range tokens {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func getField(row []string, col int) string {
	if col >= 0 && col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}
