package xlseries

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/xlharvest/internal/model"
)

// Extractor reads series tables out of a spreadsheet file.
type Extractor interface {
	Extract(path string, p Params) ([]model.SeriesTable, error)
}

// CellExtractor extracts series laid out in a single block: headers in
// the row of the time header (series run down columns) or in its column
// (series run across rows).
type CellExtractor struct{}

// NewCellExtractor creates a CellExtractor.
func NewCellExtractor() *CellExtractor {
	return &CellExtractor{}
}

// cellRef is a 1-based (column, row) position.
type cellRef struct {
	col int
	row int
}

// Extract opens path and returns one table with every series described
// by p.
func (e *CellExtractor) Extract(path string, p Params) ([]model.SeriesTable, error) {
	freq, err := singleFrequency(p.Frequency)
	if err != nil {
		return nil, err
	}
	if len(p.TimeHeaderCoord) != 1 {
		return nil, fmt.Errorf("%w: %d time headers", ErrUnsupportedLayout, len(p.TimeHeaderCoord))
	}
	timeHeader, err := parseCell(p.TimeHeaderCoord[0])
	if err != nil {
		return nil, err
	}

	headers := make([]cellRef, 0, len(p.HeadersCoord))
	for _, spec := range p.HeadersCoord {
		cells, err := expandRange(spec)
		if err != nil {
			return nil, err
		}
		headers = append(headers, cells...)
	}

	labels, err := contextLabels(p.Context)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheet, err := selectSheet(f, p.WorksheetName)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s!%s: %w", path, sheet, err)
	}
	g := grid(rows)

	var byColumn bool
	switch {
	case allMatch(headers, func(c cellRef) bool { return c.row == timeHeader.row }):
		byColumn = true
	case allMatch(headers, func(c cellRef) bool { return c.col == timeHeader.col }):
		byColumn = false
	default:
		return nil, fmt.Errorf("%w: headers must share the row or column of %s", ErrUnsupportedLayout, p.TimeHeaderCoord[0])
	}

	table := model.SeriesTable{
		Frequency:    freq,
		Columns:      make([]string, 0, len(headers)),
		Observations: make([]model.Observation, 0),
	}

	for _, h := range headers {
		name := seriesName(g, h, labels)
		table.Columns = append(table.Columns, name)

		limit := g.rows()
		if !byColumn {
			limit = g.cols()
		}
		for i := p.DataStarts; i <= limit; i++ {
			dateCell, valueCell := cellRef{timeHeader.col, i}, cellRef{h.col, i}
			if !byColumn {
				dateCell, valueCell = cellRef{i, timeHeader.row}, cellRef{i, h.row}
			}

			date, ok := parseDate(g.at(dateCell), freq)
			if !ok {
				continue
			}
			value, ok := parseValue(g.at(valueCell))
			if !ok {
				continue
			}
			table.Observations = append(table.Observations, model.Observation{
				Name:  name,
				Date:  NormalizeDate(date, freq),
				Value: value,
			})
		}
	}

	return []model.SeriesTable{table}, nil
}

func singleFrequency(codes []string) (string, error) {
	if len(codes) != 1 {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFrequency, codes)
	}
	code := strings.ToUpper(strings.TrimSpace(codes[0]))
	switch code {
	case FreqYearly, FreqQuarterly, FreqMonthly, FreqDaily:
		return code, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, codes[0])
	}
}

func selectSheet(f *excelize.File, name string) (string, error) {
	if name == "" {
		return f.GetSheetName(f.GetActiveSheetIndex()), nil
	}
	if !slices.Contains(f.GetSheetList(), name) {
		return "", fmt.Errorf("%w: %q", ErrWorksheetNotFound, name)
	}
	return name, nil
}

// parseCell parses a reference such as "B4" or "$B$4".
func parseCell(ref string) (cellRef, error) {
	col, row, err := excelize.CellNameToCoordinates(strings.ReplaceAll(strings.TrimSpace(ref), "$", ""))
	if err != nil {
		return cellRef{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, ref)
	}
	return cellRef{col: col, row: row}, nil
}

// expandRange expands "A1-C1" or "B2-B5" into its cells. A single
// reference expands to itself. Ranges must lie in one row or one column.
func expandRange(spec string) ([]cellRef, error) {
	from, to, isRange := strings.Cut(spec, "-")
	start, err := parseCell(from)
	if err != nil {
		return nil, err
	}
	if !isRange {
		return []cellRef{start}, nil
	}
	end, err := parseCell(to)
	if err != nil {
		return nil, err
	}

	cells := make([]cellRef, 0)
	switch {
	case start.row == end.row:
		for c := min(start.col, end.col); c <= max(start.col, end.col); c++ {
			cells = append(cells, cellRef{col: c, row: start.row})
		}
	case start.col == end.col:
		for r := min(start.row, end.row); r <= max(start.row, end.row); r++ {
			cells = append(cells, cellRef{col: start.col, row: r})
		}
	default:
		return nil, fmt.Errorf("%w: range %q spans rows and columns", ErrInvalidCoordinate, spec)
	}
	return cells, nil
}

// contextLabels maps each covered header cell to its labels, sorted.
func contextLabels(context map[string][]string) (map[cellRef][]string, error) {
	labels := make(map[cellRef][]string)
	for label, ranges := range context {
		for _, spec := range ranges {
			cells, err := expandRange(spec)
			if err != nil {
				return nil, fmt.Errorf("context %q: %w", label, err)
			}
			for _, c := range cells {
				if !slices.Contains(labels[c], label) {
					labels[c] = append(labels[c], label)
				}
			}
		}
	}
	for c := range labels {
		slices.Sort(labels[c])
	}
	return labels, nil
}

func seriesName(g grid, h cellRef, labels map[cellRef][]string) string {
	name := strings.TrimSpace(g.at(h))
	if name == "" {
		ref, _ := excelize.CoordinatesToCellName(h.col, h.row) //nolint:errcheck // h came from a parsed reference
		name = ref
	}
	if l, ok := labels[h]; ok {
		return strings.Join(l, " - ") + " - " + name
	}
	return name
}

func allMatch(cells []cellRef, pred func(cellRef) bool) bool {
	for _, c := range cells {
		if !pred(c) {
			return false
		}
	}
	return len(cells) > 0
}

// grid is a worksheet as returned by GetRows, indexed 1-based.
type grid [][]string

func (g grid) at(c cellRef) string {
	if c.row < 1 || c.row > len(g) {
		return ""
	}
	row := g[c.row-1]
	if c.col < 1 || c.col > len(row) {
		return ""
	}
	return row[c.col-1]
}

func (g grid) rows() int { return len(g) }

func (g grid) cols() int {
	n := 0
	for _, row := range g {
		n = max(n, len(row))
	}
	return n
}

func parseValue(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"2006-01",
	"01/2006",
	"1/2006",
	"Jan 2006",
	"January 2006",
}

// parseDate reads a time index cell: an Excel date serial, a four digit
// year for yearly series, a quarter such as "2020Q1" or "Q1 2020", or
// one of dateLayouts.
func parseDate(raw, freq string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if freq == FreqYearly && v == math.Trunc(v) && v >= 1000 && v <= 9999 {
			return time.Date(int(v), time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
		t, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	if t, ok := parseQuarter(raw); ok {
		return t, true
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseQuarter parses "2020Q1", "2020-Q1", "2020 Q1" and "Q1 2020".
func parseQuarter(raw string) (time.Time, bool) {
	s := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(raw))
	var year, quarter string
	switch {
	case len(s) == 6 && s[4] == 'Q':
		year, quarter = s[:4], s[5:]
	case len(s) == 6 && s[0] == 'Q':
		year, quarter = s[2:], s[1:2]
	default:
		return time.Time{}, false
	}

	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	q, err := strconv.Atoi(quarter)
	if err != nil || q < 1 || q > 4 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true
}
