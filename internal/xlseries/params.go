package xlseries

import (
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/xlharvest/internal/model"
)

// Frequency codes.
const (
	FreqYearly    = "Y"
	FreqQuarterly = "Q"
	FreqMonthly   = "M"
	FreqDaily     = "D"
)

// Params describes where series live in a worksheet.
type Params struct {
	// HeadersCoord lists header cells or ranges ("A1-C1").
	HeadersCoord []string

	// DataStarts is the first data row (series in columns) or column
	// (series in rows), 1-based.
	DataStarts int

	// Frequency lists frequency codes. A single code applies to every
	// series.
	Frequency []string

	// TimeHeaderCoord lists the header cells of time indexes.
	TimeHeaderCoord []string

	// Context maps labels to the header ranges they cover.
	Context map[string][]string

	// WorksheetName selects the worksheet. Empty means the active one.
	WorksheetName string
}

// ParseParams builds Params from a metadata row. Coordinate and frequency
// lists are comma separated.
func ParseParams(row model.SourceRow) (Params, error) {
	p := Params{
		HeadersCoord:    splitList(row.HeadersCoord),
		DataStarts:      row.DataStarts,
		Frequency:       splitList(row.Frequency),
		TimeHeaderCoord: splitList(row.TimeHeaderCoord),
		WorksheetName:   strings.TrimSpace(row.WorksheetName),
	}

	switch {
	case len(p.HeadersCoord) == 0:
		return Params{}, fmt.Errorf("%w: headers_coord", ErrMissingParameter)
	case len(p.Frequency) == 0:
		return Params{}, fmt.Errorf("%w: frequency", ErrMissingParameter)
	case len(p.TimeHeaderCoord) == 0:
		return Params{}, fmt.Errorf("%w: time_header_coord", ErrMissingParameter)
	case p.DataStarts < 1:
		return Params{}, fmt.Errorf("%w: data_starts", ErrMissingParameter)
	}

	ctx, err := ParseContext(row.Context)
	if err != nil {
		return Params{}, err
	}
	p.Context = ctx
	return p, nil
}

// ParseContext parses "Total 1:C4-F4;Total 2:D5-F5,H5-J5" into
// {"Total 1": ["C4-F4"], "Total 2": ["D5-F5", "H5-J5"]}. An empty string
// yields nil.
func ParseContext(context string) (map[string][]string, error) {
	context = strings.TrimSpace(context)
	if context == "" {
		return nil, nil
	}

	parsed := make(map[string][]string)
	for _, item := range strings.Split(context, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		label, ranges, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidContext, item)
		}
		parsed[strings.TrimSpace(label)] = splitList(ranges)
	}
	return parsed, nil
}

// NormalizeDate truncates t to the start of its period: January 1 for
// yearly series, the first of the month for quarterly and monthly series,
// and the day otherwise.
func NormalizeDate(t time.Time, frequency string) time.Time {
	switch frequency {
	case FreqYearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case FreqQuarterly, FreqMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
