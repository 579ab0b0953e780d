package model

import "time"

// SourceRow is one row of a metadata spreadsheet. It names a spreadsheet
// to download and the parameters needed to extract its time series.
type SourceRow struct {
	// DownloadLink is where the spreadsheet is fetched from.
	DownloadLink string

	// Filename is the name of the spreadsheet in the cache directory.
	Filename string

	// HeadersCoord lists header cells, comma separated (e.g. "A1-C1,E1").
	HeadersCoord string

	// DataStarts is the row or column index where data starts.
	DataStarts int

	// Frequency is the frequency code (e.g. "M", "Q", "YQQQQ").
	Frequency string

	// TimeHeaderCoord lists time index header cells, comma separated.
	TimeHeaderCoord string

	// Context maps labels to header ranges ("Total 1:C4-F4;Total 2:D5-F5").
	Context string

	// WorksheetName selects a worksheet. Empty means the active one.
	WorksheetName string

	// Categories tags the extracted series.
	Categories string

	// Description explains what the spreadsheet contains.
	Description string
}

// Observation is a single value of a named series at a date.
type Observation struct {
	Name  string    `json:"name"`
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// SeriesTable is a rectangular set of series sharing a frequency and an
// index of dates, stored as a flat list of observations.
type SeriesTable struct {
	// Frequency is the single-letter frequency code of every series.
	Frequency string `json:"frequency"`

	// Columns lists the series names in header order.
	Columns []string `json:"columns"`

	// Observations holds every non-empty value in the table.
	Observations []Observation `json:"observations"`
}

// Len returns the number of series in the table.
func (t *SeriesTable) Len() int {
	return len(t.Columns)
}

// SeriesEntry is an observation as stored in the series table.
// It is keyed on (Source, Name, Date, Frequency).
type SeriesEntry struct {
	Source      string
	Categories  string
	Description string
	Name        string
	Date        time.Time
	Value       float64
	Frequency   string
}

// SourceJob is the unit of work of the ETL pipeline: one metadata row of
// one source, accumulating results as pipeline steps run.
type SourceJob struct {
	// Source is the name of the data source (also the table scope).
	Source string

	// Row holds the download link and extraction parameters.
	Row SourceRow

	// Path is the local path of the downloaded spreadsheet.
	Path string

	// Tables holds the series extracted from the spreadsheet.
	Tables []SeriesTable

	// Stored counts observations written to the database.
	Stored int

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string

	// Err holds the last step error, if any.
	Err error
}

// NewSourceJob creates a job for row of source.
func NewSourceJob(source string, row SourceRow) *SourceJob {
	return &SourceJob{
		Source:         source,
		Row:            row,
		PerformedSteps: make([]string, 0),
	}
}

// SeriesCount returns the number of series across all extracted tables.
func (j *SourceJob) SeriesCount() int {
	n := 0
	for i := range j.Tables {
		n += j.Tables[i].Len()
	}
	return n
}
