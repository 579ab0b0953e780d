package spreadsheet

import "errors"

var (
	// ErrMissingColumn is returned when a metadata sheet lacks a required
	// column.
	ErrMissingColumn = errors.New("required column is missing")

	// ErrInvalidValue is returned when a metadata cell cannot be parsed.
	ErrInvalidValue = errors.New("invalid cell value")

	// ErrNoSheet is returned when a workbook has no worksheet.
	ErrNoSheet = errors.New("workbook has no worksheet")
)
