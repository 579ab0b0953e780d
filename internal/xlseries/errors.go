package xlseries

import "errors"

var (
	// ErrUnsupportedFrequency is returned for frequency codes other than a
	// single Y, Q, M or D.
	ErrUnsupportedFrequency = errors.New("unsupported frequency")

	// ErrUnsupportedLayout is returned when headers are neither in the
	// row nor in the column of the time header, or when more than one
	// time header is given.
	ErrUnsupportedLayout = errors.New("unsupported spreadsheet layout")

	// ErrInvalidCoordinate is returned for malformed cell references or
	// ranges.
	ErrInvalidCoordinate = errors.New("invalid cell coordinate")

	// ErrInvalidContext is returned for a context item without a label.
	ErrInvalidContext = errors.New("invalid context")

	// ErrMissingParameter is returned when a required layout parameter is
	// empty.
	ErrMissingParameter = errors.New("missing extraction parameter")

	// ErrWorksheetNotFound is returned when the named worksheet does not
	// exist.
	ErrWorksheetNotFound = errors.New("worksheet not found")
)
