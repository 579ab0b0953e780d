package state

import "errors"

var (
	// ErrUnsupportedVersion is returned when a snapshot was written by a
	// newer or unknown schema version.
	ErrUnsupportedVersion = errors.New("unsupported crawl state version")

	// ErrUnknownFormat is returned for a state format other than
	// FormatSnapshot or FormatLegacy.
	ErrUnknownFormat = errors.New("unknown crawl state format")

	// ErrEmptyName is returned when no source name is given.
	ErrEmptyName = errors.New("crawl state name is empty")
)
