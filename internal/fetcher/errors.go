package fetcher

import "errors"

// ErrEmptyFilename is returned when no destination filename is given or
// none can be derived from the URL.
var ErrEmptyFilename = errors.New("destination filename is empty")
