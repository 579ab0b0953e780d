package crawler

import "errors"

var (
	// ErrInvalidSeedURL is returned when the seed is not an absolute
	// http or https URL.
	ErrInvalidSeedURL = errors.New("seed must be an absolute http or https URL")

	// ErrFetchPage is returned when a page cannot be fetched. The URL is
	// left on the to-visit stack.
	ErrFetchPage = errors.New("failed to fetch page")
)
