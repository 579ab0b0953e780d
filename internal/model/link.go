package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LinkRecord is an anchor discovered on a scraped page: its visible text
// and the absolute URL its href resolved to.
//
// The JSON form is a two element array ["description", "url"] so files
// written by earlier crawls can still be loaded.
type LinkRecord struct {
	// Description is the anchor's visible text, untrimmed.
	Description string

	// URL is the absolute URL of the link.
	URL string
}

// NewLinkRecord creates a LinkRecord.
func NewLinkRecord(description, url string) LinkRecord {
	return LinkRecord{Description: description, URL: url}
}

// Filename returns the final "/"-separated segment of the URL with
// surrounding whitespace removed. This is the name used on disk and in
// exported spreadsheets.
func (l LinkRecord) Filename() string {
	return FilenameFromURL(l.URL)
}

// FilenameFromURL returns the final "/"-separated segment of rawURL.
func FilenameFromURL(rawURL string) string {
	idx := strings.LastIndex(rawURL, "/")
	return strings.TrimSpace(rawURL[idx+1:])
}

// MarshalJSON encodes the record as ["description", "url"].
func (l LinkRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Description, l.URL})
}

// UnmarshalJSON decodes a ["description", "url"] pair.
func (l *LinkRecord) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("link record must be a [description, url] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("link record must have 2 elements, got %d", len(pair))
	}
	l.Description = pair[0]
	l.URL = pair[1]
	return nil
}

// String returns a human-readable form of the record.
func (l LinkRecord) String() string {
	return fmt.Sprintf("%s (%s)", strings.TrimSpace(l.Description), l.URL)
}
