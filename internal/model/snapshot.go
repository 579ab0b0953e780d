package model

import "time"

// SnapshotVersion is the schema version written by this release.
const SnapshotVersion = 1

// Snapshot is the single-document on-disk form of a CrawlState.
// Keeping the three collections in one file avoids reloading a state
// whose parts were saved at different times.
type Snapshot struct {
	// Version is the schema version. Readers reject unknown versions.
	Version int `json:"version"`

	// Name identifies the crawled source (e.g. "indec").
	Name string `json:"name"`

	// Seed is the URL the crawl started from, if known.
	Seed string `json:"seed,omitempty"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	Targets []LinkRecord `json:"targets"`
	Visited []string     `json:"visited"`
	ToVisit []string     `json:"to_visit"`
}

// NewSnapshot captures the collections of state.
func NewSnapshot(name, seed string, state *CrawlState) *Snapshot {
	return &Snapshot{
		Version: SnapshotVersion,
		Name:    name,
		Seed:    seed,
		SavedAt: time.Now().UTC(),
		Targets: state.Targets(),
		Visited: state.Visited(),
		ToVisit: state.ToVisit(),
	}
}

// State rebuilds a CrawlState from the snapshot.
func (s *Snapshot) State() *CrawlState {
	return RestoreCrawlState(s.Visited, s.ToVisit, s.Targets)
}
