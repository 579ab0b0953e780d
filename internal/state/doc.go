// Package state saves and loads crawl state.
//
// Two layouts are supported. The snapshot layout stores every collection
// in one versioned document, crawl_state_<name>.json. The legacy layout
// stores three JSON arrays: target_links_<name>.json, visited_links_<name>.json
// and links_to_visit_<name>.json. Load prefers a snapshot and falls back to
// the legacy files, any of which may be missing.
package state
