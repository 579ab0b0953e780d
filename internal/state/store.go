package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/xlharvest/internal/model"
)

// Format selects the on-disk layout.
type Format string

const (
	// FormatSnapshot writes a single versioned document.
	FormatSnapshot Format = "snapshot"

	// FormatLegacy writes three independent arrays.
	FormatLegacy Format = "legacy"
)

// SnapshotPath returns the snapshot document path for name.
func SnapshotPath(dir, name string) string {
	return filepath.Join(dir, "crawl_state_"+name+".json")
}

// LegacyPaths returns the targets, visited and to-visit document paths
// for name.
func LegacyPaths(dir, name string) (targets, visited, toVisit string) {
	return filepath.Join(dir, "target_links_"+name+".json"),
		filepath.Join(dir, "visited_links_"+name+".json"),
		filepath.Join(dir, "links_to_visit_"+name+".json")
}

// Save writes st to dir under name. dir is created when missing, and the
// documents of the other format are removed.
func Save(dir, name, seed string, st *model.CrawlState, format Format) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	targetsPath, visitedPath, toVisitPath := LegacyPaths(dir, name)
	switch format {
	case FormatSnapshot, "":
		if err := writeJSON(SnapshotPath(dir, name), model.NewSnapshot(name, seed, st)); err != nil {
			return err
		}
		return removeFiles(targetsPath, visitedPath, toVisitPath)
	case FormatLegacy:
		if err := writeJSON(targetsPath, st.Targets()); err != nil {
			return err
		}
		if err := writeJSON(visitedPath, st.Visited()); err != nil {
			return err
		}
		if err := writeJSON(toVisitPath, st.ToVisit()); err != nil {
			return err
		}
		// Load prefers the snapshot, so a stale one would shadow this save.
		return removeFiles(SnapshotPath(dir, name))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// removeFiles deletes the state documents of the layout not being written.
func removeFiles(paths ...string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale state %s: %w", p, err)
		}
	}
	return nil
}

// Loaded is the result of Load.
type Loaded struct {
	State *model.CrawlState

	// Seed is the seed URL recorded in a snapshot. Legacy files do not
	// record it.
	Seed string

	// Format is the layout the state was read from. It is empty when no
	// state existed.
	Format Format
}

// Load reads the state saved under name in dir. No saved state yields an
// empty CrawlState and a nil error.
func Load(dir, name string) (*Loaded, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	snap, err := loadSnapshot(SnapshotPath(dir, name))
	if err != nil {
		return nil, err
	}
	if snap != nil {
		return &Loaded{State: snap.State(), Seed: snap.Seed, Format: FormatSnapshot}, nil
	}

	return loadLegacy(dir, name)
}

// Exists reports whether any state was saved under name in dir.
func Exists(dir, name string) bool {
	targetsPath, visitedPath, toVisitPath := LegacyPaths(dir, name)
	for _, p := range []string{SnapshotPath(dir, name), targetsPath, visitedPath, toVisitPath} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

func loadSnapshot(path string) (*model.Snapshot, error) {
	var snap *model.Snapshot
	found, err := readJSON(path, &snap)
	if err != nil || !found || snap == nil {
		return nil, err
	}
	if snap.Version != model.SnapshotVersion {
		return nil, fmt.Errorf("%w: %d in %s", ErrUnsupportedVersion, snap.Version, path)
	}
	return snap, nil
}

func loadLegacy(dir, name string) (*Loaded, error) {
	targetsPath, visitedPath, toVisitPath := LegacyPaths(dir, name)

	var (
		targets []model.LinkRecord
		visited []string
		toVisit []string
	)
	foundTargets, err := readJSON(targetsPath, &targets)
	if err != nil {
		return nil, err
	}
	foundVisited, err := readJSON(visitedPath, &visited)
	if err != nil {
		return nil, err
	}
	foundToVisit, err := readJSON(toVisitPath, &toVisit)
	if err != nil {
		return nil, err
	}

	loaded := &Loaded{State: model.RestoreCrawlState(visited, toVisit, targets)}
	if foundTargets || foundVisited || foundToVisit {
		loaded.Format = FormatLegacy
	}
	return loaded, nil
}

// readJSON decodes path into v. A missing file is not an error and
// reports found=false.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

// writeJSON encodes v to a temporary file next to path, then renames it
// into place.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
