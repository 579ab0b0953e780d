package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/xlharvest/internal/model"
)

// FileName is the database file created in the data directory.
const FileName = "xlharvest.db"

// dateLayout is how observation dates are stored.
const dateLayout = "2006-01-02"

// Store provides SQLite-backed storage for series, downloads and crawl runs.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when
	// missing. When false, opening a missing database fails.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a new file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		categories TEXT,
		description TEXT,
		name TEXT NOT NULL,
		date TEXT NOT NULL,
		value REAL NOT NULL,
		frequency TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source, name, date, frequency)
	);

	CREATE INDEX IF NOT EXISTS idx_series_source ON series(source);
	CREATE INDEX IF NOT EXISTS idx_series_name ON series(name);

	CREATE TABLE IF NOT EXISTS downloads (
		path TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		status_code INTEGER,
		bytes INTEGER,
		digest TEXT,
		attempted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		seed TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		targets INTEGER NOT NULL,
		to_visit INTEGER NOT NULL,
		visited INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_runs_name ON crawl_runs(name);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// UpsertSeries inserts entries, replacing the value of existing
// (source, name, date, frequency) rows. It runs in one transaction and
// returns the number of entries written.
func (s *Store) UpsertSeries(ctx context.Context, entries []model.SeriesEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO series (source, categories, description, name, date, value, frequency)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(source, name, date, frequency) DO UPDATE SET
		categories = excluded.categories,
		description = excluded.description,
		value = excluded.value,
		updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.Source,
			e.Categories,
			e.Description,
			e.Name,
			e.Date.Format(dateLayout),
			e.Value,
			e.Frequency,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert %s %s: %w", e.Name, e.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit series: %w", err)
	}
	return len(entries), nil
}

// SeriesFilter selects series rows. Empty fields match everything.
type SeriesFilter struct {
	Source    string
	Name      string
	Frequency string
}

// QuerySeries returns matching rows ordered by source, name and date.
func (s *Store) QuerySeries(ctx context.Context, filter SeriesFilter) ([]model.SeriesEntry, error) {
	query := `
	SELECT source, categories, description, name, date, value, frequency
	FROM series
	WHERE 1=1
	`
	args := make([]any, 0)

	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.Name != "" {
		query += " AND name = ?"
		args = append(args, filter.Name)
	}
	if filter.Frequency != "" {
		query += " AND frequency = ?"
		args = append(args, filter.Frequency)
	}
	query += " ORDER BY source, name, date"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	results := make([]model.SeriesEntry, 0)
	for rows.Next() {
		var (
			e           model.SeriesEntry
			date        string
			categories  sql.NullString
			description sql.NullString
		)
		if err := rows.Scan(&e.Source, &categories, &description, &e.Name, &date, &e.Value, &e.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		e.Categories = categories.String
		e.Description = description.String
		if e.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid date %q in series %s: %w", date, e.Name, err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// SourceSummary counts stored observations of a source.
type SourceSummary struct {
	Source       string
	Series       int
	Observations int
}

// SummarizeSources returns per-source counts ordered by source.
func (s *Store) SummarizeSources(ctx context.Context) ([]SourceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT source, COUNT(DISTINCT name || '|' || frequency), COUNT(*)
	FROM series
	GROUP BY source
	ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize series: %w", err)
	}
	defer rows.Close()

	results := make([]SourceSummary, 0)
	for rows.Next() {
		var sum SourceSummary
		if err := rows.Scan(&sum.Source, &sum.Series, &sum.Observations); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		results = append(results, sum)
	}
	return results, rows.Err()
}

// DownloadRecord is the last download attempt of a cached file.
type DownloadRecord struct {
	Path        string
	URL         string
	Status      string
	StatusCode  int
	Bytes       int64
	Digest      string
	AttemptedAt time.Time
}

// RecordDownload inserts or replaces the record for rec.Path.
func (s *Store) RecordDownload(ctx context.Context, rec *DownloadRecord) error {
	attempted := rec.AttemptedAt
	if attempted.IsZero() {
		attempted = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO downloads (path, url, status, status_code, bytes, digest, attempted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		url = excluded.url,
		status = excluded.status,
		status_code = excluded.status_code,
		bytes = excluded.bytes,
		digest = excluded.digest,
		attempted_at = excluded.attempted_at
	`,
		rec.Path,
		rec.URL,
		rec.Status,
		rec.StatusCode,
		rec.Bytes,
		rec.Digest,
		attempted.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// GetDownload returns the record for path, or nil if none exists.
func (s *Store) GetDownload(ctx context.Context, path string) (*DownloadRecord, error) {
	var (
		rec       DownloadRecord
		code      sql.NullInt64
		size      sql.NullInt64
		digest    sql.NullString
		timestamp string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT path, url, status, status_code, bytes, digest, attempted_at
	FROM downloads
	WHERE path = ?
	`, path).Scan(&rec.Path, &rec.URL, &rec.Status, &code, &size, &digest, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download: %w", err)
	}

	rec.StatusCode = int(code.Int64)
	rec.Bytes = size.Int64
	rec.Digest = digest.String
	rec.AttemptedAt = parseTimestamp(timestamp)
	return &rec, nil
}

// CrawlRun summarises one crawl.
type CrawlRun struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Seed       string           `json:"seed"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Stats      model.CrawlStats `json:"stats"`

	// Error is the error that stopped the crawl, empty when it completed.
	Error string `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r CrawlRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordCrawlRun stores run and returns its ID.
func (s *Store) RecordCrawlRun(ctx context.Context, run *CrawlRun) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
	INSERT INTO crawl_runs (name, seed, started_at, finished_at, targets, to_visit, visited, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Name,
		run.Seed,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Stats.Targets,
		run.Stats.ToVisit,
		run.Stats.Visited,
		run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record crawl run: %w", err)
	}
	return result.LastInsertId()
}

// ListCrawlRuns returns runs, most recent first. An empty name lists runs
// of every source; limit <= 0 means no limit.
func (s *Store) ListCrawlRuns(ctx context.Context, name string, limit int) ([]CrawlRun, error) {
	query := `
	SELECT id, name, seed, started_at, finished_at, targets, to_visit, visited, error
	FROM crawl_runs
	WHERE 1=1
	`
	args := make([]any, 0)
	if name != "" {
		query += " AND name = ?"
		args = append(args, name)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	runs := make([]CrawlRun, 0)
	for rows.Next() {
		var (
			run               CrawlRun
			started, finished string
			runErr            sql.NullString
		)
		if err := rows.Scan(
			&run.ID,
			&run.Name,
			&run.Seed,
			&started,
			&finished,
			&run.Stats.Targets,
			&run.Stats.ToVisit,
			&run.Stats.Visited,
			&runErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		run.Error = runErr.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with each of timestampFormats and returns the
// zero time when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
