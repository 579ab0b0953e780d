// Package database provides SQLite storage for xlharvest.
//
// The Store keeps three tables in xlharvest.db:
//   - series: extracted observations keyed on (source, name, date, frequency)
//   - downloads: the last download attempt of every cached file
//   - crawl_runs: history of crawls with their final collection sizes
//
// The driver is modernc.org/sqlite, which needs no cgo. WAL mode is
// enabled by default and the pool is limited to one connection since
// SQLite has a single writer.
package database
