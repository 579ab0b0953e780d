// Package model defines the core data structures used throughout xlharvest.
//
// This package contains the following main types:
//   - LinkRecord: A discovered (description, URL) pair
//   - CrawlState: The visited, to-visit and target collections of a crawl
//   - Snapshot: The versioned on-disk form of a CrawlState
//   - SourceRow: One row of a metadata spreadsheet used by the ETL build
//   - SeriesTable and Observation: Time series extracted from a spreadsheet
//   - SourceJob: The unit of work flowing through the ETL pipeline
//
// Models live in their own package so crawler, state, report and pipeline
// can share them without import cycles. Most are serializable to JSON.
package model
