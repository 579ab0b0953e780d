// Package pipeline runs the ETL build of a data source.
//
// Every row of a source's metadata sheet becomes a model.SourceJob that
// flows through a Pipeline of steps: download the spreadsheet, extract
// its series, store the observations. A failing step stops its own job
// only; the BatchProcessor keeps processing the remaining rows, with
// concurrency bounded by errgroup.
package pipeline
