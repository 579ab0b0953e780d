// Package xlseries extracts time series from spreadsheets whose layout is
// described by cell coordinates.
//
// A layout names the header cells of the series ("B1-D1,F1"), the cell
// holding the header of the time index ("A1"), the row or column where
// data starts, a frequency code and optional context labels that group
// headers ("Total:B1-C1"). CellExtractor handles single-frequency layouts
// with one time index; other layouts are reported with
// ErrUnsupportedFrequency or ErrUnsupportedLayout so a richer Extractor
// can be used instead.
package xlseries
