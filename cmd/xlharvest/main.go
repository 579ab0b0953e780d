// Package main provides the entry point for the xlharvest CLI.
//
// xlharvest crawls statistics websites for spreadsheet download links,
// downloads the files and builds a SQLite database of the time series
// they contain.
//
// Usage:
//
//	xlharvest crawl --name indec https://www.indec.gob.ar/ -t .xls
//	xlharvest download --name indec
//	xlharvest build indec
//
// See --help for all available options.
package main

func main() {
	Execute()
}
