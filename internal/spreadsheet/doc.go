// Package spreadsheet reads and writes the xlsx files exchanged with
// users: the download_links export of crawl targets and the metadata
// sheets that drive the ETL build.
package spreadsheet
