// Package fetcher streams remote files to local disk.
//
// A download is written to "<filename>.part" and renamed into place only
// after the whole body arrived with a 2xx status, so an existing
// destination file is always complete. A non-2xx response is reported,
// not returned as an error, and leaves a "<filename>.failed" sentinel
// holding the status and URL. A later successful download removes the
// sentinel.
package fetcher
