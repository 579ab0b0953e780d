// Package httpclient builds the HTTP client shared by the crawler and the
// file fetcher.
//
// The client carries the request timeout, an optional SOCKS5 proxy, a
// cookie jar, and a transport that injects the User-Agent and any custom
// headers into every request.
package httpclient
