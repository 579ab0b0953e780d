package httpclient

import "errors"

// ErrInvalidProxyAddress is returned when the proxy address is not in
// "host:port" format with a port between 1 and 65535.
var ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
