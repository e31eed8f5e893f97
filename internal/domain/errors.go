package domain

import "errors"

var (
	// ErrInvalidInput is returned when a caller-supplied path does not resolve to a server-relative path
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnreachable is returned when the upstream could not be reached and no fallback produced items
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrUpstreamParse is returned when an upstream response could not be decoded.
	// Pipeline stages recover from it locally and fall through.
	ErrUpstreamParse = errors.New("upstream response could not be parsed")

	// ErrUpstreamStatus is returned when the upstream answered with a non-success status
	ErrUpstreamStatus = errors.New("upstream returned unexpected status")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// IsTransport reports whether err came from a failed round trip rather than a bad response.
func IsTransport(err error) bool {
	return errors.Is(err, ErrUpstreamUnreachable)
}
