package transport

import "errors"

// Sentinel errors shared by transport.Contract implementations.
var (
	// ErrClosed is returned by Send when the transport has already closed.
	ErrClosed = errors.New("transport: connection closed")

	// ErrNotStarted is returned by Send when called before Start.
	ErrNotStarted = errors.New("transport: not started")
)
