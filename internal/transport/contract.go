// Package transport defines the narrow contract a concrete wire adapter
// must satisfy to be owned by a passthrough context: a session-identified,
// bidirectional message channel with callback-based delivery instead of a
// blocking read loop, so the passthrough can own both the downstream and
// upstream side uniformly.
package transport

import (
	"context"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
)

// MessageHandler is invoked once per inbound message on a transport.
type MessageHandler func(ctx context.Context, msg envelope.RawMessage)

// ErrorHandler is invoked when a transport encounters a non-fatal read or
// write error.
type ErrorHandler func(err error)

// CloseHandler is invoked exactly once when a transport's connection ends,
// whether by local Close, remote disconnect, or unrecoverable error.
type CloseHandler func(reason error)

// Contract is the interface a passthrough.Context uses to drive one side
// (downstream-facing or upstream-facing) of the proxy. Implementations are
// expected to be safe for concurrent Send calls but need not be safe for
// concurrent Start/Close calls.
type Contract interface {
	// SessionID identifies this transport's connection for correlation and
	// logging. It is stable for the lifetime of the transport.
	SessionID() string

	// Start begins reading from the underlying connection, delivering
	// messages to the handler registered via SetOnMessage. It returns once
	// the transport is ready to send/receive, not when the connection ends.
	Start(ctx context.Context) error

	// Send writes one message to the underlying connection.
	Send(ctx context.Context, msg envelope.RawMessage) error

	// Close ends the connection. It is safe to call more than once; only
	// the first call has effect. Close triggers the registered
	// CloseHandler, if any, with a nil reason.
	Close() error

	// SetOnMessage registers the callback invoked for each inbound
	// message. Must be called before Start.
	SetOnMessage(MessageHandler)

	// SetOnError registers the callback invoked for non-fatal errors.
	SetOnError(ErrorHandler)

	// SetOnClose registers the callback invoked exactly once when the
	// connection ends.
	SetOnClose(CloseHandler)
}
