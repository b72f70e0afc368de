// Package hookchain implements the doubly-linked hook chain and the
// per-method hook capability contract (spec.md §3 "Hook", §4.1 "HookChain").
package hookchain

import (
	"context"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
)

// Direction identifies which side of the passthrough a message is crossing
// in. Downstream messages originate at the host and flow toward the
// target; Upstream messages originate at the target and flow toward the
// host (spec.md §4.5, "Downstream → Upstream" / "Upstream → Downstream").
type Direction int

const (
	// Downstream is host -> target traffic (dispatches the "process*"
	// handler family, forward chain traversal for requests).
	Downstream Direction = iota

	// Upstream is target -> host traffic (dispatches the "processTarget*"
	// handler family, reverse chain traversal for requests).
	Upstream
)

// String implements fmt.Stringer for log-friendly direction names.
func (d Direction) String() string {
	if d == Upstream {
		return "upstream"
	}
	return "downstream"
}

// RequestHandler observes or mutates a request as it crosses one hook.
type RequestHandler func(ctx context.Context, req *envelope.Request, extra *envelope.RequestExtra) (RequestResult, error)

// ResponseHandler observes or mutates a successful response as it crosses
// one hook on the reverse (success-path) traversal.
type ResponseHandler func(ctx context.Context, resp *envelope.Response, req *envelope.Request, extra *envelope.RequestExtra) (ResponseResult, error)

// ErrorHandler observes, transforms, or recovers an error as it crosses one
// hook on the reverse (failure-path) traversal.
type ErrorHandler func(ctx context.Context, chainErr *envelope.HookChainError, req *envelope.Request, extra *envelope.RequestExtra) (ResponseResult, error)

// NotificationHandler observes or mutates a notification as it crosses one
// hook during one-way traversal.
type NotificationHandler func(ctx context.Context, note *envelope.Notification, extra *envelope.RequestExtra) (NotificationResult, error)

// MethodHandlers groups the up-to-three handlers a hook may implement for a
// single MCP method family in a single direction. A nil field means
// "transparent for this method" (spec.md §3).
type MethodHandlers struct {
	Request  RequestHandler
	Response ResponseHandler
	Error    ErrorHandler
}

// IsZero reports whether none of the three handlers are set.
func (m MethodHandlers) IsZero() bool {
	return m.Request == nil && m.Response == nil && m.Error == nil
}

// HookHandlers is the capability record a Hook declares: per method family,
// per direction, up to three optional handlers, plus the two notification
// handlers. This is the "explicit capability set" called for by spec.md §9
// in place of runtime method probing — the pipeline consults this record
// instead of reflecting on the hook at call time.
type HookHandlers struct {
	Downstream map[envelope.Method]MethodHandlers
	Upstream   map[envelope.Method]MethodHandlers

	// DownstreamNotification handles host -> target notifications.
	DownstreamNotification NotificationHandler

	// UpstreamNotification handles target -> host notifications.
	UpstreamNotification NotificationHandler
}

// For returns the MethodHandlers for the given direction and method family,
// or the zero value if the hook declares nothing for it. Pipelines consult
// this record instead of probing the hook at call time (spec.md §9).
func (h HookHandlers) For(dir Direction, method envelope.Method) MethodHandlers {
	table := h.Downstream
	if dir == Upstream {
		table = h.Upstream
	}
	if table == nil {
		return MethodHandlers{}
	}
	return table[method]
}

// NotificationHandlerFor returns the notification handler for dir, or nil.
func (h HookHandlers) NotificationHandlerFor(dir Direction) NotificationHandler {
	if dir == Upstream {
		return h.UpstreamNotification
	}
	return h.DownstreamNotification
}

// Hook is an addressable participant in the chain (spec.md §3 "Hook").
type Hook interface {
	// Name is the hook's stable identifier, used by Chain.FindByName and in
	// diagnostics/logging.
	Name() string

	// Handlers returns the hook's capability record. Implementations are
	// expected to return the same value (or an equivalent one) on every
	// call; the chain does not cache it across invocations, so a hook may
	// legitimately return different handlers over its lifetime (e.g. to
	// support hot-reload of a config-driven hook) as long as doing so does
	// not break invariant I3 (a forward skip must remain a reverse skip for
	// that same message).
	Handlers() HookHandlers
}
