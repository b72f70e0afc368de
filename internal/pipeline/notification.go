package pipeline

import (
	"context"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	"github.com/jamesprial/mcp-passthrough/internal/hookchain"
	"github.com/jamesprial/mcp-passthrough/internal/tracing"
)

// NotificationOutcomeKind tags the terminal state of a notification run.
type NotificationOutcomeKind int

const (
	// NotificationDelivered means the notification reached the end of the
	// chain (possibly mutated) and should be delivered.
	NotificationDelivered NotificationOutcomeKind = iota

	// NotificationDropped means a hook aborted; the notification is
	// discarded silently (spec.md §3 invariant I4).
	NotificationDropped
)

// NotificationRun is the outcome of one RunNotification call.
type NotificationRun struct {
	Kind         NotificationOutcomeKind
	Notification *envelope.Notification
}

// RunNotification traverses chain one-way starting at start in dir's
// traversal order, invoking each hook's direction-scoped notification
// handler (spec.md §4.4). There is no response channel: a handler either
// continues (optionally mutating the notification) or aborts, dropping it.
func RunNotification(
	ctx context.Context,
	chain *hookchain.Chain,
	start *hookchain.Node,
	dir hookchain.Direction,
	note *envelope.Notification,
	extra *envelope.RequestExtra,
	tracer *tracing.Tracer,
) NotificationRun {
	current := start
	payload := note

	for current != nil {
		handler := current.Hook().Handlers().NotificationHandlerFor(dir)
		if handler == nil {
			current = advance(chain, current, dir)
			continue
		}

		hookCtx, span := tracer.StartHook(ctx, current.Hook().Name())
		result, err := handler(hookCtx, payload, extra)
		span.End()
		if err != nil || result.Outcome == hookchain.NotificationAbort {
			return NotificationRun{Kind: NotificationDropped}
		}

		payload = result.Notification
		current = advance(chain, current, dir)
	}

	return NotificationRun{Kind: NotificationDelivered, Notification: payload}
}
