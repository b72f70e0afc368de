// Package pipeline drives MCP messages through a hookchain.Chain: the
// request pipeline (forward or reverse), the response/error pipeline (the
// paired reverse/forward traversal with error-recovery), and the
// one-way notification pipeline (spec.md §4.2-§4.4).
package pipeline

import (
	"context"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	"github.com/jamesprial/mcp-passthrough/internal/hookchain"
	"github.com/jamesprial/mcp-passthrough/internal/tracing"
)

// RequestOutcomeKind tags the terminal state of a request pipeline run.
type RequestOutcomeKind int

const (
	// RequestFinished means the loop reached the end of the chain; Request
	// holds the (possibly mutated) final payload that should be forwarded
	// upstream (or returned, if this is the upstream-to-downstream leg).
	RequestFinished RequestOutcomeKind = iota

	// RequestResponded means a hook short-circuited with a synthetic
	// response; upstream must not be contacted.
	RequestResponded

	// RequestContinuedAsync means a hook replied immediately while the
	// remainder of the chain keeps running in the background.
	RequestContinuedAsync

	// RequestAborted means a hook threw (or explicitly aborted); the error
	// path of the response pipeline must run starting at LastNode.
	RequestAborted
)

// RequestRun is the outcome of one RunRequest call.
type RequestRun struct {
	Kind     RequestOutcomeKind
	Request  *envelope.Request
	Response *envelope.Response
	Callback hookchain.AsyncCompletion
	Err      *envelope.HookChainError

	// LastNode is the last node whose request handler was actually
	// invoked (nil if the chain was empty or no node had a handler for
	// this method). The paired response pipeline starts here.
	LastNode *hookchain.Node
}

// advance moves cur one step in dir's traversal direction.
func advance(chain *hookchain.Chain, cur *hookchain.Node, dir hookchain.Direction) *hookchain.Node {
	if dir == hookchain.Upstream {
		return chain.Backward(cur)
	}
	return chain.Forward(cur)
}

// RunRequest drives req through chain starting at start, in the traversal
// order dictated by dir (Downstream = forward head->tail, Upstream =
// reverse tail->head), dispatching each node's request handler for method
// (spec.md §4.2).
func RunRequest(
	ctx context.Context,
	chain *hookchain.Chain,
	start *hookchain.Node,
	dir hookchain.Direction,
	method envelope.Method,
	req *envelope.Request,
	extra *envelope.RequestExtra,
	tracer *tracing.Tracer,
) RequestRun {
	current := start
	payload := req
	var lastNode *hookchain.Node

	for current != nil {
		mh := current.Hook().Handlers().For(dir, method)
		if mh.Request == nil {
			current = advance(chain, current, dir)
			continue
		}

		lastNode = current
		hookCtx, span := tracer.StartHook(ctx, current.Hook().Name())
		result, err := mh.Request(hookCtx, payload, extra)
		span.End()
		if err != nil {
			return RequestRun{Kind: RequestAborted, Err: envelope.Normalize(err), LastNode: lastNode}
		}

		switch result.Outcome {
		case hookchain.RequestContinue:
			payload = result.Request
			current = advance(chain, current, dir)
		case hookchain.RequestRespond:
			return RequestRun{Kind: RequestResponded, Response: result.Response, LastNode: lastNode}
		case hookchain.RequestContinueAsync:
			return RequestRun{
				Kind:     RequestContinuedAsync,
				Request:  result.Request,
				Response: result.Response,
				Callback: result.Callback,
				LastNode: lastNode,
			}
		case hookchain.RequestAbort:
			return RequestRun{Kind: RequestAborted, Err: result.Err, LastNode: lastNode}
		}
	}

	return RequestRun{Kind: RequestFinished, Request: payload, LastNode: lastNode}
}

// ResumeAsync continues a continueAsync request run in the background,
// starting at the node after (or before, by dir) the one that emitted the
// continueAsync result. It is exported so PassthroughContext can drive the
// background leg exactly like any other RunRequest continuation, keeping
// the "start at last_node.next/.prev" rule (spec.md §4.2) in one place.
func ResumeAsync(
	ctx context.Context,
	chain *hookchain.Chain,
	emittedAt *hookchain.Node,
	dir hookchain.Direction,
	method envelope.Method,
	req *envelope.Request,
	extra *envelope.RequestExtra,
	tracer *tracing.Tracer,
) RequestRun {
	next := advance(chain, emittedAt, dir)
	return RunRequest(ctx, chain, next, dir, method, req, extra, tracer)
}
