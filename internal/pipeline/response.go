package pipeline

import (
	"context"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	"github.com/jamesprial/mcp-passthrough/internal/hookchain"
	"github.com/jamesprial/mcp-passthrough/internal/tracing"
)

// ResponseRun is the terminal outcome of one RunResponse call: exactly one
// of Response or Err is set.
type ResponseRun struct {
	Response *envelope.Response
	Err      *envelope.HookChainError
}

// responseAdvance moves cur one step opposite to the request direction dir
// that produced start (spec.md §4.5: a forward request pipeline is paired
// with a reverse response pipeline, and vice versa).
func responseAdvance(chain *hookchain.Chain, cur *hookchain.Node, dir hookchain.Direction) *hookchain.Node {
	if dir == hookchain.Upstream {
		return chain.Forward(cur)
	}
	return chain.Backward(cur)
}

// RunResponse drives a response or an error backwards (relative to the
// paired request's direction) through chain starting at start, running
// response handlers on the success path and error handlers on the failure
// path, with error-handler recovery (spec.md §4.3).
//
// Exactly one of resp / chainErr must be non-nil; passing neither is itself
// a pipeline bug and is reported as envelope.ErrBothNilOutcome.
func RunResponse(
	ctx context.Context,
	chain *hookchain.Chain,
	start *hookchain.Node,
	dir hookchain.Direction,
	method envelope.Method,
	req *envelope.Request,
	resp *envelope.Response,
	chainErr *envelope.HookChainError,
	extra *envelope.RequestExtra,
	tracer *tracing.Tracer,
) ResponseRun {
	if resp == nil && chainErr == nil {
		return ResponseRun{Err: envelope.Normalize(envelope.ErrBothNilOutcome)}
	}

	current := start
	inError := chainErr != nil
	payloadResp := resp
	payloadErr := chainErr

	for current != nil {
		mh := current.Hook().Handlers().For(dir, method)

		if !inError {
			if mh.Response == nil {
				current = responseAdvance(chain, current, dir)
				continue
			}
			hookCtx, span := tracer.StartHook(ctx, current.Hook().Name())
			result, err := mh.Response(hookCtx, payloadResp, req, extra)
			span.End()
			if err != nil {
				payloadErr = envelope.Normalize(err)
				inError = true
				current = responseAdvance(chain, current, dir)
				continue
			}
			switch result.Outcome {
			case hookchain.ResponseContinue:
				if result.Response != nil {
					payloadResp = result.Response
				}
			case hookchain.ResponseRespond:
				payloadResp = result.Response
			}
			current = responseAdvance(chain, current, dir)
			continue
		}

		// Failure path.
		if mh.Error == nil {
			current = responseAdvance(chain, current, dir)
			continue
		}
		hookCtx, span := tracer.StartHook(ctx, current.Hook().Name())
		result, err := mh.Error(hookCtx, payloadErr, req, extra)
		span.End()
		if err != nil {
			payloadErr = envelope.Normalize(err)
			current = responseAdvance(chain, current, dir)
			continue
		}
		switch result.Outcome {
		case hookchain.ResponseContinue:
			// Error propagates unchanged.
		case hookchain.ResponseRespond:
			payloadResp = result.Response
			inError = false // recovery: failure path lifts to success.
		}
		current = responseAdvance(chain, current, dir)
	}

	if inError {
		return ResponseRun{Err: payloadErr}
	}
	return ResponseRun{Response: payloadResp}
}
