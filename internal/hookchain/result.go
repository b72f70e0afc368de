package hookchain

import "github.com/jamesprial/mcp-passthrough/internal/envelope"

// RequestOutcome tags the variant carried by a RequestResult (spec.md §4.2
// "HookResult for requests": continue, respond, continueAsync, throw).
type RequestOutcome int

const (
	// RequestContinue passes (possibly mutated) Request to the next hook.
	RequestContinue RequestOutcome = iota

	// RequestRespond short-circuits the forward traversal and begins the
	// reverse response traversal starting at the responding hook itself,
	// carrying Response as the synthesized result.
	RequestRespond

	// RequestContinueAsync replies to the caller immediately with Response
	// while the forward traversal continues in the background; Callback is
	// invoked exactly once when that background traversal completes.
	RequestContinueAsync

	// RequestAbort throws Err, entering the reverse error-path traversal
	// starting at the aborting hook itself.
	RequestAbort
)

// AsyncCompletion is invoked exactly once when a continueAsync's background
// chain traversal reaches a terminal state (spec.md §4.2, §5).
type AsyncCompletion func(resp *envelope.Response, chainErr *envelope.HookChainError)

// RequestResult is the tagged union a RequestHandler returns.
type RequestResult struct {
	Outcome  RequestOutcome
	Request  *envelope.Request
	Response *envelope.Response
	Callback AsyncCompletion
	Err      *envelope.HookChainError
}

// ContinueRequest builds a RequestContinue result.
func ContinueRequest(req *envelope.Request) RequestResult {
	return RequestResult{Outcome: RequestContinue, Request: req}
}

// RespondRequest builds a RequestRespond result.
func RespondRequest(resp *envelope.Response) RequestResult {
	return RequestResult{Outcome: RequestRespond, Response: resp}
}

// ContinueAsyncRequest builds a RequestContinueAsync result. immediate is
// returned to the caller synchronously; the chain keeps traversing in the
// background from the hook after the current one, in the request's
// direction, and cb fires once when it settles.
func ContinueAsyncRequest(req *envelope.Request, immediate *envelope.Response, cb AsyncCompletion) RequestResult {
	return RequestResult{Outcome: RequestContinueAsync, Request: req, Response: immediate, Callback: cb}
}

// AbortRequest builds a RequestAbort result.
func AbortRequest(err *envelope.HookChainError) RequestResult {
	return RequestResult{Outcome: RequestAbort, Err: err}
}

// ResponseOutcome tags the variant carried by a ResponseResult (spec.md
// §4.3 "HookResult for response/error": continue, respond, throw).
type ResponseOutcome int

const (
	// ResponseContinue passes the (possibly unchanged or mutated) payload
	// to the predecessor hook, staying on the same path (success stays
	// success, failure stays failure).
	ResponseContinue ResponseOutcome = iota

	// ResponseRespond supplies a final response and, on the failure path,
	// recovers the traversal onto the success path for all remaining
	// predecessors (spec.md §4.3, "error handler recovery").
	ResponseRespond
)

// ResponseResult is the tagged union a ResponseHandler or ErrorHandler
// returns.
type ResponseResult struct {
	Outcome ResponseOutcome

	// Response carries the payload for ResponseContinue (mutated or
	// unchanged, success path only) and ResponseRespond (either path).
	// Left nil on ResponseContinue while in the failure path: the error
	// itself is what propagates in that case, not a Response.
	Response *envelope.Response
}

// ContinueResponse builds a ResponseContinue result carrying resp onward
// unchanged or mutated. Used by response handlers on the success path.
func ContinueResponse(resp *envelope.Response) ResponseResult {
	return ResponseResult{Outcome: ResponseContinue, Response: resp}
}

// ContinueError builds a ResponseContinue result with no payload, used by
// error handlers that decline to recover and let the error keep propagating.
func ContinueError() ResponseResult {
	return ResponseResult{Outcome: ResponseContinue}
}

// RespondWith builds a ResponseRespond result, finalizing resp as the
// traversal's result. When returned from an error handler this recovers
// the traversal onto the success path.
func RespondWith(resp *envelope.Response) ResponseResult {
	return ResponseResult{Outcome: ResponseRespond, Response: resp}
}

// NotificationOutcome tags the variant carried by a NotificationResult
// (spec.md §4.4).
type NotificationOutcome int

const (
	// NotificationContinue passes the (possibly mutated) notification to
	// the next hook.
	NotificationContinue NotificationOutcome = iota

	// NotificationAbort stops the traversal; notifications have no
	// response channel, so aborting simply drops the remaining chain.
	NotificationAbort
)

// NotificationResult is the tagged union a NotificationHandler returns.
type NotificationResult struct {
	Outcome      NotificationOutcome
	Notification *envelope.Notification
}

// ContinueNotification builds a NotificationContinue result.
func ContinueNotification(note *envelope.Notification) NotificationResult {
	return NotificationResult{Outcome: NotificationContinue, Notification: note}
}

// AbortNotification builds a NotificationAbort result.
func AbortNotification() NotificationResult {
	return NotificationResult{Outcome: NotificationAbort}
}
