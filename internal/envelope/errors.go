package envelope

import (
	"errors"
	"fmt"
)

// Sentinel errors for envelope-level validation failures.
var (
	// ErrInvalidRequest indicates the JSON-RPC request is invalid or malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoUpstreamTransport indicates a request could not be forwarded
	// because no client_transport is bound to the passthrough context.
	ErrNoUpstreamTransport = errors.New("no client transport connected")

	// ErrBothNilOutcome indicates a response pipeline was started with
	// neither a response nor an error, which is itself a pipeline bug.
	ErrBothNilOutcome = errors.New("response pipeline started with no response and no error")
)

// HookChainError is the normalized error carrier that crosses pipeline
// boundaries (spec.md §3, "HookChainError"). Negative Code values are
// JSON-RPC codes; positive values in 100-599 may map to HTTP statuses when
// ResponseType is "http".
type HookChainError struct {
	Code         int
	Message      string
	Data         any
	ResponseType string // "" | "jsonrpc" | "http"

	// TraceID is an optional trace identifier. Nothing in this module sets
	// it; it stays empty unless the code building the error fills it in.
	// Informational only; never participates in comparisons.
	TraceID string

	// cause is the original Go error this was normalized from, if any.
	cause error
}

// Error implements the error interface.
func (e *HookChainError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("hookchain error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("hookchain error %d: %s", e.Code, e.Message)
}

// Unwrap returns the original error this was normalized from, if any.
func (e *HookChainError) Unwrap() error {
	return e.cause
}

// NewHookChainError constructs a HookChainError directly, for hooks that
// want to control the wire code precisely (e.g. recovery, HTTP remap).
func NewHookChainError(code int, message string, data any) *HookChainError {
	return &HookChainError{Code: code, Message: message, Data: data}
}

// Normalize converts an arbitrary thrown value into a *HookChainError per
// spec.md §7's normalization rule:
//
//  1. already a *HookChainError: returned as-is.
//  2. an *Error (wire JSON-RPC error, e.g. from an upstream reply): code and
//     message are carried over verbatim.
//  3. any other error: Code = -32603, Message and Data both hold
//     err.Error(); the original error is kept as the cause (see Unwrap).
func Normalize(err error) *HookChainError {
	if err == nil {
		return nil
	}

	var hce *HookChainError
	if errors.As(err, &hce) {
		return hce
	}

	var wireErr *Error
	if errors.As(err, &wireErr) {
		return &HookChainError{
			Code:    wireErr.Code,
			Message: wireErr.Message,
			Data:    wireErr.Data,
			cause:   err,
		}
	}

	return &HookChainError{
		Code:    CodeInternalError,
		Message: err.Error(),
		Data:    err.Error(),
		cause:   err,
	}
}

// ToWireError renders a HookChainError as the wire-level *Error carried in
// a JSON-RPC Response.
func (e *HookChainError) ToWireError() *Error {
	if e == nil {
		return nil
	}
	return &Error{Code: e.Code, Message: e.Message, Data: e.Data}
}
