package passthrough

import "github.com/jamesprial/mcp-passthrough/internal/envelope"

// annotateRequest stamps _meta onto an outbound request's params,
// preserving existing keys and always refreshing timestamp (spec.md §4.5
// steps 2 and 6; §3 invariant I5).
func (c *Context) annotateRequest(req *envelope.Request, sessionID string) (*envelope.Request, error) {
	params, err := envelope.AnnotateRequestParams(req.Params, sessionID, c.now)
	if err != nil {
		return req, err
	}
	cloned := *req
	cloned.Params = params
	return &cloned, nil
}

// annotateNotification stamps _meta onto an outbound notification's params,
// the same additive rule applied to requests (spec.md §4.5 step 2'; §3
// invariant I5 covers "every outbound request/notification", not just
// requests).
func (c *Context) annotateNotification(note *envelope.Notification, sessionID string) (*envelope.Notification, error) {
	params, err := envelope.AnnotateRequestParams(note.Params, sessionID, c.now)
	if err != nil {
		return note, err
	}
	cloned := *note
	cloned.Params = params
	return &cloned, nil
}

// annotateResponse stamps _meta onto an outbound response's result. Error
// responses are returned unchanged and carry no _meta, since the wire
// Error shape has no result field to annotate.
func (c *Context) annotateResponse(resp *envelope.Response, sessionID string) (*envelope.Response, error) {
	if resp == nil || resp.IsError() {
		return resp, nil
	}
	result, err := envelope.AnnotateResponseResult(resp.Result, sessionID, c.now)
	if err != nil {
		return resp, err
	}
	cloned := *resp
	cloned.Result = result
	return &cloned, nil
}
