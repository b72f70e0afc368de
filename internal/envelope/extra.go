package envelope

import (
	"encoding/json"
	"time"
)

// MetadataSource is the constant "source" tag stamped onto every outbound
// message's _meta by the passthrough context (spec.md §3, invariant I5).
const MetadataSource = "passthrough-server"

// RequestInfo carries inbound HTTP-style request metadata, when the
// originating transport is HTTP-shaped. Zero value means "not applicable."
type RequestInfo struct {
	URL     string
	Method  string
	Headers map[string][]string
}

// RequestExtra is the contextual envelope attached to every hook invocation
// (spec.md §3, "RequestExtra").
type RequestExtra struct {
	// RequestID is the JSON-RPC id assigned by the sender.
	RequestID any

	// SessionID is the transport-layer session identifier.
	SessionID string

	// AuthInfo is opaque authentication metadata supplied by the inbound
	// transport and passed through unmodified; the core never validates it
	// (spec Non-goals).
	AuthInfo any

	// Meta is free-form protocol-level metadata. The passthrough context
	// does not fill it from the message's params._meta (or the response's
	// _meta): it stays nil unless the code building the RequestExtra sets
	// it. Mutating Meta does not itself mutate the wire payload; the wire
	// _meta is changed through AnnotateRequestParams / AnnotateResponseResult.
	Meta map[string]any

	// RequestInfo carries inbound HTTP-style metadata when applicable.
	RequestInfo *RequestInfo
}

// CloneMeta returns a shallow copy of e.Meta suitable for handing to a hook
// that may wish to mutate its own copy without affecting sibling hooks.
func (e *RequestExtra) CloneMeta() map[string]any {
	if e == nil || e.Meta == nil {
		return map[string]any{}
	}
	cloned := make(map[string]any, len(e.Meta))
	for k, v := range e.Meta {
		cloned[k] = v
	}
	return cloned
}

// metaEnvelope is the shape of the "_meta" object additive keys are merged
// into, whether it lives at params._meta (requests/notifications) or at
// the response's top-level _meta.
type metaEnvelope = map[string]any

// AnnotateMeta adds session_id, timestamp, and source keys to meta
// additively: pre-existing keys are preserved, except timestamp, which is
// always refreshed, and source, which is always set (spec.md §3 invariant
// I5, §4.5 "Metadata precedence").
// now is injected for testability; production callers pass time.Now.
func AnnotateMeta(meta metaEnvelope, sessionID string, now func() time.Time) metaEnvelope {
	if meta == nil {
		meta = metaEnvelope{}
	}
	if _, exists := meta["session_id"]; !exists {
		meta["session_id"] = sessionID
	}
	if _, exists := meta["source"]; !exists {
		meta["source"] = MetadataSource
	}
	// source is always set, even if something other than our own prior
	// annotation had claimed the key with a different value.
	meta["source"] = MetadataSource
	meta["timestamp"] = now().UTC().Format(time.RFC3339Nano)
	return meta
}

// paramsWithMeta is the minimal shape needed to read/write params._meta
// without knowing the concrete params type.
type paramsWithMeta struct {
	Meta map[string]any `json:"_meta,omitempty"`
}

// AnnotateRequestParams rewrites a request's raw params so that
// params._meta carries the additive annotation described by AnnotateMeta,
// preserving all other fields in params untouched.
func AnnotateRequestParams(params json.RawMessage, sessionID string, now func() time.Time) (json.RawMessage, error) {
	raw := map[string]any{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raw); err != nil {
			return params, err
		}
	}
	existingMeta, _ := raw["_meta"].(map[string]any)
	raw["_meta"] = AnnotateMeta(existingMeta, sessionID, now)
	return json.Marshal(raw)
}

// AnnotateResponseResult rewrites a response result so its top-level _meta
// carries the additive annotation, preserving all other fields.
func AnnotateResponseResult(result any, sessionID string, now func() time.Time) (any, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return result, err
	}
	raw := map[string]any{}
	if len(encoded) > 0 && string(encoded) != "null" {
		if err := json.Unmarshal(encoded, &raw); err != nil {
			return result, err
		}
	}
	existingMeta, _ := raw["_meta"].(map[string]any)
	raw["_meta"] = AnnotateMeta(existingMeta, sessionID, now)
	return raw, nil
}
