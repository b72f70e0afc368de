package envelope

import "encoding/json"

// RawMessage is an undecoded JSON-RPC message as read off the wire by a
// transport.Contract, before the passthrough has determined whether it is
// a request, a response, or a notification.
type RawMessage struct {
	// Bytes is the raw JSON payload exactly as received.
	Bytes json.RawMessage

	// Meta carries transport-level context that rides alongside the
	// payload without being part of it: inbound auth info and HTTP
	// request info, handed through unmodified to RequestExtra (spec.md
	// §3, "auth_info" / "request_info"). Nil for transports that have
	// nothing to report (e.g. a WebSocket frame).
	Meta *InboundMeta
}

// InboundMeta is the transport-supplied context attached to a RawMessage.
type InboundMeta struct {
	// AuthInfo is opaque, unverified identity information extracted from
	// the inbound request by the transport (e.g. a bearer token's
	// claims). Never validated here; passed straight through.
	AuthInfo any

	// RequestInfo carries inbound HTTP-style request metadata when the
	// originating transport is HTTP-shaped.
	RequestInfo *RequestInfo
}

// rawEnvelope is used only to sniff the shape of a RawMessage without
// fully decoding its params/result.
type rawEnvelope struct {
	ID     *json.RawMessage `json:"id"`
	Method string           `json:"method"`
	Result json.RawMessage  `json:"result"`
	Error  json.RawMessage  `json:"error"`
}

// Kind classifies a raw wire message as a request, response, or
// notification so the passthrough can dispatch it to the right pipeline.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindResponse
	KindNotification
)

// Classify inspects the shape of the raw message (presence of method/id vs.
// result/error) to determine its Kind.
func (m RawMessage) Classify() Kind {
	var env rawEnvelope
	if err := json.Unmarshal(m.Bytes, &env); err != nil {
		return KindUnknown
	}
	if env.Method != "" {
		if env.ID != nil {
			return KindRequest
		}
		return KindNotification
	}
	if env.Result != nil || env.Error != nil {
		return KindResponse
	}
	return KindUnknown
}

// SniffID extracts the JSON-RPC "id" field from the raw bytes without
// requiring the rest of the payload to be well-formed, so a reply to an
// otherwise-malformed message can still be correlated back to its sender
// when possible. ok is false only when the bytes are not valid JSON at all;
// a well-formed message with no "id" field reports ok=true, id=nil.
func (m RawMessage) SniffID() (id any, ok bool) {
	var probe struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(m.Bytes, &probe); err != nil {
		return nil, false
	}
	return probe.ID, true
}

// DecodeRequest parses the raw message as a Request.
func (m RawMessage) DecodeRequest() (*Request, error) {
	var req Request
	if err := json.Unmarshal(m.Bytes, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeResponse parses the raw message as a Response.
func (m RawMessage) DecodeResponse() (*Response, error) {
	var resp Response
	if err := json.Unmarshal(m.Bytes, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DecodeNotification parses the raw message as a Notification.
func (m RawMessage) DecodeNotification() (*Notification, error) {
	var note Notification
	if err := json.Unmarshal(m.Bytes, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

// EncodeRequest wraps a Request as a RawMessage.
func EncodeRequest(req *Request) (RawMessage, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return RawMessage{}, err
	}
	return RawMessage{Bytes: b}, nil
}

// EncodeResponse wraps a Response as a RawMessage.
func EncodeResponse(resp *Response) (RawMessage, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return RawMessage{}, err
	}
	return RawMessage{Bytes: b}, nil
}

// EncodeNotification wraps a Notification as a RawMessage.
func EncodeNotification(note *Notification) (RawMessage, error) {
	b, err := json.Marshal(note)
	if err != nil {
		return RawMessage{}, err
	}
	return RawMessage{Bytes: b}, nil
}
