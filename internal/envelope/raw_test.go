package envelope

import "testing"

func TestRawMessage_ClassifyRequest(t *testing.T) {
	t.Parallel()
	msg := RawMessage{Bytes: []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`)}
	if got := msg.Classify(); got != KindRequest {
		t.Fatalf("Classify() = %v, want KindRequest", got)
	}
}

func TestRawMessage_ClassifyNotification(t *testing.T) {
	t.Parallel()
	msg := RawMessage{Bytes: []byte(`{"jsonrpc":"2.0","method":"notifications/progress","params":{}}`)}
	if got := msg.Classify(); got != KindNotification {
		t.Fatalf("Classify() = %v, want KindNotification", got)
	}
}

func TestRawMessage_ClassifyResponse(t *testing.T) {
	t.Parallel()
	msg := RawMessage{Bytes: []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)}
	if got := msg.Classify(); got != KindResponse {
		t.Fatalf("Classify() = %v, want KindResponse", got)
	}
}

func TestRawMessage_ClassifyErrorResponse(t *testing.T) {
	t.Parallel()
	msg := RawMessage{Bytes: []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"not found"}}`)}
	if got := msg.Classify(); got != KindResponse {
		t.Fatalf("Classify() = %v, want KindResponse", got)
	}
}

func TestRawMessage_ClassifyUnknown(t *testing.T) {
	t.Parallel()
	msg := RawMessage{Bytes: []byte(`{"jsonrpc":"2.0"}`)}
	if got := msg.Classify(); got != KindUnknown {
		t.Fatalf("Classify() = %v, want KindUnknown", got)
	}
}

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	t.Parallel()
	req := &Request{JSONRPC: JSONRPCVersion, ID: float64(7), Method: "tools/call"}
	raw, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, err := raw.DecodeRequest()
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.Method != req.Method {
		t.Fatalf("Method = %q, want %q", got.Method, req.Method)
	}
}
