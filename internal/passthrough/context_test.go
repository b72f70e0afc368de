package passthrough

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	"github.com/jamesprial/mcp-passthrough/internal/hookchain"
)

type stubHook struct {
	name     string
	handlers hookchain.HookHandlers
}

func (s *stubHook) Name() string                    { return s.name }
func (s *stubHook) Handlers() hookchain.HookHandlers { return s.handlers }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestContext_RoundTripForwardsAndCorrelates covers S1: a downstream
// request forwarded to the target, correlated by id, and returned to the
// host as the final response.
func TestContext_RoundTripForwardsAndCorrelates(t *testing.T) {
	t.Parallel()

	ctx, err := New(nil, WithClock(fixedClock(time.Unix(0, 0))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("downstream-sess")
	client := newFakeTransport("upstream-sess")

	if err := ctx.Connect(context.Background(), server, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ctx.Close()

	// deliver blocks until the upstream reply is correlated, so it runs in
	// its own goroutine while the test plays the target.
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.deliver(context.Background(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for client.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if client.sentCount() != 1 {
		t.Fatalf("client.sentCount() = %d, want 1", client.sentCount())
	}
	if !strings.Contains(client.lastSent(), `"method":"tools/list"`) {
		t.Fatalf("forwarded request = %s, missing method", client.lastSent())
	}

	client.deliver(context.Background(), `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server.deliver did not return after the upstream reply")
	}

	if server.sentCount() != 1 {
		t.Fatalf("server.sentCount() = %d, want 1", server.sentCount())
	}
	if !strings.Contains(server.lastSent(), `"tools":[]`) {
		t.Fatalf("reply to host = %s, missing result", server.lastSent())
	}
}

// TestContext_HookOnlyModeReturnsNoUpstreamError covers P9: with no client
// transport bound, a request that reaches the end of the chain fails with
// CodeNoUpstreamTransport.
func TestContext_HookOnlyModeReturnsNoUpstreamError(t *testing.T) {
	t.Parallel()

	ctx, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("sess")
	if err := ctx.Connect(context.Background(), server, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ctx.Close()

	server.deliver(context.Background(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	if server.sentCount() != 1 {
		t.Fatalf("server.sentCount() = %d, want 1", server.sentCount())
	}
	got := server.lastSent()
	if !strings.Contains(got, "-32001") {
		t.Fatalf("reply = %s, want code -32001", got)
	}
}

// TestContext_HookRespondShortCircuits covers the RequestRespond branch: a
// hook answers directly and upstream is never contacted.
func TestContext_HookRespondShortCircuits(t *testing.T) {
	t.Parallel()

	hook := &stubHook{
		name: "short-circuit",
		handlers: hookchain.HookHandlers{
			Downstream: map[envelope.Method]hookchain.MethodHandlers{
				envelope.MethodToolsList: {
					Request: func(ctx context.Context, req *envelope.Request, extra *envelope.RequestExtra) (hookchain.RequestResult, error) {
						return hookchain.RespondRequest(&envelope.Response{JSONRPC: envelope.JSONRPCVersion, Result: map[string]any{"tools": []any{}}}), nil
					},
				},
			},
		},
	}

	ctx, err := New([]hookchain.Hook{hook})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("sess")
	client := newFakeTransport("target")
	if err := ctx.Connect(context.Background(), server, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ctx.Close()

	server.deliver(context.Background(), `{"jsonrpc":"2.0","id":42,"method":"tools/list"}`)

	if client.sentCount() != 0 {
		t.Fatalf("client.sentCount() = %d, want 0 (upstream should not be contacted)", client.sentCount())
	}
	if server.sentCount() != 1 {
		t.Fatalf("server.sentCount() = %d, want 1", server.sentCount())
	}
	if !strings.Contains(server.lastSent(), `"id":42`) {
		t.Fatalf("reply = %s, missing correlated id", server.lastSent())
	}
}

// TestContext_ContinueAsyncRepliesThenCompletesInBackground covers the
// continueAsync branch: the host gets an immediate reply, the background
// continuation still forwards upstream, and the hook's callback observes
// the eventual result exactly once.
func TestContext_ContinueAsyncRepliesThenCompletesInBackground(t *testing.T) {
	t.Parallel()

	callbackDone := make(chan struct{})
	var callbackCount int

	hook := &stubHook{
		name: "async",
		handlers: hookchain.HookHandlers{
			Downstream: map[envelope.Method]hookchain.MethodHandlers{
				envelope.MethodToolsCall: {
					Request: func(ctx context.Context, req *envelope.Request, extra *envelope.RequestExtra) (hookchain.RequestResult, error) {
						immediate := &envelope.Response{JSONRPC: envelope.JSONRPCVersion, Result: map[string]any{"status": "accepted"}}
						return hookchain.ContinueAsyncRequest(req, immediate, func(resp *envelope.Response, chainErr *envelope.HookChainError) {
							callbackCount++
							close(callbackDone)
						}), nil
					},
				},
			},
		},
	}

	ctx, err := New([]hookchain.Hook{hook})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("sess")
	client := newFakeTransport("target")
	if err := ctx.Connect(context.Background(), server, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ctx.Close()

	server.deliver(context.Background(), `{"jsonrpc":"2.0","id":7,"method":"tools/call"}`)

	if server.sentCount() != 1 {
		t.Fatalf("server.sentCount() = %d, want 1 (immediate reply)", server.sentCount())
	}
	if !strings.Contains(server.lastSent(), `"status":"accepted"`) {
		t.Fatalf("immediate reply = %s, missing accepted status", server.lastSent())
	}
	if !strings.Contains(server.lastSent(), `"_meta"`) {
		t.Fatalf("immediate reply = %s, missing _meta annotation", server.lastSent())
	}

	// Background leg should forward the original request upstream.
	deadline := time.After(2 * time.Second)
	for client.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("background continuation never forwarded upstream")
		case <-time.After(10 * time.Millisecond):
		}
	}

	client.deliver(context.Background(), `{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`)

	select {
	case <-callbackDone:
	case <-time.After(2 * time.Second):
		t.Fatal("async completion callback was never invoked")
	}
	if callbackCount != 1 {
		t.Fatalf("callbackCount = %d, want exactly 1", callbackCount)
	}
}

// TestContext_CascadingCloseResolvesPendingCorrelations covers cascading
// close: closing one transport closes the other and resolves any pending
// outbound correlation with an error instead of hanging forever.
func TestContext_CascadingCloseResolvesPendingCorrelations(t *testing.T) {
	t.Parallel()

	ctx, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("sess")
	client := newFakeTransport("target")
	if err := ctx.Connect(context.Background(), server, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		server.deliver(context.Background(), `{"jsonrpc":"2.0","id":9,"method":"tools/list"}`)
		close(done)
	}()

	// Give the request pipeline a moment to register the pending
	// correlation, then close the context out from under it.
	time.Sleep(20 * time.Millisecond)
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleRequest never returned after Close abandoned the pending correlation")
	}
}

func TestContext_OnCloseInvokedExactlyOnce(t *testing.T) {
	t.Parallel()

	var closeCount int
	ctx, err := New(nil, WithOnClose(func() { closeCount++ }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("sess")
	if err := ctx.Connect(context.Background(), server, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := ctx.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if closeCount != 1 {
		t.Fatalf("closeCount = %d, want 1", closeCount)
	}
}

// TestContext_NotificationForwardedWithMeta covers I5/P7 for the
// notification leg: a forwarded notification carries a _meta annotation and
// keeps its original params.
func TestContext_NotificationForwardedWithMeta(t *testing.T) {
	t.Parallel()

	ctx, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("sess")
	client := newFakeTransport("target")
	if err := ctx.Connect(context.Background(), server, client); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ctx.Close()

	server.deliver(context.Background(), `{"jsonrpc":"2.0","method":"notifications/progress","params":{"progress":1}}`)

	if client.sentCount() != 1 {
		t.Fatalf("client.sentCount() = %d, want 1", client.sentCount())
	}
	forwarded := client.lastSent()
	if !strings.Contains(forwarded, `"_meta"`) {
		t.Fatalf("forwarded notification = %s, missing _meta annotation", forwarded)
	}
	if !strings.Contains(forwarded, `"progress":1`) {
		t.Fatalf("forwarded notification = %s, missing original params", forwarded)
	}
}

// TestContext_MalformedMessageReceivesErrorReply covers §7: an inbound
// message that cannot even be classified gets a JSON-RPC error reply
// instead of being silently dropped.
func TestContext_MalformedMessageReceivesErrorReply(t *testing.T) {
	t.Parallel()

	ctx, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	server := newFakeTransport("sess")
	if err := ctx.Connect(context.Background(), server, nil); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer ctx.Close()

	server.deliver(context.Background(), `not json at all`)

	if server.sentCount() != 1 {
		t.Fatalf("server.sentCount() = %d, want 1 (error reply)", server.sentCount())
	}
	got := server.lastSent()
	if !strings.Contains(got, "-32700") {
		t.Fatalf("reply = %s, want parse-error code -32700", got)
	}
}

func TestContext_ConnectRequiresServerTransport(t *testing.T) {
	t.Parallel()

	ctx, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ctx.Connect(context.Background(), nil, nil); err == nil {
		t.Fatal("Connect(nil, nil) should fail")
	}
}
