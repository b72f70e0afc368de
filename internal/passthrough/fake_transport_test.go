package passthrough

import (
	"context"
	"sync"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	"github.com/jamesprial/mcp-passthrough/internal/transport"
)

// fakeTransport is an in-memory transport.Contract double: Send appends to
// Sent and messages are delivered to the registered handlers by calling
// deliver directly from the test, mirroring the mock-double style used
// throughout this module's test suites.
type fakeTransport struct {
	mu   sync.Mutex
	id   string
	Sent []envelope.RawMessage

	onMessage transport.MessageHandler
	onError   transport.ErrorHandler
	onClose   transport.CloseHandler

	started bool
	closed  bool
	sendErr error
}

var _ transport.Contract = (*fakeTransport)(nil)

func newFakeTransport(id string) *fakeTransport {
	return &fakeTransport{id: id}
}

func (f *fakeTransport) SessionID() string { return f.id }

func (f *fakeTransport) Start(ctx context.Context) error {
	f.started = true
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, msg envelope.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.Sent = append(f.Sent, msg)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.onClose != nil {
		f.onClose(nil)
	}
	return nil
}

func (f *fakeTransport) SetOnMessage(h transport.MessageHandler) { f.onMessage = h }
func (f *fakeTransport) SetOnError(h transport.ErrorHandler)     { f.onError = h }
func (f *fakeTransport) SetOnClose(h transport.CloseHandler)     { f.onClose = h }

// deliver simulates an inbound message arriving on this transport.
func (f *fakeTransport) deliver(ctx context.Context, raw string) {
	f.onMessage(ctx, envelope.RawMessage{Bytes: []byte(raw)})
}

// lastSent returns the most recently sent message's bytes as a string, or
// "" if nothing has been sent.
func (f *fakeTransport) lastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return ""
	}
	return string(f.Sent[len(f.Sent)-1].Bytes)
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}
