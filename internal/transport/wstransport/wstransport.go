// Package wstransport provides a reference upstream (target-facing)
// transport.Contract implementation over a long-lived WebSocket
// connection, dialed once and read in a background loop for the lifetime
// of the session.
package wstransport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	"github.com/jamesprial/mcp-passthrough/internal/transport"
)

// Config controls the dial target and handshake behavior.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Transport implements transport.Contract as a WebSocket client connecting
// to an upstream MCP target.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	sessionID string
	conn      *websocket.Conn

	mu     sync.Mutex
	closed bool

	onMessage transport.MessageHandler
	onError   transport.ErrorHandler
	onClose   transport.CloseHandler
}

var _ transport.Contract = (*Transport)(nil)

// New builds a WebSocket transport for sessionID. The connection is not
// dialed until Start is called.
func New(cfg Config, sessionID string, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		cfg:       cfg,
		logger:    logger.With("session_id", sessionID, "transport", "ws"),
		sessionID: sessionID,
	}
}

// SessionID implements transport.Contract.
func (t *Transport) SessionID() string { return t.sessionID }

// SetOnMessage implements transport.Contract.
func (t *Transport) SetOnMessage(h transport.MessageHandler) { t.onMessage = h }

// SetOnError implements transport.Contract.
func (t *Transport) SetOnError(h transport.ErrorHandler) { t.onError = h }

// SetOnClose implements transport.Contract.
func (t *Transport) SetOnClose(h transport.CloseHandler) { t.onClose = h }

// Start dials the upstream target and begins the background read loop.
func (t *Transport) Start(ctx context.Context) error {
	dialCtx := ctx
	if t.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, t.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("wstransport: dial %s: %w", t.cfg.URL, err)
	}
	conn.SetReadLimit(32 << 20)
	t.conn = conn

	go t.readLoop(context.Background())
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			t.finish(err)
			return
		}
		if t.onMessage != nil {
			t.onMessage(ctx, envelope.RawMessage{Bytes: append([]byte(nil), data...)})
		}
	}
}

// Send writes msg to the upstream connection.
func (t *Transport) Send(ctx context.Context, msg envelope.RawMessage) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if t.conn == nil {
		return transport.ErrNotStarted
	}
	if err := t.conn.Write(ctx, websocket.MessageText, msg.Bytes); err != nil {
		return fmt.Errorf("wstransport: write: %w", err)
	}
	return nil
}

// Close closes the WebSocket connection with a normal-closure code.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.conn == nil {
		if t.onClose != nil {
			t.onClose(nil)
		}
		return nil
	}

	err := t.conn.Close(websocket.StatusNormalClosure, "session closed")
	if t.onClose != nil {
		t.onClose(nil)
	}
	return err
}

func (t *Transport) finish(readErr error) {
	t.mu.Lock()
	already := t.closed
	t.closed = true
	t.mu.Unlock()
	if already {
		return
	}

	if websocket.CloseStatus(readErr) == -1 {
		t.logger.Warn("upstream read failed", "error", readErr)
		if t.onError != nil {
			t.onError(readErr)
		}
	}
	if t.onClose != nil {
		t.onClose(readErr)
	}
}
