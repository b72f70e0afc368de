// Package httptransport provides a reference downstream (server-facing)
// transport.Contract implementation: one JSON-RPC message per HTTP POST,
// acknowledged with 202 Accepted and no body. Every message the proxy
// sends to the client, responses and notifications alike, is delivered
// over a long-lived GET /events stream of newline-delimited JSON scoped to
// the same session.
package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jamesprial/mcp-passthrough/internal/credentials"
	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	"github.com/jamesprial/mcp-passthrough/internal/transport"
)

// SessionHeader names the HTTP header for the session identifier. The
// transport neither reads nor writes it; its session is the one given to New.
const SessionHeader = "Mcp-Session-Id"

// Config controls the HTTP server's network behavior.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Transport implements transport.Contract over HTTP. It is the downstream
// side of the proxy: it terminates client connections and hands each
// inbound message to the onMessage callback for pipeline processing.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	sessionID string
	router    chi.Router
	server    *http.Server

	mu       sync.RWMutex
	listener net.Listener
	closed   bool

	events chan envelope.RawMessage

	onMessage transport.MessageHandler
	onError   transport.ErrorHandler
	onClose   transport.CloseHandler
}

var _ transport.Contract = (*Transport)(nil)

// New builds an HTTP transport bound to sessionID. sessionID is typically
// generated with google/uuid by the caller before the first request
// arrives.
func New(cfg Config, sessionID string, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		cfg:       cfg,
		logger:    logger.With("session_id", sessionID, "transport", "http"),
		sessionID: sessionID,
		events:    make(chan envelope.RawMessage, 64),
	}
	t.router = t.buildRouter()
	return t
}

func (t *Transport) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/mcp", t.handleRPC)
	r.Get("/events", t.handleEvents)
	return r
}

// SessionID implements transport.Contract.
func (t *Transport) SessionID() string { return t.sessionID }

// SetOnMessage implements transport.Contract.
func (t *Transport) SetOnMessage(h transport.MessageHandler) { t.onMessage = h }

// SetOnError implements transport.Contract.
func (t *Transport) SetOnError(h transport.ErrorHandler) { t.onError = h }

// SetOnClose implements transport.Contract.
func (t *Transport) SetOnClose(h transport.CloseHandler) { t.onClose = h }

// Start begins listening for HTTP connections. It returns once the
// listener is bound; serving continues in a background goroutine.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:         t.cfg.Addr,
		Handler:      t.router,
		ReadTimeout:  t.cfg.ReadTimeout,
		WriteTimeout: t.cfg.WriteTimeout,
		IdleTimeout:  t.cfg.IdleTimeout,
	}

	listener, err := net.Listen("tcp", t.cfg.Addr)
	if err != nil {
		return fmt.Errorf("httptransport: listen: %w", err)
	}

	t.mu.Lock()
	t.listener = listener
	t.mu.Unlock()

	go func() {
		if err := t.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			t.reportError(fmt.Errorf("httptransport: serve: %w", err))
		}
	}()

	return nil
}

// Addr returns the bound listener address, useful when Config.Addr used a
// random port (":0").
func (t *Transport) Addr() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener == nil {
		return t.cfg.Addr
	}
	return t.listener.Addr().String()
}

// Send delivers a server-originated message (a response, a continueAsync
// completion, or a proxy-originated notification) to the downstream client
// over the SSE event stream.
func (t *Transport) Send(ctx context.Context, msg envelope.RawMessage) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return transport.ErrClosed
	}
	select {
	case t.events <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the HTTP server and closes the event stream.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.events)

	var err error
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = t.server.Shutdown(ctx)
	}

	if t.onClose != nil {
		t.onClose(nil)
	}
	return err
}

func (t *Transport) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.reportError(fmt.Errorf("httptransport: read body: %w", err))
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if t.onMessage == nil {
		http.Error(w, "transport not ready", http.StatusServiceUnavailable)
		return
	}

	authInfo, err := credentials.FromRequest(r)
	if err != nil {
		t.logger.Warn("malformed bearer token, passing request through unauthenticated", "error", err)
	}

	meta := &envelope.InboundMeta{
		RequestInfo: &envelope.RequestInfo{
			URL:     r.URL.String(),
			Method:  r.Method,
			Headers: r.Header,
		},
	}
	if authInfo != nil {
		meta.AuthInfo = authInfo
	}

	t.onMessage(r.Context(), envelope.RawMessage{Bytes: body, Meta: meta})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
}

// handleEvents streams server-originated messages to the client as
// newline-delimited JSON over a chunked response, the transport's
// reference push channel for responses and notifications.
func (t *Transport) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for {
		select {
		case msg, ok := <-t.events:
			if !ok {
				return
			}
			var raw json.RawMessage = msg.Bytes
			if err := enc.Encode(raw); err != nil {
				t.reportError(fmt.Errorf("httptransport: encode event: %w", err))
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (t *Transport) reportError(err error) {
	t.logger.Error("transport error", "error", err)
	if t.onError != nil {
		t.onError(err)
	}
}
