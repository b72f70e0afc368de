// Package passthrough implements the per-connection state machine that
// pairs a downstream (server-facing) transport with an upstream
// (client-facing) transport, routes each JSON-RPC message through the
// appropriate hook pipeline, and enforces request/response correlation
// plus metadata annotation (spec.md §4.5).
package passthrough

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
	apperrors "github.com/jamesprial/mcp-passthrough/internal/errors"
	"github.com/jamesprial/mcp-passthrough/internal/hookchain"
	"github.com/jamesprial/mcp-passthrough/internal/metrics"
	"github.com/jamesprial/mcp-passthrough/internal/pipeline"
	"github.com/jamesprial/mcp-passthrough/internal/tracing"
	"github.com/jamesprial/mcp-passthrough/internal/transport"
)

// ErrServerTransportRequired is returned by Connect when no server
// transport is supplied; a passthrough context always needs a downstream
// side, even in hook-only mode.
var ErrServerTransportRequired = errors.New("passthrough: server transport is required")

// Context owns the two transports of one proxied MCP session. It is built
// once with an immutable hook list, then bound to transports via Connect.
type Context struct {
	chain *hookchain.Chain

	server transport.Contract
	client transport.Contract

	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  *tracing.Tracer
	now     func() time.Time

	corr  *correlator
	tasks asyncTasks

	closed atomic.Bool

	onError func(error)
	onClose func()
}

// New builds a Context from an immutable list of hooks. The chain is
// constructed once and never mutated for the Context's lifetime (spec.md
// §5, "the hook chain is immutable for the lifetime of a context").
func New(hooks []hookchain.Hook, opts ...Option) (*Context, error) {
	chain, err := hookchain.NewChain(hooks)
	if err != nil {
		return nil, fmt.Errorf("passthrough: build chain: %w", err)
	}

	c := &Context{
		chain: chain,
		now:   time.Now,
		corr:  newCorrelator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.tasks.metrics = c.metrics

	return c, nil
}

// Connect binds server (mandatory) and client (optional) transports,
// installing the context as their sole callback owner, and starts both. A
// nil client puts the context in hook-only mode (spec.md §4.5): forwarded
// requests that reach the end of the chain fail with CodeNoUpstreamTransport.
func (c *Context) Connect(ctx context.Context, server, client transport.Contract) error {
	if server == nil {
		return ErrServerTransportRequired
	}
	c.server = server
	c.client = client

	server.SetOnMessage(func(ctx context.Context, msg envelope.RawMessage) {
		c.handleInbound(ctx, sideServer, msg)
	})
	server.SetOnError(c.reportError)
	server.SetOnClose(func(reason error) { c.handleTransportClose(reason) })

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("passthrough: start server transport: %w", err)
	}

	if client != nil {
		client.SetOnMessage(func(ctx context.Context, msg envelope.RawMessage) {
			c.handleInbound(ctx, sideClient, msg)
		})
		client.SetOnError(c.reportError)
		client.SetOnClose(func(reason error) { c.handleTransportClose(reason) })

		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("passthrough: start client transport: %w", err)
		}
	}

	return nil
}

// Close idempotently closes both transports, joins any in-flight
// continueAsync background tasks, and invokes onClose exactly once
// (spec.md §4.5, "close() — idempotent").
func (c *Context) Close() error {
	// A transport's own Close() fires its onClose callback unconditionally,
	// including when that Close() was itself triggered by the lines below
	// (closing the other transport, or the host calling Close() directly).
	// CompareAndSwap makes that reentrant call a no-op instead of blocking
	// forever on a non-reentrant lock (spec.md §4.5, "cascading close is
	// idempotent").
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var closeErr error

	reason := envelope.NewHookChainError(envelope.CodeNoUpstreamTransport, "transport closed", nil)
	c.corr.abandon(sideServer, reason)
	c.corr.abandon(sideClient, reason)

	if c.server != nil {
		if err := c.server.Close(); err != nil {
			c.reportError(err)
			closeErr = err
		}
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.reportError(err)
			if closeErr == nil {
				closeErr = err
			}
		}
	}

	c.tasks.wait()

	if c.onClose != nil {
		c.onClose()
	}
	return closeErr
}

// handleTransportClose cascades a transport-initiated close to the whole
// context (spec.md §4.5, "Cascading close").
func (c *Context) handleTransportClose(_ error) {
	if err := c.Close(); err != nil {
		c.reportError(err)
	}
}

func (c *Context) reportError(err error) {
	if err == nil {
		return
	}
	c.logger.Warn("passthrough transport error", "error", err)
	if c.onError != nil {
		c.onError(err)
	}
}

// reportInternalError wraps an internal failure as a apperrors.DomainError
// before handing it to reportError, giving ad-hoc failures (decode, encode,
// forwarding) the same domain/op/kind shape as errors raised elsewhere in
// the proxy instead of a bare fmt.Errorf string.
func (c *Context) reportInternalError(op string, kind error, cause error) {
	c.reportError(apperrors.New("passthrough", op, kind, cause))
}

func (c *Context) transportForSide(side correlationSide) transport.Contract {
	if side == sideServer {
		return c.server
	}
	return c.client
}

// handleInbound classifies a raw message arriving on the given side and
// dispatches it to the appropriate handler.
func (c *Context) handleInbound(ctx context.Context, arrivedOn correlationSide, msg envelope.RawMessage) {
	switch msg.Classify() {
	case envelope.KindResponse:
		c.handleInboundResponse(arrivedOn, msg)
	case envelope.KindRequest:
		req, err := msg.DecodeRequest()
		if err != nil {
			c.replyMalformed(ctx, arrivedOn, msg, "DecodeRequest", err)
			return
		}
		c.handleRequest(ctx, directionFor(arrivedOn), req, msg.Meta)
	case envelope.KindNotification:
		note, err := msg.DecodeNotification()
		if err != nil {
			c.replyMalformed(ctx, arrivedOn, msg, "DecodeNotification", err)
			return
		}
		c.handleNotification(ctx, directionFor(arrivedOn), note, msg.Meta)
	default:
		c.replyMalformed(ctx, arrivedOn, msg, "Classify", fmt.Errorf("message of unrecognized shape"))
	}
}

// replyMalformed logs an inbound message that could not be classified or
// decoded, as a apperrors.DomainError carrying op for diagnostics, and
// writes a JSON-RPC error reply back to the sender rather than silently
// dropping it (spec.md §7). The reply's id is sniffed from the raw bytes
// when the bytes are valid JSON; an id-less or altogether unparseable
// message replies with id=nil, per JSON-RPC convention for parse errors.
func (c *Context) replyMalformed(ctx context.Context, arrivedOn correlationSide, msg envelope.RawMessage, op string, cause error) {
	c.reportInternalError(op, apperrors.ErrBadRequest, cause)

	id, validJSON := msg.SniffID()
	code := envelope.CodeInvalidRequest
	if !validJSON {
		code = envelope.CodeParseError
	}
	chainErr := envelope.NewHookChainError(code, fmt.Sprintf("malformed message: %v", cause), nil)
	c.replyError(ctx, arrivedOn, id, chainErr)
}

// directionFor maps the side a message arrived on to the hook-chain
// direction whose handlers process it: messages from the host drive the
// Downstream family, messages from the target drive the Upstream family
// (spec.md §4.5).
func directionFor(arrivedOn correlationSide) hookchain.Direction {
	if arrivedOn == sideClient {
		return hookchain.Upstream
	}
	return hookchain.Downstream
}

func (c *Context) handleInboundResponse(arrivedOn correlationSide, msg envelope.RawMessage) {
	resp, err := msg.DecodeResponse()
	if err != nil {
		c.reportInternalError("DecodeResponse", apperrors.ErrBadRequest, err)
		return
	}

	var result pendingResult
	if resp.IsError() {
		result = pendingResult{err: envelope.Normalize(resp.Error)}
	} else {
		result = pendingResult{resp: resp}
	}

	if !c.corr.resolve(arrivedOn, resp.ID, result) {
		c.logger.Warn("passthrough: response with no matching pending request", "id", resp.ID, "side", arrivedOn)
	}
}

// handleRequest drives one inbound request through the full per-direction
// pipeline described by spec.md §4.5 steps 1-8. meta carries the inbound
// transport's auth/HTTP context, if any, and is attached to RequestExtra
// unmodified (spec.md §3, "auth_info" / "request_info").
func (c *Context) handleRequest(ctx context.Context, dir hookchain.Direction, req *envelope.Request, meta *envelope.InboundMeta) {
	method := envelope.ClassifyMethod(req.Method)
	inboundSide := inboundSideFor(dir)
	inboundSessionID := c.sessionIDFor(inboundSide)

	ctx, span := c.tracer.StartPipeline(ctx, string(method), dir.String())
	defer span.End()

	start := time.Now()
	outcome := "continue"
	defer func() {
		c.metrics.ObserveRequest(method, dir.String(), outcome, time.Since(start).Seconds())
	}()

	annotated, err := c.annotateRequest(req, inboundSessionID)
	if err != nil {
		outcome = "internal_error"
		c.replyError(ctx, inboundSide, req.ID, envelope.Normalize(err))
		return
	}

	extra := &envelope.RequestExtra{RequestID: req.ID, SessionID: inboundSessionID}
	if meta != nil {
		extra.AuthInfo = meta.AuthInfo
		extra.RequestInfo = meta.RequestInfo
	}
	run := pipeline.RunRequest(ctx, c.chain, startNodeFor(c.chain, dir), dir, method, annotated, extra, c.tracer)

	switch run.Kind {
	case pipeline.RequestAborted:
		outcome = "abort"
		resp, chainErr := c.completeRequest(ctx, dir, run.LastNode, method, annotated, nil, run.Err, extra)
		c.deliverFinal(ctx, inboundSide, req.ID, resp, chainErr)

	case pipeline.RequestResponded:
		outcome = "respond"
		resp, chainErr := c.completeRequest(ctx, dir, run.LastNode, method, annotated, run.Response, nil, extra)
		c.deliverFinal(ctx, inboundSide, req.ID, resp, chainErr)

	case pipeline.RequestContinuedAsync:
		outcome = "continue_async"
		immediate := run.Response
		if annotated, err := c.annotateResponse(immediate, inboundSessionID); err == nil {
			immediate = annotated
		}
		c.deliverResponse(ctx, inboundSide, immediate)
		c.tasks.spawn(func() {
			c.runAsyncContinuation(dir, method, run, extra)
		})

	case pipeline.RequestFinished:
		resp, chainErr := c.forwardAndRespond(ctx, dir, run.LastNode, method, annotated, extra)
		c.deliverFinal(ctx, inboundSide, req.ID, resp, chainErr)
		if chainErr != nil {
			outcome = "error"
		}
	}
}

// runAsyncContinuation performs the background leg of a continueAsync
// request: resume the chain from last_node.next (or .prev), forward
// upstream, run the response pipeline, and invoke the hook's completion
// callback exactly once (spec.md §4.2, §5).
func (c *Context) runAsyncContinuation(dir hookchain.Direction, method envelope.Method, run pipeline.RequestRun, extra *envelope.RequestExtra) {
	bgCtx := context.Background()
	resumed := pipeline.ResumeAsync(bgCtx, c.chain, run.LastNode, dir, method, run.Request, extra, c.tracer)

	var resp *envelope.Response
	var chainErr *envelope.HookChainError

	switch resumed.Kind {
	case pipeline.RequestAborted:
		resp, chainErr = c.completeRequest(bgCtx, dir, resumed.LastNode, method, run.Request, nil, resumed.Err, extra)
	case pipeline.RequestResponded:
		resp, chainErr = c.completeRequest(bgCtx, dir, resumed.LastNode, method, resumed.Request, resumed.Response, nil, extra)
	case pipeline.RequestFinished:
		resp, chainErr = c.forwardAndRespond(bgCtx, dir, resumed.LastNode, method, resumed.Request, extra)
	case pipeline.RequestContinuedAsync:
		// A background leg that itself suspends again: chain to another
		// tracked continuation rather than blocking this one.
		c.tasks.spawn(func() {
			c.runAsyncContinuation(dir, method, resumed, extra)
		})
		return
	}

	if run.Callback != nil {
		run.Callback(resp, chainErr)
	}
}

// forwardAndRespond performs spec.md §4.5 steps 5-8: forward req to the
// outbound transport (or synthesize CodeNoUpstreamTransport), annotate the
// reply, and run the paired response pipeline.
func (c *Context) forwardAndRespond(
	ctx context.Context,
	dir hookchain.Direction,
	lastNode *hookchain.Node,
	method envelope.Method,
	req *envelope.Request,
	extra *envelope.RequestExtra,
) (*envelope.Response, *envelope.HookChainError) {
	outboundSide := outboundSideFor(dir)
	outboundTransport := c.transportForSide(outboundSide)

	var resp *envelope.Response
	var chainErr *envelope.HookChainError

	if outboundTransport == nil {
		chainErr = envelope.NewHookChainError(
			envelope.CodeNoUpstreamTransport,
			"No client transport connected; request cannot be forwarded",
			nil,
		)
	} else {
		resp, chainErr = c.sendAndAwait(ctx, outboundSide, outboundTransport, req)
	}

	return c.completeRequest(ctx, dir, lastNode, method, req, resp, chainErr, extra)
}

// completeRequest anotates a not-yet-finalized reply and runs the paired
// response pipeline starting at lastNode (spec.md §4.5 steps 6-7).
func (c *Context) completeRequest(
	ctx context.Context,
	dir hookchain.Direction,
	lastNode *hookchain.Node,
	method envelope.Method,
	req *envelope.Request,
	resp *envelope.Response,
	chainErr *envelope.HookChainError,
	extra *envelope.RequestExtra,
) (*envelope.Response, *envelope.HookChainError) {
	outboundSessionID := c.sessionIDFor(outboundSideFor(dir))
	if resp != nil {
		if annotated, err := c.annotateResponse(resp, outboundSessionID); err == nil {
			resp = annotated
		}
	}

	run := pipeline.RunResponse(ctx, c.chain, lastNode, dir, method, req, resp, chainErr, extra, c.tracer)
	return run.Response, run.Err
}

// sendAndAwait forwards req over t and blocks until the correlated reply
// arrives, ctx is cancelled, or the transport fails to send.
func (c *Context) sendAndAwait(
	ctx context.Context,
	side correlationSide,
	t transport.Contract,
	req *envelope.Request,
) (*envelope.Response, *envelope.HookChainError) {
	raw, err := envelope.EncodeRequest(req)
	if err != nil {
		return nil, envelope.Normalize(err)
	}

	ch := c.corr.register(side, req.ID)

	if err := t.Send(ctx, raw); err != nil {
		c.corr.unregister(side, req.ID)
		return nil, envelope.Normalize(err)
	}

	select {
	case result := <-ch:
		return result.resp, result.err
	case <-ctx.Done():
		c.corr.unregister(side, req.ID)
		return nil, envelope.NewHookChainError(envelope.CodeNoUpstreamTransport, "cancelled", nil)
	}
}

// handleNotification drives one inbound notification through the one-way
// pipeline and forwards it, annotated with _meta, to the outbound side
// (spec.md §4.4, §4.5 step 2'). meta carries the inbound transport's
// auth/HTTP context, if any, attached to RequestExtra unmodified.
func (c *Context) handleNotification(ctx context.Context, dir hookchain.Direction, note *envelope.Notification, meta *envelope.InboundMeta) {
	extra := &envelope.RequestExtra{SessionID: c.sessionIDFor(inboundSideFor(dir))}
	if meta != nil {
		extra.AuthInfo = meta.AuthInfo
		extra.RequestInfo = meta.RequestInfo
	}
	run := pipeline.RunNotification(ctx, c.chain, startNodeFor(c.chain, dir), dir, note, extra, c.tracer)
	if run.Kind == pipeline.NotificationDropped {
		return
	}

	outboundTransport := c.transportForSide(outboundSideFor(dir))
	if outboundTransport == nil {
		return
	}

	outbound := run.Notification
	if annotated, err := c.annotateNotification(outbound, c.sessionIDFor(outboundSideFor(dir))); err == nil {
		outbound = annotated
	}

	raw, err := envelope.EncodeNotification(outbound)
	if err != nil {
		c.reportInternalError("EncodeNotification", apperrors.ErrInternal, err)
		return
	}
	if err := outboundTransport.Send(ctx, raw); err != nil {
		c.reportInternalError("ForwardNotification", apperrors.ErrInternal, err)
	}
}

func (c *Context) deliverResponse(ctx context.Context, side correlationSide, resp *envelope.Response) {
	if resp == nil {
		return
	}
	t := c.transportForSide(side)
	if t == nil {
		return
	}
	raw, err := envelope.EncodeResponse(resp)
	if err != nil {
		c.reportInternalError("EncodeResponse", apperrors.ErrInternal, err)
		return
	}
	if err := t.Send(ctx, raw); err != nil {
		c.reportInternalError("DeliverResponse", apperrors.ErrInternal, err)
	}
}

func (c *Context) deliverFinal(ctx context.Context, side correlationSide, id any, resp *envelope.Response, chainErr *envelope.HookChainError) {
	if chainErr != nil {
		c.replyError(ctx, side, id, chainErr)
		return
	}
	if resp == nil {
		return
	}
	cloned := *resp
	cloned.ID = id
	c.deliverResponse(ctx, side, &cloned)
}

func (c *Context) replyError(ctx context.Context, side correlationSide, id any, chainErr *envelope.HookChainError) {
	c.logger.Error("passthrough: request failed", "error", chainErr, "id", id)
	resp := &envelope.Response{JSONRPC: envelope.JSONRPCVersion, ID: id, Error: chainErr.ToWireError()}
	c.deliverResponse(ctx, side, resp)
}

func (c *Context) sessionIDFor(side correlationSide) string {
	t := c.transportForSide(side)
	if t == nil {
		return ""
	}
	return t.SessionID()
}

func inboundSideFor(dir hookchain.Direction) correlationSide {
	if dir == hookchain.Upstream {
		return sideClient
	}
	return sideServer
}

func outboundSideFor(dir hookchain.Direction) correlationSide {
	if dir == hookchain.Upstream {
		return sideServer
	}
	return sideClient
}

func startNodeFor(chain *hookchain.Chain, dir hookchain.Direction) *hookchain.Node {
	if dir == hookchain.Upstream {
		return chain.Tail()
	}
	return chain.Head()
}
