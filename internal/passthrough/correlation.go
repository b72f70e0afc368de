package passthrough

import (
	"fmt"
	"sync"

	"github.com/jamesprial/mcp-passthrough/internal/envelope"
)

// correlationSide names the transport a pending outbound request expects
// its reply to arrive on.
type correlationSide string

const (
	sideServer correlationSide = "server"
	sideClient correlationSide = "client"
)

type pendingKey struct {
	side correlationSide
	id   string
}

type pendingResult struct {
	resp *envelope.Response
	err  *envelope.HookChainError
}

// correlator tracks outbound requests awaiting a correlated reply, keyed by
// the transport side expected to deliver it and the JSON-RPC id (spec.md
// §4.5, "Request/response correlation"). A single mutex guards the map, per
// §5's "single mutex" recommendation.
type correlator struct {
	mu      sync.Mutex
	pending map[pendingKey]chan pendingResult
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[pendingKey]chan pendingResult)}
}

func idToKeyString(id any) string {
	return fmt.Sprintf("%v", id)
}

// register records a pending correlation and returns the channel its
// resolution will be delivered on. The channel is buffered so resolve
// never blocks on a caller that abandoned the wait (e.g. due to context
// cancellation).
func (c *correlator) register(side correlationSide, id any) chan pendingResult {
	ch := make(chan pendingResult, 1)
	c.mu.Lock()
	c.pending[pendingKey{side, idToKeyString(id)}] = ch
	c.mu.Unlock()
	return ch
}

// unregister removes a pending correlation without resolving it, used when
// the outbound send itself failed.
func (c *correlator) unregister(side correlationSide, id any) {
	c.mu.Lock()
	delete(c.pending, pendingKey{side, idToKeyString(id)})
	c.mu.Unlock()
}

// resolve completes a pending correlation, if one exists, and reports
// whether a matching entry was found.
func (c *correlator) resolve(side correlationSide, id any, result pendingResult) bool {
	key := pendingKey{side, idToKeyString(id)}
	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result
	return true
}

// abandon resolves every pending correlation on side with a transport-
// closed error (spec.md §4.5, "Cascading close").
func (c *correlator) abandon(side correlationSide, err *envelope.HookChainError) {
	c.mu.Lock()
	var chans []chan pendingResult
	for key, ch := range c.pending {
		if key.side == side {
			chans = append(chans, ch)
			delete(c.pending, key)
		}
	}
	c.mu.Unlock()
	for _, ch := range chans {
		ch <- pendingResult{err: err}
	}
}
