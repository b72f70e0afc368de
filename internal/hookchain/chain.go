package hookchain

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrDuplicateName is returned by Append/Prepend when a hook with the same
// Name() is already registered in the chain (spec.md §3, hook names are
// addressable and expected to be unique within a chain).
var ErrDuplicateName = errors.New("hookchain: duplicate hook name")

// Node is one position in the chain. A Node's identity is stable for as
// long as it remains in the chain: Chain.Next/Prev always resolve to the
// same neighbors until an Append/Prepend/Remove mutates the chain, and a
// caller may safely hold a *Node across hook invocations as an opaque
// traversal cursor (spec.md §9).
type Node struct {
	hook Hook
	prev *Node
	next *Node
}

// Hook returns the hook held at this node.
func (n *Node) Hook() Hook {
	if n == nil {
		return nil
	}
	return n.hook
}

// ChainOption configures optional Chain behavior.
type ChainOption func(*Chain)

// WithLogger injects a structured logger for chain mutation diagnostics.
// When omitted, log output is silently discarded.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// Chain is a doubly-linked list of Hooks supporting forward (head -> tail)
// and reverse (tail -> head) traversal (spec.md §3 "HookChain", §4.1).
//
// A Chain is built once at startup and is not expected to be mutated
// concurrently with traversal; the mutex below guards against accidental
// concurrent Append/Remove calls (e.g. from a hot-reloading config loader)
// rather than against traversal, which only ever reads immutable pointers.
type Chain struct {
	mu     sync.RWMutex
	head   *Node
	tail   *Node
	length int
	byName map[string]*Node
	logger *slog.Logger
}

// NewChain builds a chain from hooks in order, head first.
func NewChain(hooks []Hook, opts ...ChainOption) (*Chain, error) {
	c := &Chain{byName: make(map[string]*Node, len(hooks))}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 100}))
	}
	for _, h := range hooks {
		if _, err := c.Append(h); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// discard is an io.Writer that drops everything written to it, used to back
// the default no-op logger without importing io/ioutil-style helpers.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Head returns the first node, or nil if the chain is empty.
func (c *Chain) Head() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

// Tail returns the last node, or nil if the chain is empty.
func (c *Chain) Tail() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tail
}

// Next returns n's successor toward the tail, or nil at the tail.
func (c *Chain) Next(n *Node) *Node {
	if n == nil {
		return nil
	}
	return n.next
}

// Prev returns n's predecessor toward the head, or nil at the head.
func (c *Chain) Prev(n *Node) *Node {
	if n == nil {
		return nil
	}
	return n.prev
}

// Forward advances n toward the tail. Pipelines use this for Downstream
// traversal (spec.md §4.5, "Downstream -> Upstream" runs forward).
func (c *Chain) Forward(n *Node) *Node { return c.Next(n) }

// Backward advances n toward the head. Pipelines use this for Upstream
// traversal (spec.md §4.5, "Upstream -> Downstream" runs in reverse).
func (c *Chain) Backward(n *Node) *Node { return c.Prev(n) }

// Length reports the number of hooks currently in the chain.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.length
}

// IsEmpty reports whether the chain has no hooks.
func (c *Chain) IsEmpty() bool {
	return c.Length() == 0
}

// Append adds hook at the tail and returns its new Node.
func (c *Chain) Append(hook Hook) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[hook.Name()]; exists {
		return nil, ErrDuplicateName
	}

	n := &Node{hook: hook}
	if c.tail == nil {
		c.head, c.tail = n, n
	} else {
		n.prev = c.tail
		c.tail.next = n
		c.tail = n
	}
	c.length++
	c.byName[hook.Name()] = n
	c.logger.Debug("hook appended", "hook", hook.Name(), "length", c.length)
	return n, nil
}

// Prepend adds hook at the head and returns its new Node.
func (c *Chain) Prepend(hook Hook) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[hook.Name()]; exists {
		return nil, ErrDuplicateName
	}

	n := &Node{hook: hook}
	if c.head == nil {
		c.head, c.tail = n, n
	} else {
		n.next = c.head
		c.head.prev = n
		c.head = n
	}
	c.length++
	c.byName[hook.Name()] = n
	c.logger.Debug("hook prepended", "hook", hook.Name(), "length", c.length)
	return n, nil
}

// RemoveFirst removes and returns the head hook, or nil if the chain is
// empty.
func (c *Chain) RemoveFirst() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.head == nil {
		return nil
	}
	n := c.head
	c.unlink(n)
	return n.hook
}

// RemoveLast removes and returns the tail hook, or nil if the chain is
// empty.
func (c *Chain) RemoveLast() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tail == nil {
		return nil
	}
	n := c.tail
	c.unlink(n)
	return n.hook
}

// unlink removes n from the list and decrements length. Caller must hold
// c.mu.
func (c *Chain) unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
	c.length--
	delete(c.byName, n.hook.Name())
	c.logger.Debug("hook removed", "hook", n.hook.Name(), "length", c.length)
}

// FindByName returns the node holding the hook with the given name, or nil
// if no such hook is in the chain.
func (c *Chain) FindByName(name string) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byName[name]
}

// ToArray returns the chain's hooks in forward (head -> tail) order.
func (c *Chain) ToArray() []Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Hook, 0, c.length)
	for n := c.head; n != nil; n = n.next {
		out = append(out, n.hook)
	}
	return out
}

// ToReverseArray returns the chain's hooks in reverse (tail -> head) order.
func (c *Chain) ToReverseArray() []Hook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Hook, 0, c.length)
	for n := c.tail; n != nil; n = n.prev {
		out = append(out, n.hook)
	}
	return out
}
