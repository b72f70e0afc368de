package hookchain

import "github.com/jamesprial/mcp-passthrough/internal/envelope"

// Coverage summarizes which method families and directions a chain has at
// least one hook willing to handle. This is a supplemental introspection
// surface (not required by spec.md's core contract) useful for admin
// diagnostics: "which methods does this chain actually participate in?"
// without probing every hook at request time.
type Coverage struct {
	Downstream map[envelope.Method]bool
	Upstream   map[envelope.Method]bool

	DownstreamNotification bool
	UpstreamNotification   bool
}

// MethodCoverage walks every hook in the chain once and returns the set of
// method families/directions with at least one non-zero handler.
func (c *Chain) MethodCoverage() Coverage {
	cov := Coverage{
		Downstream: map[envelope.Method]bool{},
		Upstream:   map[envelope.Method]bool{},
	}
	for _, hook := range c.ToArray() {
		h := hook.Handlers()
		for method, mh := range h.Downstream {
			if !mh.IsZero() {
				cov.Downstream[method] = true
			}
		}
		for method, mh := range h.Upstream {
			if !mh.IsZero() {
				cov.Upstream[method] = true
			}
		}
		if h.DownstreamNotification != nil {
			cov.DownstreamNotification = true
		}
		if h.UpstreamNotification != nil {
			cov.UpstreamNotification = true
		}
	}
	return cov
}
