// Package transport defines the Contract a wire adapter implements so a
// passthrough.Context can own it uniformly on either side of the proxy.
//
// Concrete adapters live in subpackages:
//
//	internal/transport/httptransport  # chi-based HTTP/NDJSON downstream adapter
//	internal/transport/wstransport     # coder/websocket upstream adapter
//
// Both implement Contract and are otherwise unaware of the hook chain,
// pipelines, or passthrough correlation logic above them.
package transport
