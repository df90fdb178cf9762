package rpc

import (
	"strings"
)

// NormalizeEndpoint turns a bare host (e.g. "s2.ripple.com") into a websocket URL,
// defaulting to a TLS websocket. Endpoints that already carry ws:// or wss:// are returned as-is.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return DefaultEndpoint
	}
	lower := strings.ToLower(endpoint)
	if strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://") {
		return endpoint
	}
	return "wss://" + endpoint
}
