package rpc

import (
	"fmt"
)

// maxRawExcerpt caps how much of an unexpected message is echoed into an error.
const maxRawExcerpt = 512

// TransportError reports a connection-level failure: dial, read, write, or a dropped socket.
// It is terminal for the run; nothing in this package retries.
type TransportError struct {
	Op       string // "dial", "write", "read"
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("websocket %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a reply rippled sent that cannot be used: an explicit error response or
// an envelope of unexpected shape.
type ProtocolError struct {
	Command string // Command the reply answered
	Code    string // rippled error code, if any
	Message string // rippled error_message, or a description of what was wrong
	Raw     string // Excerpt of the offending message, for unexpected shapes
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("rippled %s: %s", e.Command, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("rippled %s: %s (%s)", e.Command, e.Message, e.Code)
	}
	if e.Raw != "" {
		msg += ": " + e.Raw
	}
	return msg
}

func excerpt(raw []byte) string {
	if len(raw) <= maxRawExcerpt {
		return string(raw)
	}
	return string(raw[:maxRawExcerpt]) + "..."
}
