// Package mcp implements the client side of the horoscope MCP protocol: the
// two-phase initialize/tools-call exchange over either a streaming HTTP
// connection or a subprocess pipe.
package mcp

import (
	"context"

	json "github.com/goccy/go-json"
)

// Protocol constants negotiated during the handshake.
const (
	ProtocolVersion = "2024-11-05"
	clientName      = "astrachat"
	clientVersion   = "1.0"

	methodInitialize = "initialize"
	methodToolsCall  = "tools/call"
)

// Session token header names accepted from the remote side. Either may carry
// the token; the body may embed it instead, and absence is not an error.
const (
	headerSessionID  = "mcp-session-id"
	headerSessionAlt = "x-mcp-session"
)

// request is the JSON-RPC style message envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is the message envelope coming back. A message carrying Error is
// always terminal.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// initResult is the decoded initialize payload. Capabilities presence is what
// identifies a handshake response on the pipe transport.
type initResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    json.RawMessage `json:"capabilities"`
	SessionID       string          `json:"sessionId"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

// callResult is the decoded tools/call payload.
type callResult struct {
	Content []contentItem `json:"content"`
	Text    string        `json:"text"`
	Message string        `json:"message"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutcomeKind classifies the terminal result of a tool call attempt.
type OutcomeKind string

const (
	KindSuccess        OutcomeKind = "success"
	KindProtocolError  OutcomeKind = "protocol_error"
	KindTransportError OutcomeKind = "transport_error"
	KindTimeout        OutcomeKind = "timeout"
)

// Outcome is the tagged result of one handshake-plus-invocation exchange.
// Downstream code switches on Kind and never re-probes response shapes.
type Outcome struct {
	Kind OutcomeKind

	// Success payload.
	Text         string
	SessionToken string

	// Protocol rejection.
	Code    int
	Message string

	// Transport failure or timeout.
	Err error
}

// Terminal transports both fail and succeed through this one interface.
// Roundtrip sends a single protocol message and blocks until a terminal
// response, transport failure, or ctx cancellation.
type Transport interface {
	// Name identifies the transport in logs and answer metadata.
	Name() string

	// Roundtrip exchanges one message. sessionToken, when non-empty, is
	// attached over the transport's own channel (HTTP header); transports
	// without such a channel report InlineSessionToken and receive the token
	// embedded in the call arguments instead. The returned string is a
	// session token surfaced by the transport itself, if any.
	Roundtrip(ctx context.Context, req request, sessionToken string) (*response, string, error)

	// InlineSessionToken reports whether the session token must be embedded
	// in the tool arguments rather than carried out-of-band.
	InlineSessionToken() bool

	// Close releases transport resources. For the pipe transport this
	// guarantees the child process is terminated; it must be called on every
	// exit path.
	Close() error
}
