package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Client runs the two-phase exchange against one transport: initialize to
// obtain a session token, then tools/call carrying that token. A Client is
// built per attempt; callers own the transport's lifetime via Close.
type Client struct {
	transport Transport
	timeout   time.Duration
}

// NewClient wraps a transport. timeout bounds the whole exchange when the
// caller's context carries no deadline of its own.
func NewClient(t Transport, timeout time.Duration) *Client {
	return &Client{transport: t, timeout: timeout}
}

// CallTool performs handshake then invocation and reduces every possible
// ending to a tagged Outcome. It never panics on malformed remote payloads.
// args is usually a map but may be a bare string for servers that take the
// argument positionally.
func (c *Client) CallTool(ctx context.Context, tool string, args any) Outcome {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token, out := c.initialize(ctx)
	if out != nil {
		return *out
	}

	callArgs := args
	if mapped, ok := args.(map[string]any); ok && c.transport.InlineSessionToken() && token != "" {
		withToken := make(map[string]any, len(mapped)+1)
		for k, v := range mapped {
			withToken[k] = v
		}
		withToken["sessionId"] = token
		callArgs = withToken
	}

	resp, _, err := c.transport.Roundtrip(ctx, request{
		JSONRPC: "2.0",
		ID:      2,
		Method:  methodToolsCall,
		Params: map[string]any{
			"name":      tool,
			"arguments": callArgs,
		},
	}, token)
	if err != nil {
		return classifyErr(ctx, err)
	}
	if resp.Error != nil {
		return Outcome{Kind: KindProtocolError, Code: resp.Error.Code, Message: resp.Error.Message}
	}

	text := extractText(resp.Result)
	if text == "" {
		return Outcome{Kind: KindProtocolError, Message: "empty tool result"}
	}
	log.Debug().
		Str("transport", c.transport.Name()).
		Str("tool", tool).
		Int("answer_len", len(text)).
		Msg("tool call succeeded")
	return Outcome{Kind: KindSuccess, Text: text, SessionToken: token}
}

// initialize runs phase one and resolves the session token: transport channel
// first, then a token embedded in the handshake body, then a locally
// synthesized one. Any well-formed result object is accepted.
func (c *Client) initialize(ctx context.Context) (string, *Outcome) {
	resp, headerToken, err := c.transport.Roundtrip(ctx, request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  methodInitialize,
		Params: map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    clientName,
				"version": clientVersion,
			},
		},
	}, "")
	if err != nil {
		out := classifyErr(ctx, err)
		return "", &out
	}
	if resp.Error != nil {
		return "", &Outcome{Kind: KindProtocolError, Code: resp.Error.Code, Message: resp.Error.Message}
	}

	token := headerToken
	if token == "" {
		var init initResult
		if err := json.Unmarshal(resp.Result, &init); err == nil {
			token = init.SessionID
		}
	}
	if token == "" {
		token = fmt.Sprintf("session_%d", time.Now().UnixMilli())
		log.Debug().Str("transport", c.transport.Name()).Msg("no session token surfaced, synthesized local token")
	}
	return token, nil
}

// extractText flattens a tools/call result into answer text. Content entries
// are preferred; flat text or message fields cover looser servers.
func extractText(raw json.RawMessage) string {
	var result callResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return strings.TrimSpace(string(raw))
	}
	parts := make([]string, 0, len(result.Content))
	for _, item := range result.Content {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	if result.Text != "" {
		return result.Text
	}
	return result.Message
}

func classifyErr(ctx context.Context, err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return Outcome{Kind: KindTimeout, Err: err}
	}
	return Outcome{Kind: KindTransportError, Err: err}
}
