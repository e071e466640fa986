package mcp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// StreamTransport speaks the protocol over HTTP POST with a streamed,
// SSE-framed response body. Each Roundtrip is one independent POST.
type StreamTransport struct {
	url    string
	apiKey string
	client *http.Client
}

// NewStreamTransport builds a streaming HTTP transport for the given
// endpoint. apiKey may be empty for unauthenticated servers.
func NewStreamTransport(url, apiKey string, timeout time.Duration) *StreamTransport {
	return &StreamTransport{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (t *StreamTransport) Name() string { return "streaming-http" }

func (t *StreamTransport) InlineSessionToken() bool { return false }

func (t *StreamTransport) Close() error { return nil }

func (t *StreamTransport) Roundtrip(ctx context.Context, req request, sessionToken string) (*response, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	if sessionToken != "" {
		httpReq.Header.Set(headerSessionID, sessionToken)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("%s %s: %w", req.Method, t.url, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, "", fmt.Errorf("%s: HTTP %d: %s", req.Method, httpResp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	token := httpResp.Header.Get(headerSessionID)
	if token == "" {
		token = httpResp.Header.Get(headerSessionAlt)
	}

	resp, err := scanStream(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", req.Method, err)
	}
	return resp, token, nil
}

// scanStream reads SSE frames and returns as soon as a terminal message
// (result or error) arrives, without waiting for the body to close. Keepalive
// blanks, [DONE] sentinels, and non-data lines are skipped. A body that is a
// plain JSON object rather than an event stream is parsed whole at EOF.
func scanStream(body io.Reader) (*response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var raw bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		raw.WriteString(line)
		raw.WriteByte('\n')

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var resp response
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			continue
		}
		if resp.Error != nil || len(resp.Result) > 0 {
			return &resp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	var resp response
	if err := json.Unmarshal(bytes.TrimSpace(raw.Bytes()), &resp); err == nil {
		if resp.Error != nil || len(resp.Result) > 0 {
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("stream ended without a terminal frame")
}
