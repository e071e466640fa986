package mcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// PipeTransport speaks the protocol to a child process over line-delimited
// JSON on stdin/stdout. The child is spawned lazily on the first Roundtrip
// and is always killed by Close, whatever the exchange outcome was.
type PipeTransport struct {
	command string
	args    []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan *response
	started bool
	closed  bool
}

// NewPipeTransport builds a pipe transport running command with args.
func NewPipeTransport(command string, args ...string) *PipeTransport {
	return &PipeTransport{command: command, args: args}
}

func (t *PipeTransport) Name() string { return "stdio-pipe" }

func (t *PipeTransport) InlineSessionToken() bool { return true }

func (t *PipeTransport) Roundtrip(ctx context.Context, req request, _ string) (*response, string, error) {
	if err := t.ensureStarted(); err != nil {
		return nil, "", err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}
	t.mu.Lock()
	stdin := t.stdin
	t.mu.Unlock()
	if _, err := stdin.Write(append(payload, '\n')); err != nil {
		return nil, "", fmt.Errorf("write to %s: %w", t.command, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case resp, ok := <-t.lines:
			if !ok {
				return nil, "", fmt.Errorf("%s exited before responding", t.command)
			}
			if terminalFor(req.Method, resp) {
				return resp, "", nil
			}
			// Progress or notification line, keep waiting.
		}
	}
}

// terminalFor decides whether a message ends the exchange for the given
// method. Errors are always terminal; a handshake answer is recognized by a
// capabilities field, an invocation answer by a content field.
func terminalFor(method string, resp *response) bool {
	if resp.Error != nil {
		return true
	}
	if len(resp.Result) == 0 {
		return false
	}
	var probe struct {
		Capabilities json.RawMessage `json:"capabilities"`
		Content      json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(resp.Result, &probe); err != nil {
		return false
	}
	switch method {
	case methodInitialize:
		return len(probe.Capabilities) > 0
	case methodToolsCall:
		return len(probe.Content) > 0
	}
	return false
}

func (t *PipeTransport) ensureStarted() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("pipe transport already closed")
	}
	if t.started {
		return nil
	}

	cmd := exec.Command(t.command, t.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", t.command, err)
	}

	lines := make(chan *response, 8)
	go readResponses(stdout, lines)
	go logStderr(t.command, stderr)

	t.cmd = cmd
	t.stdin = stdin
	t.lines = lines
	t.started = true
	log.Debug().Str("command", t.command).Int("pid", cmd.Process.Pid).Msg("spawned pipe server")
	return nil
}

// readResponses parses stdout lines into protocol messages. Non-JSON lines
// are diagnostic noise from the child and are skipped.
func readResponses(stdout io.Reader, out chan<- *response) {
	defer close(out)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		out <- &resp
	}
}

func logStderr(command string, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Debug().Str("command", command).Str("line", scanner.Text()).Msg("pipe server stderr")
	}
}

// Close terminates the child process. It is safe to call on a transport that
// never started and safe to call more than once.
func (t *PipeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if !t.started {
		return nil
	}

	t.stdin.Close()
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		t.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn().Str("command", t.command).Msg("pipe server did not exit after kill")
	}
	return nil
}
