// Package remote calls specialist agents over the JSON-RPC protocol and turns
// every outcome, including transport failures, into a models.InvocationResult.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/internal/version"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

const (
	// DefaultTimeout bounds a single invocation.
	DefaultTimeout = 30 * time.Second
	// DefaultWindow is the number of recent turns sent with each question.
	DefaultWindow = 6

	maxBodyBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration
	// Window is the number of recent turns sent as context. Zero means
	// DefaultWindow; a negative value sends the full history.
	Window int
	// Stream requests message/stream instead of message/send.
	Stream bool
	// HTTPClient overrides the transport. It should not set its own Timeout.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client invokes remote specialists.
type Client struct {
	http    *http.Client
	timeout time.Duration
	window  int
	stream  bool
	logger  zerolog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		window:  opts.Window,
		stream:  opts.Stream,
		logger:  opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.window == 0 {
		c.window = DefaultWindow
	}
	return c
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Invoke sends question to the specialist at targetURL and waits for the full
// answer. It never returns an error: failures are reported in the result.
func (c *Client) Invoke(ctx context.Context, targetURL, conversationID, question string, recent []models.Turn) models.InvocationResult {
	started := time.Now()
	var sb strings.Builder
	err := c.call(ctx, targetURL, conversationID, question, recent, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})

	result := models.InvocationResult{
		Question:  question,
		StartedAt: started,
		Latency:   time.Since(started),
	}
	if err != nil {
		f := classify(err)
		result.Failure = &f
		c.logger.Debug().
			Str("url", targetURL).
			Str("conversation_id", conversationID).
			Str("failure", f.String()).
			Dur("latency", result.Latency).
			Msg("invocation failed")
		return result
	}

	result.Success = true
	result.Text = sb.String()
	c.logger.Debug().
		Str("url", targetURL).
		Str("conversation_id", conversationID).
		Int("chars", len(result.Text)).
		Dur("latency", result.Latency).
		Msg("invocation succeeded")
	return result
}

// Stream sends question and delivers the answer as it arrives. The caller
// must drain the chunk channel. The error channel receives at most one error,
// a *CallError, and is closed when the stream completes.
func (c *Client) Stream(ctx context.Context, targetURL, conversationID, question string, recent []models.Turn) (<-chan string, <-chan error) {
	chunkCh := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		err := c.call(ctx, targetURL, conversationID, question, recent, func(chunk string) error {
			select {
			case chunkCh <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			f := classify(err)
			errCh <- &CallError{Failure: f, Err: err}
		}
	}()

	return chunkCh, errCh
}

// Discover fetches the agent card published by the specialist at baseURL.
func (c *Client) Discover(ctx context.Context, baseURL string) (protocol.AgentCard, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cardURL := strings.TrimRight(baseURL, "/") + protocol.AgentCardPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return protocol.AgentCard{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return protocol.AgentCard{}, fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return protocol.AgentCard{}, fmt.Errorf("fetch agent card: status %d", resp.StatusCode)
	}
	var card protocol.AgentCard
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&card); err != nil {
		return protocol.AgentCard{}, fmt.Errorf("decode agent card: %w", err)
	}
	return card, nil
}

// call performs one request and feeds answer text to emit.
func (c *Client) call(ctx context.Context, targetURL, conversationID, question string, recent []models.Turn, emit func(string) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := protocol.MethodSend
	if c.stream {
		method = protocol.MethodStream
	}
	body, err := json.Marshal(protocol.Request{
		JSONRPC: protocol.Version,
		ID:      json.RawMessage(`"` + uuid.NewString() + `"`),
		Method:  method,
		Params: protocol.Params{
			ConversationID: conversationID,
			Message:        protocol.TextMessage(uuid.NewString(), string(models.RoleUser), question),
			Context:        toWire(Window(recent, c.window)),
		},
	})
	if err != nil {
		return protocolErr("marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return protocolErr("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("User-Agent", version.UserAgent())
	if id := protocol.RequestID(ctx); id != "" {
		req.Header.Set(protocol.RequestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return unreachable(ctx, c.timeout, err)
	}
	defer resp.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		answered := false
		err := readEvents(ctx, resp.Body, func(chunk string) error {
			if strings.TrimSpace(chunk) != "" {
				answered = true
			}
			return emit(chunk)
		})
		if err != nil {
			if ctx.Err() != nil {
				return unreachable(ctx, c.timeout, err)
			}
			return err
		}
		if !answered {
			return protocolErr("empty answer")
		}
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return unreachable(ctx, c.timeout, err)
	}
	text, err := decodeResponse(resp.StatusCode, raw)
	if err != nil {
		return err
	}
	return emit(text)
}

func decodeResponse(status int, raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", protocolErr("empty response body (status %d)", status)
	}

	var env protocol.Response
	if err := json.Unmarshal(raw, &env); err != nil {
		if status != http.StatusOK {
			return "", protocolErr("unexpected status %d", status)
		}
		return "", protocolErr("malformed response: %v", err)
	}
	if env.Error != nil {
		return "", &CallError{Failure: models.Failure{
			Kind:     models.FailureRemote,
			Category: env.Error.Category(),
			Message:  env.Error.Message,
		}}
	}
	if status != http.StatusOK {
		return "", protocolErr("unexpected status %d", status)
	}
	if env.JSONRPC != protocol.Version || env.Result == nil {
		return "", protocolErr("invalid JSON-RPC envelope")
	}
	text := env.Result.Message.Text()
	if strings.TrimSpace(text) == "" {
		return "", protocolErr("empty answer")
	}
	return text, nil
}

// Window returns the last n turns, always including the most recent user turn
// even when it falls outside the window. n <= 0 returns every turn.
func Window(turns []models.Turn, n int) []models.Turn {
	if n <= 0 || len(turns) <= n {
		return append([]models.Turn(nil), turns...)
	}
	start := len(turns) - n
	out := make([]models.Turn, 0, n+1)
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != models.RoleUser {
			continue
		}
		if i < start {
			out = append(out, turns[i])
		}
		break
	}
	return append(out, turns[start:]...)
}

func toWire(turns []models.Turn) []protocol.ContextTurn {
	if len(turns) == 0 {
		return nil
	}
	out := make([]protocol.ContextTurn, len(turns))
	for i, t := range turns {
		out[i] = protocol.ContextTurn{Role: string(t.Role), Text: t.Text, Timestamp: t.Timestamp}
	}
	return out
}

func unreachable(ctx context.Context, timeout time.Duration, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		msg = fmt.Sprintf("timed out after %s", timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		msg = "cancelled"
	}
	return &CallError{Failure: models.Failure{Kind: models.FailureUnreachable, Message: msg}, Err: err}
}

func protocolErr(format string, args ...any) error {
	return &CallError{Failure: models.Failure{Kind: models.FailureProtocol, Message: fmt.Sprintf(format, args...)}}
}
