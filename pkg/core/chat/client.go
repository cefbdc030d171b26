// Package chat implements the streaming chat client: one conversational
// turn at a time against the tutor endpoint, with the assistant reply
// streamed back incrementally.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/priyalabs/tutor-lite/pkg/core"
	"github.com/priyalabs/tutor-lite/pkg/core/sse"
	"github.com/priyalabs/tutor-lite/pkg/core/types"
)

// StartGreeting is the session-start message sent on StartSession.
const StartGreeting = "Namaste! I'm ready to start my learning session. Please introduce yourself and help me learn."

// State is the client's stream lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateSending   State = "sending"   // request issued, no delta applied yet
	StateStreaming State = "streaming" // at least one delta applied
)

// Callbacks are invoked from the stream goroutine as events arrive.
// All callbacks are optional. Callbacks never run while the client's
// lock is held, so they may call back into the client.
type Callbacks struct {
	// OnDelta receives the accumulated assistant text after each
	// applied content delta, in strict arrival order.
	OnDelta func(fullText string)

	// OnMessageComplete fires exactly once per stream that produced at
	// least one content delta and was not cancelled, with the final
	// accumulated text.
	OnMessageComplete func(fullText string)

	// OnError receives RateLimited, QuotaExhausted, and
	// TransportFailure conditions. Cancellation is never reported.
	OnError func(err error)
}

// Client owns the conversation history and at most one in-flight
// stream. A new Send implicitly cancels and replaces a prior active
// stream; ownership is tracked by a generation counter so a stale
// stream's late events are discarded rather than racing the new owner.
type Client struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger

	studentName     string
	topic           string
	confidenceLevel int

	cb Callbacks

	mu         sync.Mutex
	messages   []types.Message
	generation uint64
	cancel     context.CancelFunc
	state      State
}

// NewClient creates a chat client for the given streaming endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages returns a snapshot of the conversation history.
func (c *Client) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.CloneMessages(c.messages)
}

// State returns the current stream state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsLoading reports whether a turn is in flight.
func (c *Client) IsLoading() bool {
	s := c.State()
	return s == StateSending || s == StateStreaming
}

// IsStreaming reports whether deltas are arriving.
func (c *Client) IsStreaming() bool {
	return c.State() == StateStreaming
}

// Send issues one conversational turn. Blank input is a no-op. The
// user message is appended immediately along with an empty assistant
// placeholder that is refined in place as deltas arrive. Any prior
// in-flight stream is cancelled first.
func (c *Client) Send(ctx context.Context, userText string) {
	if strings.TrimSpace(userText) == "" {
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	gen := c.generation

	c.dropEmptyPlaceholderLocked()
	c.messages = append(c.messages, types.User(userText))
	history := types.CloneMessages(c.messages)
	c.messages = append(c.messages, types.Assistant(""))
	c.state = StateSending

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx, gen, history)
}

// StartSession sends the fixed session-start greeting.
func (c *Client) StartSession(ctx context.Context) {
	c.Send(ctx, StartGreeting)
}

// Cancel aborts the active stream, if any. Cancellation is
// cooperative: frames already decoded may still be applied, but no
// further network reads occur. Safe to call when idle.
func (c *Client) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ClearMessages cancels any active stream and empties the history.
func (c *Client) ClearMessages() {
	c.Cancel()
	c.mu.Lock()
	c.generation++
	c.messages = nil
	c.state = StateIdle
	c.mu.Unlock()
}

// dropEmptyPlaceholderLocked removes a dangling empty assistant
// message left behind by a superseded or cancelled stream.
func (c *Client) dropEmptyPlaceholderLocked() {
	if n := len(c.messages); n > 0 &&
		c.messages[n-1].Role == types.RoleAssistant &&
		c.messages[n-1].Content == "" {
		c.messages = c.messages[:n-1]
	}
}

func (c *Client) run(ctx context.Context, gen uint64, history []types.Message) {
	acc := new(strings.Builder)
	err := c.stream(ctx, gen, history, acc)
	c.finish(gen, acc.String(), err)
}

func (c *Client) stream(ctx context.Context, gen uint64, history []types.Message, acc *strings.Builder) error {
	body, err := json.Marshal(types.ChatRequest{
		Messages:        history,
		StudentName:     c.studentName,
		Topic:           c.topic,
		ConfidenceLevel: c.confidenceLevel,
	})
	if err != nil {
		return core.NewInvalidRequestError("encode chat request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return core.NewInvalidRequestError("build chat request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return core.NewCancelledError()
		}
		return core.NewTransportError("POST "+c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorResponse(resp)
	}

	parser := sse.NewParser(c.logger)
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if !c.applyFrames(gen, parser.Feed(buf[:n]), acc) {
				return core.NewCancelledError()
			}
			if parser.Done() {
				return nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				if !c.applyFrames(gen, parser.Flush(), acc) {
					return core.NewCancelledError()
				}
				return nil
			}
			if ctx.Err() != nil {
				return core.NewCancelledError()
			}
			return core.NewTransportError("read stream", readErr)
		}
	}
}

// applyFrames applies content deltas in arrival order to the
// placeholder message. It returns false when this stream has been
// superseded and must stop contributing.
func (c *Client) applyFrames(gen uint64, frames []sse.Frame, acc *strings.Builder) bool {
	for _, f := range frames {
		content := types.DeltaContent(f.Data)
		if content == "" {
			continue
		}
		acc.WriteString(content)
		fullText := acc.String()

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return false
		}
		c.state = StateStreaming
		if n := len(c.messages); n > 0 && c.messages[n-1].Role == types.RoleAssistant {
			c.messages[n-1].Content = fullText
		}
		onDelta := c.cb.OnDelta
		c.mu.Unlock()

		if onDelta != nil {
			onDelta(fullText)
		}
	}
	return true
}

func (c *Client) finish(gen uint64, accumulated string, err error) {
	c.mu.Lock()
	if gen != c.generation {
		// Superseded: the new owner already reset state and cleaned up.
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.cancel = nil

	switch {
	case err == nil && accumulated != "":
		// Keep the refined assistant message.
	case core.IsCancelled(err):
		// Effects up to the abort stay applied; an empty placeholder
		// is dropped so it never dangles.
		c.dropEmptyPlaceholderLocked()
	default:
		// Errored, or the stream produced zero content: retract the
		// placeholder rather than leaving it dangling.
		c.dropEmptyPlaceholderLocked()
	}
	cb := c.cb
	c.mu.Unlock()

	switch {
	case err == nil && accumulated != "":
		if cb.OnMessageComplete != nil {
			cb.OnMessageComplete(accumulated)
		}
	case err == nil || core.IsCancelled(err):
		// Empty stream or explicit abort: not a failure.
	default:
		c.logger.Warn("chat stream failed", "error", err)
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}
}

func decodeErrorResponse(resp *http.Response) error {
	var er types.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &er)
	msg := er.Error

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		if msg == "" {
			msg = "too many requests"
		}
		return core.NewRateLimitedError(msg, 0)
	case http.StatusPaymentRequired:
		if msg == "" {
			msg = "credits exhausted"
		}
		return core.NewQuotaExhaustedError(msg)
	default:
		if msg == "" {
			msg = "chat endpoint returned " + resp.Status
		}
		e := core.NewAPIError(msg)
		e.StatusCode = resp.StatusCode
		return e
	}
}
