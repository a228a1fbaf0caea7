package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Message is one conversational turn handed to a provider.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request captures the normalized model input produced by the agents.
type Request struct {
	// Role names the logical caller ("clarifier", "router", "section:swot").
	// Providers ignore it; it labels logs, metrics and mock scripts.
	Role         string    `json:"role"`
	Instructions string    `json:"instructions"` // System prompt
	Messages     []Message `json:"messages"`
	// JSON asks the provider for a single JSON object when it supports a
	// structured output mode.
	JSON   bool `json:"json,omitempty"`
	Stream bool `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name         string `json:"name"`
	Provider     string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsJSON bool   `json:"supports_json"`
}

// Model is the minimal interface required by the agents to drive generation.
// Implementations emit zero or more partial chunks followed by exactly one
// final Response, or a single error. Both channels are closed when done.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Transcriber converts recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ErrEmptyResponse is returned by Complete when the model produced no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Complete drains a Generate call and returns the final text. Partial chunks
// are concatenated when the provider streams without a final aggregate.
func Complete(ctx context.Context, m Model, req Request) (string, *TokenUsage, error) {
	out, errCh := m.Generate(ctx, req)
	var (
		partial strings.Builder
		final   *Response
	)
	for out != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case r, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			resp := r
			final = &resp
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", nil, err
			}
		}
	}
	text := partial.String()
	var usage *TokenUsage
	if final != nil {
		text = final.Text
		usage = final.Usage
	}
	if strings.TrimSpace(text) == "" {
		return "", usage, ErrEmptyResponse
	}
	return text, usage, nil
}

// MockModel is a lightweight in‑memory Model useful for tests and offline runs.
// Responses are scripted per request role; a role like "section:swot" falls
// back to the script for "section" when it has none of its own.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string][]string
	errs      map[string]error
	handler   func(Request) (string, error)
	calls     []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider, SupportsJSON: true},
		responses: make(map[string][]string),
		errs:      make(map[string]error),
	}
}

// AddResponse queues a canned completion for a role. Queued responses are
// consumed in order; the last one keeps being returned.
func (m *MockModel) AddResponse(role, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[role] = append(m.responses[role], response)
}

// SetError makes every call for role fail with err. A nil err clears it.
func (m *MockModel) SetError(role string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, role)
		return
	}
	m.errs[role] = err
}

// SetHandler installs a function consulted before any scripted response.
// Returning an empty string with a nil error falls through to the script.
func (m *MockModel) SetHandler(fn func(Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Calls returns a snapshot of all requests received.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount counts requests whose role equals role or starts with role+":".
func (m *MockModel) CallCount(role string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Role == role || strings.HasPrefix(c.Role, role+":") {
			n++
		}
	}
	return n
}

func (m *MockModel) respond(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	keys := []string{req.Role}
	if i := strings.Index(req.Role, ":"); i > 0 {
		keys = append(keys, req.Role[:i])
	}
	for _, k := range keys {
		if err, ok := m.errs[k]; ok {
			return "", err
		}
	}
	if m.handler != nil {
		if text, err := m.handler(req); err != nil || text != "" {
			return text, err
		}
	}
	for _, k := range keys {
		q := m.responses[k]
		if len(q) == 0 {
			continue
		}
		text := q[0]
		if len(q) > 1 {
			m.responses[k] = q[1:]
		}
		return text, nil
	}

	var last string
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	if len(last) > 200 {
		last = last[:200]
	}
	return fmt.Sprintf("I am using an offline fallback. Received: %s", last), nil
}

// Generate implements Model; emits optional streaming chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		full, err := m.respond(req)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream {
			for _, word := range strings.SplitAfter(full, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: word}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, FinishReason: "stop"}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
