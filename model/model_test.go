package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Model = (*MockModel)(nil)

func TestComplete_ScriptedResponsesByRole(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("section", "generic section")
	m.AddResponse("section:swot", "first swot")
	m.AddResponse("section:swot", "second swot")

	ctx := context.Background()
	text, _, err := Complete(ctx, m, Request{Role: "section:swot"})
	require.NoError(t, err)
	assert.Equal(t, "first swot", text)

	text, _, err = Complete(ctx, m, Request{Role: "section:swot"})
	require.NoError(t, err)
	assert.Equal(t, "second swot", text)

	// last scripted response repeats
	text, _, err = Complete(ctx, m, Request{Role: "section:swot"})
	require.NoError(t, err)
	assert.Equal(t, "second swot", text)

	text, _, err = Complete(ctx, m, Request{Role: "section:news"})
	require.NoError(t, err)
	assert.Equal(t, "generic section", text)

	assert.Equal(t, 4, m.CallCount("section"))
	assert.Equal(t, 3, m.CallCount("section:swot"))
}

func TestComplete_Streaming(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("clarifier", "hello streaming world")

	text, _, err := Complete(context.Background(), m, Request{Role: "clarifier", Stream: true})
	require.NoError(t, err)
	assert.Equal(t, "hello streaming world", text)
}

func TestComplete_ErrorsAndFallback(t *testing.T) {
	m := NewMockModel("mock", "mock")
	boom := errors.New("provider down")
	m.SetError("section", boom)

	_, _, err := Complete(context.Background(), m, Request{Role: "section:overview"})
	assert.ErrorIs(t, err, boom)

	m.SetError("section", nil)
	text, _, err := Complete(context.Background(), m, Request{
		Role:     "section:overview",
		Messages: []Message{{Role: "user", Content: "ping"}},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Received: ping")
}

func TestComplete_EmptyResponse(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("router", "   ")
	_, _, err := Complete(context.Background(), m, Request{Role: "router"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_HandlerSeesRequest(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.SetHandler(func(req Request) (string, error) {
		if req.JSON {
			return `{"ok":true}`, nil
		}
		return "", nil
	})
	m.AddResponse("workplanner", "plan")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	text, _, err := Complete(ctx, m, Request{Role: "clarifier", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)

	text, _, err = Complete(ctx, m, Request{Role: "workplanner"})
	require.NoError(t, err)
	assert.Equal(t, "plan", text)
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Reply string `json:"assistant_reply"`
	}
	tests := []string{
		`{"assistant_reply":"hi"}`,
		"```json\n{\"assistant_reply\":\"hi\"}\n```",
		"Sure! Here you go: {\"assistant_reply\":\"hi\"} Thanks.",
	}
	for _, in := range tests {
		out.Reply = ""
		require.NoError(t, DecodeJSON(in, &out), in)
		assert.Equal(t, "hi", out.Reply)
	}
	assert.ErrorIs(t, DecodeJSON("no json here", &out), ErrNoJSONObject)
}
