package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hupe1980/accountplan/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ model.Model = (*Model)(nil)

func TestModel_GenerateJSONMode(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"search_tasks\":[]}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	client := openai.NewClient(
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	m := NewModelFromClient(&client)

	text, usage, err := model.Complete(context.Background(), m, model.Request{
		Role:         "router",
		Instructions: "route",
		Messages:     []model.Message{{Role: "user", Content: "workplan"}},
		JSON:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"search_tasks":[]}`, text)
	require.NotNil(t, usage)
	assert.Equal(t, 15, usage.TotalTokens)

	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "response_format missing: %v", body)
	assert.Equal(t, "json_object", format["type"])

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestModel_GenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithBaseURL(srv.URL+"/v1/"), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	_, _, err := model.Complete(context.Background(), m, model.Request{Role: "clarifier"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-4.1"
		o.APIKey = "k"
	})
	assert.Equal(t, model.Info{Name: "gpt-4.1", Provider: "openai", SupportsJSON: true}, m.Info())
}
