// Package gemini provides model.Model and model.Transcriber implementations
// backed by the Google Gen AI SDK (Gemini API backend).
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/accountplan/model"
	"google.golang.org/genai"
)

// transcribePrompt instructs the model to return only the spoken words.
const transcribePrompt = "Transcribe the user's speech exactly as text."

// Options configures the Gemini adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	APIKey          string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Model wraps the Gemini generateContent API.
type Model struct {
	client *genai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:           "gemini-2.5-flash",
		Temperature:     0.2,
		MaxOutputTokens: 4096,
	}
}

// NewModel creates a client for the Gemini API backend. Without an explicit
// APIKey the SDK reads GEMINI_API_KEY / GOOGLE_API_KEY.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}
	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func buildContents(msgs []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := buildContents(req.Messages)
		cfg := m.buildConfig(req)

		if req.Stream {
			var text strings.Builder
			for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, cfg) {
				if err != nil {
					errCh <- fmt.Errorf("gemini streaming error: %w", err)
					return
				}
				if t := chunk.Text(); t != "" {
					text.WriteString(t)
					out <- model.Response{Partial: true, Text: t}
				}
			}
			out <- model.Response{Text: text.String(), FinishReason: "stop"}
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}
		r := model.Response{Text: resp.Text(), FinishReason: "stop"}
		if u := resp.UsageMetadata; u != nil {
			r.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}
		out <- r
	}()

	return out, errCh
}

// Transcribe implements model.Transcriber by sending the audio inline.
func (m *Model) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcribePrompt),
			genai.NewPartFromBytes(audio, mimeType),
		}, genai.RoleUser),
	}
	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", model.ErrEmptyResponse
	}
	return text, nil
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsJSON: true}
}
