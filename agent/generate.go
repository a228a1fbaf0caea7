package agent

import (
	"context"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/metrics"
	"github.com/hupe1980/accountplan/model"
)

// call runs one completion for role and wraps any failure, including blank
// output, in a core.GenerationError.
func call(ctx context.Context, llm model.Model, logger logging.Logger, req model.Request) (string, error) {
	text, usage, err := model.Complete(ctx, llm, req)
	var prompt, completion int
	if usage != nil {
		prompt, completion = usage.PromptTokens, usage.CompletionTokens
	}
	if err != nil {
		metrics.RecordModelCall(req.Role, "error", prompt, completion)
		logger.Warn("Model call failed", "role", req.Role, "model", llm.Info().Name, "error", err)
		return "", &core.GenerationError{Role: req.Role, Err: err}
	}
	metrics.RecordModelCall(req.Role, "ok", prompt, completion)
	logger.Debug("Model call completed", "role", req.Role, "prompt_tokens", prompt, "completion_tokens", completion)
	return text, nil
}

// historyMessages converts the tail of a chat history into model messages.
func historyMessages(history []core.Message, max int) []model.Message {
	if max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}
	out := make([]model.Message, 0, len(history))
	for _, m := range history {
		out = append(out, model.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
