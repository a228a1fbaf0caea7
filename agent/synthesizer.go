package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/metrics"
	"github.com/hupe1980/accountplan/model"
)

// SynthesizerOptions configures a Synthesizer.
type SynthesizerOptions struct {
	Prompts *Prompts
	Logger  logging.Logger
	// Stream requests token streaming from the provider. The final text is
	// the same either way.
	Stream bool
}

// Synthesizer writes one plan section from the research bundle.
type Synthesizer struct {
	llm     model.Model
	prompts *Prompts
	logger  logging.Logger
	stream  bool
}

// NewSynthesizer creates a synthesizer backed by llm.
func NewSynthesizer(llm model.Model, optFns ...func(o *SynthesizerOptions)) (*Synthesizer, error) {
	opts := SynthesizerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Prompts == nil {
		p, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		opts.Prompts = p
	}
	return &Synthesizer{llm: llm, prompts: opts.Prompts, logger: opts.Logger, stream: opts.Stream}, nil
}

// SectionInput is everything a single section call depends on.
type SectionInput struct {
	Section core.Section
	Bundle  *core.Bundle
	Scope   core.Scope
	// Prior holds already written sections. Only those preceding Section in
	// plan order are quoted in the prompt unless Revision is set.
	Prior map[core.Section]string
	// Instruction is optional user direction, used by regeneration.
	Instruction string
	// Revision quotes every other section of Prior, later ones included.
	Revision bool
}

type priorSection struct {
	Title   string
	Content string
}

// Synthesize produces the text of one section. Failures, including empty
// output, are returned as *core.GenerationError.
func (s *Synthesizer) Synthesize(ctx context.Context, in SectionInput) (string, error) {
	role := "section:" + in.Section.String()
	if !in.Section.Valid() {
		return "", &core.GenerationError{Role: role, Err: core.ErrInvalidSection}
	}
	bundleJSON, err := json.MarshalIndent(in.Bundle, "", "  ")
	if err != nil {
		return "", &core.GenerationError{Role: role, Err: fmt.Errorf("encode bundle: %w", err)}
	}

	var prior []priorSection
	for _, sec := range core.Sections() {
		if sec == in.Section {
			if !in.Revision {
				break
			}
			continue
		}
		if text := strings.TrimSpace(in.Prior[sec]); text != "" {
			prior = append(prior, priorSection{Title: sec.Title(), Content: text})
		}
	}

	company := in.Scope.Company
	if in.Bundle != nil && in.Bundle.Company != "" {
		company = in.Bundle.Company
	}
	system, user, err := render(s.prompts.Section, map[string]any{
		"Company":     company,
		"Scope":       scopeText(in.Scope),
		"Brief":       strings.TrimSpace(s.prompts.Briefs[in.Section]),
		"Bundle":      string(bundleJSON),
		"Prior":       prior,
		"Persona":     in.Scope.Tone,
		"Depth":       in.Scope.Depth,
		"Instruction": strings.TrimSpace(in.Instruction),
	})
	if err != nil {
		return "", &core.GenerationError{Role: role, Err: fmt.Errorf("render section prompt: %w", err)}
	}

	start := time.Now()
	text, err := call(ctx, s.llm, s.logger, model.Request{
		Role:         role,
		Instructions: system,
		Messages:     []model.Message{{Role: core.RoleUser, Content: user}},
		Stream:       s.stream,
	})
	if err != nil {
		metrics.RecordSection(in.Section.String(), "error", time.Since(start))
		return "", err
	}
	metrics.RecordSection(in.Section.String(), "ok", time.Since(start))
	return strings.TrimSpace(text), nil
}
