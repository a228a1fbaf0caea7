package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/model"
)

// WorkplanQuestion closes every drafted workplan.
const WorkplanQuestion = "Does this workplan look complete and accurate? Reply `yes` to proceed or describe the changes you'd like."

// Canned confirming-stage replies.
const (
	ConfirmReply = "Great! I will start researching now."
	UnclearReply = "Happy to refine the plan. Let me know if anything should change before I begin."
)

// PlannerOptions configures a Planner.
type PlannerOptions struct {
	Prompts *Prompts
	Logger  logging.Logger
	// MaxHistoryMessages bounds the chat tail sent with each request.
	MaxHistoryMessages int
}

// Planner runs the conversational part of the pipeline: scope clarification
// and workplan drafting.
type Planner struct {
	llm        model.Model
	prompts    *Prompts
	logger     logging.Logger
	maxHistory int
}

// NewPlanner creates a planner backed by llm.
func NewPlanner(llm model.Model, optFns ...func(o *PlannerOptions)) (*Planner, error) {
	opts := PlannerOptions{
		Logger:             logging.NoOpLogger{},
		MaxHistoryMessages: 20,
	}
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
	return &Planner{
		llm:        llm,
		prompts:    opts.Prompts,
		logger:     opts.Logger,
		maxHistory: opts.MaxHistoryMessages,
	}, nil
}

// Clarification is the outcome of one clarification turn.
type Clarification struct {
	Reply         string
	Scope         core.Scope
	NeedsMoreInfo bool
}

type clarifierPayload struct {
	AssistantReply string     `json:"assistant_reply"`
	ScopeUpdates   core.Scope `json:"scope_updates"`
}

// Clarify merges whatever the latest message reveals about the brief into
// scope and produces the next clarifying reply. Explicit "field: value"
// pairs in the message are applied even when the model is unavailable; a
// model failure degrades to a deterministic question for the missing fields.
func (p *Planner) Clarify(ctx context.Context, scope core.Scope, history []core.Message, message string) (Clarification, error) {
	scope = scope.Merge(ExtractScope(message))

	data := map[string]any{
		"Scope":   scopeText(scope),
		"Missing": scope.Missing(),
		"Message": message,
	}
	system, user, err := render(p.prompts.Clarifier, data)
	if err != nil {
		return Clarification{}, fmt.Errorf("render clarifier prompt: %w", err)
	}

	msgs := append(historyMessages(history, p.maxHistory), model.Message{Role: core.RoleUser, Content: user})
	text, err := call(ctx, p.llm, p.logger, model.Request{
		Role:         "clarifier",
		Instructions: system,
		Messages:     msgs,
		JSON:         true,
	})
	if err != nil {
		return Clarification{
			Reply:         MissingFieldsReply(scope),
			Scope:         scope,
			NeedsMoreInfo: !scope.Complete(),
		}, err
	}

	var payload clarifierPayload
	if derr := model.DecodeJSON(text, &payload); derr != nil {
		p.logger.Debug("Clarifier returned prose", "error", derr)
		return Clarification{Reply: strings.TrimSpace(text), Scope: scope, NeedsMoreInfo: !scope.Complete()}, nil
	}

	scope = scope.Merge(payload.ScopeUpdates)
	reply := strings.TrimSpace(payload.AssistantReply)
	if reply == "" {
		reply = MissingFieldsReply(scope)
	}
	// Completeness is decided on the merged fields, not on needs_more_info.
	return Clarification{Reply: reply, Scope: scope, NeedsMoreInfo: !scope.Complete()}, nil
}

// DraftWorkplan writes the phased workplan for a complete scope. Feedback, if
// set, asks for a revision of the previous draft. The returned text always
// ends with WorkplanQuestion.
func (p *Planner) DraftWorkplan(ctx context.Context, scope core.Scope, history []core.Message, feedback string) (string, error) {
	data := map[string]any{
		"Scope":    scopeText(scope),
		"Feedback": strings.TrimSpace(feedback),
	}
	system, user, err := render(p.prompts.Workplanner, data)
	if err != nil {
		return "", fmt.Errorf("render workplanner prompt: %w", err)
	}
	msgs := append(historyMessages(history, p.maxHistory), model.Message{Role: core.RoleUser, Content: user})
	text, err := call(ctx, p.llm, p.logger, model.Request{
		Role:         "workplanner",
		Instructions: system,
		Messages:     msgs,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, WorkplanQuestion) {
		text += "\n\n" + WorkplanQuestion
	}
	return text, nil
}

// MissingFieldsReply asks for the fields still missing from scope.
func MissingFieldsReply(scope core.Scope) string {
	missing := scope.Missing()
	switch len(missing) {
	case 0:
		return "Thanks, I have everything I need to draft the workplan."
	case 1:
		return fmt.Sprintf("Thanks! Could you also share the %s?", missing[0])
	default:
		return fmt.Sprintf("Thanks! To scope the research I still need the %s and %s.",
			strings.Join(missing[:len(missing)-1], ", "), missing[len(missing)-1])
	}
}

// Decision is the reading of a reply to a drafted workplan.
type Decision int

const (
	DecisionUnclear Decision = iota
	DecisionConfirm
	DecisionRevise
)

func (d Decision) String() string {
	switch d {
	case DecisionConfirm:
		return "confirm"
	case DecisionRevise:
		return "revise"
	default:
		return "unclear"
	}
}

var (
	reviseRe  = keywordRegexp("change", "revise", "add", "update", "modify", "edit", "adjust")
	confirmRe = keywordRegexp("go", "start", "looks good", "ok", "okay", "yes", "proceed",
		"ready", "yep", "yeah", "sure", "do it", "sounds good", "approved")
	holdRe = keywordRegexp("wait", "hold", "not yet", "stop", "pause")
	wordRe = regexp.MustCompile(`[a-z']+`)

	negations = map[string]bool{
		"no": true, "not": true, "never": true, "don't": true, "dont": true,
		"cannot": true, "can't": true, "won't": true, "isn't": true, "aren't": true,
	}
)

func keywordRegexp(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// negated reports whether one of the two words before offset is a negation.
// A leading "no" only counts right before the keyword when strict is set, so
// "no problem, go ahead" stays affirmative and "no, add X" stays a revision.
func negated(t string, offset int, strict bool) bool {
	words := wordRe.FindAllString(t[:offset], -1)
	for i := 1; i <= 2 && i <= len(words); i++ {
		w := words[len(words)-i]
		if w == "no" && (!strict || i > 1) {
			continue
		}
		if negations[w] {
			return true
		}
	}
	return false
}

func mentions(re *regexp.Regexp, t string, strict bool) bool {
	for _, loc := range re.FindAllStringIndex(t, -1) {
		if !negated(t, loc[0], strict) {
			return true
		}
	}
	return false
}

// Classify reads a reply to the workplan. Change requests win over
// affirmatives, so "yes, but add a pricing phase" is a revision. Negated
// keywords ("not ready", "don't start") and hold words are never a
// confirmation.
func Classify(text string) Decision {
	t := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	switch {
	case mentions(reviseRe, t, false):
		return DecisionRevise
	case holdRe.MatchString(t):
		return DecisionUnclear
	case mentions(confirmRe, t, true):
		return DecisionConfirm
	default:
		return DecisionUnclear
	}
}

var scopeFieldRe = regexp.MustCompile(`(?im)\b(company|region|persona|buyer persona|product|product focus|depth|research depth|tone|voice|notes)\s*[:=]\s*([^;\n]+)`)

// ExtractScope picks explicit "field: value" pairs out of free text. Pairs may
// be separated by newlines or semicolons.
func ExtractScope(text string) core.Scope {
	var s core.Scope
	for _, m := range scopeFieldRe.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(strings.TrimRight(m[2], " .,"))
		if v == "" {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "company":
			s.Company = v
		case "region":
			s.Region = v
		case "persona", "buyer persona":
			s.Persona = v
		case "product", "product focus":
			s.Product = v
		case "depth", "research depth":
			s.Depth = v
		case "tone", "voice":
			s.Tone = v
		case "notes":
			s.Notes = v
		}
	}
	return s
}

func scopeText(s core.Scope) string {
	var b strings.Builder
	for _, f := range [][2]string{
		{"company", s.Company},
		{"region", s.Region},
		{"persona", s.Persona},
		{"product", s.Product},
		{"depth", s.Depth},
		{"tone", s.Tone},
		{"notes", s.Notes},
	} {
		v := f[1]
		if v == "" {
			v = "(unknown)"
		}
		fmt.Fprintf(&b, "- %s: %s\n", f[0], v)
	}
	return strings.TrimRight(b.String(), "\n")
}
