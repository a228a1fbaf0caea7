package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/model"
)

func newPlanner(t *testing.T, m model.Model) *Planner {
	t.Helper()
	p, err := NewPlanner(m)
	require.NoError(t, err)
	return p
}

func TestPlanner_ClarifyMergesScopeUpdates(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("clarifier", "```json\n"+`{"assistant_reply":"Got it, which region?","scope_updates":{"company":"Acme","persona":"CHRO"},"needs_more_info":true}`+"\n```")

	c, err := newPlanner(t, m).Clarify(context.Background(), core.Scope{}, nil, "Research Acme for a CHRO")
	require.NoError(t, err)

	assert.Equal(t, "Got it, which region?", c.Reply)
	assert.Equal(t, "Acme", c.Scope.Company)
	assert.Equal(t, "CHRO", c.Scope.Persona)
	assert.True(t, c.NeedsMoreInfo)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSON)
	assert.Contains(t, calls[0].Messages[len(calls[0].Messages)-1].Content, "Research Acme for a CHRO")
}

func TestPlanner_ClarifyCompleteBriefInOneMessage(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("clarifier", `{"assistant_reply":"Thanks, that covers it.","scope_updates":{},"needs_more_info":true}`)

	brief := "company: Acme; region: EMEA; persona: CHRO; product: talent intelligence; depth: Deep Dive; tone: executive briefing"
	c, err := newPlanner(t, m).Clarify(context.Background(), core.Scope{}, nil, brief)
	require.NoError(t, err)

	assert.False(t, c.NeedsMoreInfo)
	assert.Equal(t, "deep dive", c.Scope.Depth)
	assert.Equal(t, "executive briefing", c.Scope.Tone)
}

func TestPlanner_ClarifyProseReply(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("clarifier", "Which region should I focus on?")

	c, err := newPlanner(t, m).Clarify(context.Background(), core.Scope{Company: "Acme"}, nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Which region should I focus on?", c.Reply)
	assert.Equal(t, "Acme", c.Scope.Company)
}

func TestPlanner_ClarifyModelFailure(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetError("clarifier", errors.New("provider down"))

	c, err := newPlanner(t, m).Clarify(context.Background(), core.Scope{}, nil, "company: Acme")
	require.Error(t, err)
	assert.True(t, core.IsGenerationError(err))
	assert.Equal(t, "Acme", c.Scope.Company)
	assert.Contains(t, c.Reply, "region")
	assert.NotContains(t, c.Reply, "company")
}

func TestPlanner_DraftWorkplanEndsWithQuestion(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("workplanner", "Here is the workplan.\n\n**Phase 1: Discovery**")

	wp, err := newPlanner(t, m).DraftWorkplan(context.Background(), completeScope(), nil, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wp, "Here is the workplan."))
	assert.True(t, strings.HasSuffix(wp, WorkplanQuestion))
	assert.Equal(t, 1, strings.Count(wp, WorkplanQuestion))
}

func TestPlanner_DraftWorkplanKeepsExistingQuestion(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("workplanner", "Plan.\n\n"+WorkplanQuestion)

	wp, err := newPlanner(t, m).DraftWorkplan(context.Background(), completeScope(), nil, "add a pricing phase")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(wp, WorkplanQuestion))

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "add a pricing phase")
}

func TestPlanner_DraftWorkplanFailure(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("workplanner", "")

	_, err := newPlanner(t, m).DraftWorkplan(context.Background(), completeScope(), nil, "")
	assert.True(t, core.IsGenerationError(err))
}

func TestClassify(t *testing.T) {
	cases := map[string]Decision{
		"yes":                        DecisionConfirm,
		"Looks good, go ahead":       DecisionConfirm,
		"OK":                         DecisionConfirm,
		"sounds good to me":          DecisionConfirm,
		"please add a pricing phase": DecisionRevise,
		"yes but change phase 2":     DecisionRevise,
		"hmm, let me think":          DecisionUnclear,
		"what about the budget?":     DecisionUnclear,
		"goodness":                   DecisionUnclear,
		"the okapi is an animal":     DecisionUnclear,
		"addendum":                   DecisionUnclear,
		"No, don't start yet":        DecisionUnclear,
		"I'm not ready":              DecisionUnclear,
		"not ok, hold on":            DecisionUnclear,
		"please don't proceed":       DecisionUnclear,
		"I’m not quite ready":        DecisionUnclear,
		"yes, but wait a second":     DecisionUnclear,
		"no problem, go ahead":       DecisionConfirm,
		"don't change anything, go":  DecisionConfirm,
		"no, add a pricing phase":    DecisionRevise,
	}
	for text, want := range cases {
		assert.Equal(t, want, Classify(text), text)
	}
}

func TestExtractScope(t *testing.T) {
	s := ExtractScope("Company: Acme Corp.\nRegion = North America\nbuyer persona: VP Sales; product focus: CPQ; research depth: snapshot; voice: crisp")
	assert.Equal(t, core.Scope{
		Company: "Acme Corp",
		Region:  "North America",
		Persona: "VP Sales",
		Product: "CPQ",
		Depth:   "snapshot",
		Tone:    "crisp",
	}, s)

	assert.Equal(t, core.Scope{}, ExtractScope("Tell me about Acme"))
}

func TestMissingFieldsReply(t *testing.T) {
	assert.Equal(t, "Thanks! Could you also share the tone?", MissingFieldsReply(core.Scope{
		Company: "a", Region: "b", Persona: "c", Product: "d", Depth: "e",
	}))
	assert.Contains(t, MissingFieldsReply(core.Scope{}), "company, region")
	assert.Contains(t, MissingFieldsReply(completeScope()), "everything I need")
}
