package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/accountplan/agent"
	"github.com/hupe1980/accountplan/artifact"
	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/internal/testutil"
	"github.com/hupe1980/accountplan/model"
	"github.com/hupe1980/accountplan/render"
	"github.com/hupe1980/accountplan/session"
	"github.com/hupe1980/accountplan/tool"
)

type harness struct {
	eng       *Engine
	model     *model.MockModel
	fakes     map[core.Channel]*testutil.FakeTool
	sessions  *session.InMemoryStore
	artifacts *artifact.InMemoryStore
}

func newHarness(t *testing.T, m *model.MockModel, fn func(ft *testutil.FakeTool), optFns ...func(o *Options)) *harness {
	t.Helper()
	if m == nil {
		m = testutil.PipelineModel()
	}
	reg, fakes := testutil.Registry(fn)
	h := &harness{
		model:     m,
		fakes:     fakes,
		sessions:  session.NewInMemoryStore(time.Hour),
		artifacts: artifact.NewInMemoryStore(),
	}
	eng, err := New(m, append([]func(o *Options){func(o *Options) {
		o.SessionStore = h.sessions
		o.ArtifactStore = h.artifacts
		o.Registry = reg
	}}, optFns...)...)
	require.NoError(t, err)
	h.eng = eng
	return h
}

func (h *harness) chat(t *testing.T, id, text string) Reply {
	t.Helper()
	r, err := h.eng.HandleMessage(context.Background(), id, text)
	require.NoError(t, err)
	return r
}

// toReviewing drives a fresh session through brief and confirmation.
func (h *harness) toReviewing(t *testing.T, id string) Reply {
	t.Helper()
	h.chat(t, id, testutil.Brief)
	r := h.chat(t, id, "yes, start the research")
	require.Equal(t, core.StageReviewing, r.Stage)
	return r
}

func (h *harness) seed(t *testing.T, sess *core.Session) {
	t.Helper()
	require.NoError(t, h.sessions.Save(context.Background(), sess))
}

func TestEngine_EmptyMessage(t *testing.T) {
	h := newHarness(t, nil, nil)
	_, err := h.eng.HandleMessage(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestEngine_IncompleteBriefAsksForMissingFields(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetError("clarifier", errors.New("model down"))
	h := newHarness(t, m, nil)

	r := h.chat(t, "s1", "company: Acme")
	assert.Equal(t, core.StagePlanning, r.Stage)
	assert.Contains(t, r.Message, "still need")
	assert.Empty(t, r.Workplan)

	rep, err := h.eng.Report(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rep.Scope.Company)
	assert.Len(t, rep.Messages, 2)
}

func TestEngine_FullBriefDraftsWorkplanInOneMessage(t *testing.T) {
	h := newHarness(t, nil, nil)

	r := h.chat(t, "s1", testutil.Brief)
	assert.Equal(t, core.StageConfirmingPlan, r.Stage)
	assert.NotEmpty(t, r.Workplan)
	assert.True(t, strings.HasSuffix(r.Message, agent.WorkplanQuestion))
	assert.Equal(t, 1, h.model.CallCount("workplanner"))
}

func TestEngine_ConfirmingPlan(t *testing.T) {
	t.Run("unclear reply keeps waiting", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.chat(t, "s1", testutil.Brief)

		r := h.chat(t, "s1", "hmm, let me think")
		assert.Equal(t, core.StageConfirmingPlan, r.Stage)
		assert.Equal(t, agent.UnclearReply, r.Message)
		assert.Zero(t, testutil.TotalCalls(h.fakes))
	})

	t.Run("negated reply does not start research", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.chat(t, "s1", testutil.Brief)

		r := h.chat(t, "s1", "No, don't start yet - I'm not ready")
		assert.Equal(t, core.StageConfirmingPlan, r.Stage)
		assert.Equal(t, agent.UnclearReply, r.Message)
		assert.Zero(t, h.model.CallCount("router"))
		assert.Zero(t, testutil.TotalCalls(h.fakes))
	})

	t.Run("revision redrafts", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.chat(t, "s1", testutil.Brief)

		r := h.chat(t, "s1", "yes, but add a pricing phase")
		assert.Equal(t, core.StageConfirmingPlan, r.Stage)
		assert.Equal(t, 2, h.model.CallCount("workplanner"))
		assert.Zero(t, testutil.TotalCalls(h.fakes))
	})
}

func TestEngine_ConfirmRunsResearchAndAnalysis(t *testing.T) {
	h := newHarness(t, nil, nil)
	r := h.toReviewing(t, "s1")

	assert.Equal(t, PlanReadyReply, r.Message)
	assert.Equal(t, 1, r.PlanVersion)
	assert.Equal(t, len(core.MandatoryChannels()), testutil.TotalCalls(h.fakes))

	rep, err := h.eng.Report(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, rep.Plan)
	for _, s := range core.Sections() {
		assert.Equal(t, s.Title()+" draft", rep.Plan.Sections[s])
	}
	assert.Len(t, rep.Sources, 3*len(core.MandatoryChannels()))

	prog, err := h.eng.Progress(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, prog.Activity, len(rep.Tasks))
	for _, ev := range prog.Activity {
		assert.True(t, ev.Terminal(), ev.Agent)
		assert.Equal(t, core.ActivityComplete, ev.Status)
	}
	lines := make([]string, 0, len(prog.Progress))
	for _, p := range prog.Progress {
		lines = append(lines, p.Message)
	}
	assert.Contains(t, lines, "🧭 Translating the workplan into research runs…")
	assert.Contains(t, lines, "🚀 Launching research agents…")
	assert.Contains(t, lines, "🗂️ Account plan ready.")
}

func TestEngine_FailingAdaptersStillReachReviewing(t *testing.T) {
	h := newHarness(t, nil, func(ft *testutil.FakeTool) {
		ft.Err = errors.New("upstream 503")
	})
	h.toReviewing(t, "s1")

	rep, err := h.eng.Report(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, rep.Plan)
	assert.Empty(t, rep.Sources)

	prog, err := h.eng.Progress(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, prog.Activity, len(core.MandatoryChannels()))
	for _, ev := range prog.Activity {
		assert.Equal(t, core.ActivityError, ev.Status)
	}
}

func TestEngine_DoubleTriggerRunsOneSweep(t *testing.T) {
	h := newHarness(t, nil, func(ft *testutil.FakeTool) {
		ft.Delay = 50 * time.Millisecond
	})
	ctx := context.Background()
	h.chat(t, "s1", testutil.Brief)

	var wg sync.WaitGroup
	wg.Add(1)
	var first Reply
	go func() {
		defer wg.Done()
		first, _ = h.eng.HandleMessage(ctx, "s1", "yes")
	}()

	require.Eventually(t, func() bool {
		p, err := h.eng.Progress(ctx, "s1")
		return err == nil && p.Stage == core.StageResearching
	}, 2*time.Second, 5*time.Millisecond)

	second, err := h.eng.HandleMessage(ctx, "s1", "yes")
	require.NoError(t, err)
	assert.True(t, second.Busy)
	assert.Empty(t, second.Message)

	wg.Wait()
	assert.Equal(t, core.StageReviewing, first.Stage)
	assert.Equal(t, len(core.MandatoryChannels()), testutil.TotalCalls(h.fakes))
	assert.Equal(t, 1, h.model.CallCount("router"))

	prog, err := h.eng.Progress(ctx, "s1")
	require.NoError(t, err)
	ready := 0
	for _, p := range prog.Progress {
		if p.Message == "📦 Research bundle ready for analysis." {
			ready++
		}
	}
	assert.Equal(t, 1, ready)
}

func TestEngine_LightStageWaitsForSlot(t *testing.T) {
	h := newHarness(t, nil, nil)
	sl := h.eng.slot("s1")
	sl.mu.Lock()

	done := make(chan Reply, 1)
	go func() {
		r, _ := h.eng.HandleMessage(context.Background(), "s1", testutil.Brief)
		done <- r
	}()

	select {
	case <-done:
		t.Fatal("message ran while the slot was held")
	case <-time.After(50 * time.Millisecond):
	}
	h.eng.release("s1", sl)

	select {
	case r := <-done:
		assert.False(t, r.Busy)
		assert.Equal(t, core.StageConfirmingPlan, r.Stage)
	case <-time.After(2 * time.Second):
		t.Fatal("message never ran")
	}
}

func TestEngine_ResumesAfterSectionFailure(t *testing.T) {
	m := testutil.PipelineModel()
	var failed atomic.Bool
	m.SetHandler(func(req model.Request) (string, error) {
		id, ok := strings.CutPrefix(req.Role, "section:")
		if !ok {
			return "", nil
		}
		if id == "swot" && failed.CompareAndSwap(false, true) {
			return "", errors.New("quota exceeded")
		}
		s, err := core.ParseSection(id)
		if err != nil {
			return "", err
		}
		return s.Title() + " draft", nil
	})
	h := newHarness(t, m, nil)

	h.chat(t, "s1", testutil.Brief)
	r := h.chat(t, "s1", "yes")
	assert.Equal(t, core.StageAnalyzing, r.Stage)
	assert.Contains(t, r.Message, core.SectionSWOT.Title())

	prog, err := h.eng.Progress(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, prog.LastError)

	r = h.chat(t, "s1", "please retry")
	assert.Equal(t, core.StageReviewing, r.Stage)
	assert.Equal(t, 1, r.PlanVersion)

	assert.Equal(t, 1, m.CallCount("section:overview"))
	assert.Equal(t, 2, m.CallCount("section:swot"))
	assert.Equal(t, 1, m.CallCount("router"))
	assert.Equal(t, len(core.MandatoryChannels()), testutil.TotalCalls(h.fakes))
}

func TestEngine_RegenerateBumpsOnlyTarget(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, testutil.NewSessionBuilder("s1").Scope(testutil.FullScope()).Plan().Version(3).Build())

	res, err := h.eng.Regenerate(context.Background(), "s1", "swot", "focus on healthcare AI")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Version)
	assert.Equal(t, "SWOT Analysis draft", res.Content)
	assert.False(t, res.Busy)

	rep, err := h.eng.Report(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StageReviewing, rep.Stage)
	assert.Equal(t, 4, rep.Plan.Version)
	for _, s := range core.Sections() {
		if s == core.SectionSWOT {
			continue
		}
		assert.Equal(t, s.String()+" v1", rep.Plan.Sections[s])
	}

	calls := h.model.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[len(calls)-1].Messages[0].Content, "focus on healthcare AI")
}

func TestEngine_RegenerateFailureKeepsVersion(t *testing.T) {
	m := testutil.PipelineModel()
	m.SetError("section", errors.New("quota exceeded"))
	h := newHarness(t, m, nil)
	h.seed(t, testutil.NewSessionBuilder("s1").Scope(testutil.FullScope()).Plan().Version(3).Build())

	res, err := h.eng.Regenerate(context.Background(), "s1", "swot", "")
	require.Error(t, err)
	assert.True(t, core.IsGenerationError(err))
	assert.Equal(t, 3, res.Version)

	rep, err := h.eng.Report(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StageReviewing, rep.Stage)
	assert.Equal(t, 3, rep.Plan.Version)
	assert.Equal(t, "swot v1", rep.Plan.Sections[core.SectionSWOT])
}

func TestEngine_RegenerateRejects(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.eng.Regenerate(ctx, "s1", "pricing", "")
	assert.ErrorIs(t, err, core.ErrInvalidSection)

	_, err = h.eng.Regenerate(ctx, "s1", "swot", "")
	assert.ErrorIs(t, err, core.ErrPlanNotReady)
	assert.Zero(t, h.model.CallCount("section"))
}

func TestEngine_RegenerateWhileBusyIsNoOp(t *testing.T) {
	h := newHarness(t, nil, nil)
	sess := testutil.NewSessionBuilder("s1").Scope(testutil.FullScope()).Plan().Version(2).Build()
	sess.Stage = core.StageEditing
	h.seed(t, sess)

	sl := h.eng.slot("s1")
	sl.mu.Lock()
	res, err := h.eng.Regenerate(context.Background(), "s1", "swot", "")
	h.eng.release("s1", sl)

	require.NoError(t, err)
	assert.True(t, res.Busy)
	assert.Equal(t, 2, res.Version)
	assert.Zero(t, h.model.CallCount("section"))
}

func TestEngine_ReviewingChat(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.seed(t, testutil.NewSessionBuilder("s1").Scope(testutil.FullScope()).Plan().Build())

	r := h.chat(t, "s1", "thanks, looks great")
	assert.Equal(t, ReviewingReply, r.Message)
	assert.Equal(t, 1, r.PlanVersion)

	r = h.chat(t, "s1", "Please update the swot section to focus on healthcare")
	assert.Equal(t, "I've updated the swot section. Anything else?", r.Message)
	assert.Equal(t, core.StageReviewing, r.Stage)
	assert.Equal(t, 2, r.PlanVersion)
}

func TestEngine_RecoversInterruptedEditing(t *testing.T) {
	h := newHarness(t, nil, nil)
	sess := testutil.NewSessionBuilder("s1").Scope(testutil.FullScope()).Plan().Build()
	sess.Stage = core.StageEditing
	h.seed(t, sess)

	r := h.chat(t, "s1", "hello again")
	assert.Equal(t, core.StageReviewing, r.Stage)
	assert.Equal(t, ReviewingReply, r.Message)
}

func TestEngine_Callbacks(t *testing.T) {
	h := newHarness(t, nil, nil)

	var (
		mu          sync.Mutex
		transitions []string
		ready       int
	)
	h.eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackOnStageChange, func(_ context.Context, cc *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, cc.From.String()+">"+cc.To.String())
		return nil
	}))
	h.eng.Callbacks().RegisterCallback(NewFunctionCallback(CallbackOnPlanReady, func(_ context.Context, cc *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		ready++
		assert.Equal(t, 1, cc.Plan.Version)
		return errors.New("ignored")
	}))

	h.toReviewing(t, "s1")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"planning>confirming_plan",
		"confirming_plan>researching",
		"researching>analyzing",
		"analyzing>reviewing",
	}, transitions)
	assert.Equal(t, 1, ready)
}

func TestEngine_ExportCachesPerVersion(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	_, err := h.eng.Export(ctx, "s1", render.FormatHTML)
	assert.ErrorIs(t, err, core.ErrPlanNotReady)

	h.toReviewing(t, "s1")

	out, err := h.eng.Export(ctx, "s1", render.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "plan-v1.html", out.FileName)
	assert.Contains(t, string(out.Data), "Account Plan: Acme")

	names, err := h.artifacts.List(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan-v1.html"}, names)

	// A cached document is served as stored.
	require.NoError(t, h.artifacts.Save(ctx, "s1", "plan-v1.html", []byte("cached")))
	out, err = h.eng.Export(ctx, "s1", render.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(out.Data))

	_, err = h.eng.Regenerate(ctx, "s1", "news", "")
	require.NoError(t, err)
	out, err = h.eng.Export(ctx, "s1", render.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "plan-v2.md", out.FileName)
	assert.True(t, strings.HasPrefix(string(out.Data), "# Account Plan: Acme"))
}

func TestEngine_Reset(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	h.toReviewing(t, "s1")
	_, err := h.eng.Export(ctx, "s1", render.FormatHTML)
	require.NoError(t, err)

	require.NoError(t, h.eng.Reset(ctx, "s1"))

	prog, err := h.eng.Progress(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StagePlanning, prog.Stage)
	assert.Empty(t, prog.Progress)

	names, err := h.artifacts.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Zero(t, h.eng.slotCount())
}

func TestEngine_SlotsArePruned(t *testing.T) {
	h := newHarness(t, nil, func(ft *testutil.FakeTool) {
		ft.Delay = 20 * time.Millisecond
	})
	ctx := context.Background()
	h.chat(t, "s1", testutil.Brief)
	h.chat(t, "s2", testutil.Brief)
	assert.Zero(t, h.eng.slotCount())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.eng.HandleMessage(ctx, "s1", "yes")
	}()
	require.Eventually(t, func() bool {
		p, err := h.eng.Progress(ctx, "s1")
		return err == nil && p.Stage == core.StageResearching
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.eng.slotCount())

	busy, err := h.eng.HandleMessage(ctx, "s1", "yes")
	require.NoError(t, err)
	assert.True(t, busy.Busy)

	wg.Wait()
	assert.Zero(t, h.eng.slotCount())
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

func TestEngine_HandleAudio(t *testing.T) {
	t.Run("without transcriber", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		_, _, err := h.eng.HandleAudio(context.Background(), "s1", []byte{1}, "audio/webm")
		assert.ErrorIs(t, err, ErrTranscriptionUnavailable)
	})

	t.Run("transcribes and handles", func(t *testing.T) {
		h := newHarness(t, nil, nil, func(o *Options) {
			o.Transcriber = fakeTranscriber{text: testutil.Brief}
		})
		text, r, err := h.eng.HandleAudio(context.Background(), "s1", []byte{1}, "audio/webm")
		require.NoError(t, err)
		assert.Equal(t, testutil.Brief, text)
		assert.Equal(t, core.StageConfirmingPlan, r.Stage)
	})

	t.Run("transcription error", func(t *testing.T) {
		h := newHarness(t, nil, nil, func(o *Options) {
			o.Transcriber = fakeTranscriber{err: errors.New("bad audio")}
		})
		_, _, err := h.eng.HandleAudio(context.Background(), "s1", []byte{1}, "audio/webm")
		assert.Error(t, err)
	})
}

var _ tool.Tool = (*testutil.FakeTool)(nil)
