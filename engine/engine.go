package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/accountplan/agent"
	"github.com/hupe1980/accountplan/artifact"
	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/metrics"
	"github.com/hupe1980/accountplan/model"
	"github.com/hupe1980/accountplan/render"
	"github.com/hupe1980/accountplan/session"
	"github.com/hupe1980/accountplan/tool"
)

// Canned assistant replies.
const (
	PlanReadyReply      = "I've completed the research and created your account plan. Review it in the Account Plan tab and tell me if you'd like to refine any section."
	ReviewingReply      = "Your plan is ready. Ask me to regenerate a section (e.g., 'Update opportunities to focus on healthcare AI') or request an export when you're happy."
	WorkplanFailedReply = "I wasn't able to build the workplan yet.\n\nCould you restate the requirements so I can try again?"
	RevisionFailedReply = "I couldn't revise the workplan just now. Please describe the change again."
)

var (
	// ErrEmptyMessage is returned for blank user messages.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTranscriptionUnavailable is returned for audio input when no
	// transcriber is configured.
	ErrTranscriptionUnavailable = errors.New("speech transcription is not configured")
)

// Config defines tuning parameters for the pipeline.
type Config struct {
	// MaxTasks caps the routed task list. Clamped to [7, 12].
	MaxTasks int

	// CallTimeout bounds each research adapter call.
	CallTimeout time.Duration

	// DisplayResults is the number of hits shown per activity event.
	DisplayResults int

	// MaxHistoryMessages bounds the chat tail sent to the planner.
	MaxHistoryMessages int

	// StreamSections requests token streaming for section synthesis.
	StreamSections bool
}

// DefaultConfig provides the default pipeline configuration.
var DefaultConfig = Config{
	MaxTasks:           agent.DefaultTasks,
	CallTimeout:        45 * time.Second,
	DisplayResults:     5,
	MaxHistoryMessages: 20,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng, err := engine.New(llm, func(o *engine.Options) {
//	    o.SessionStore = redisStore
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters for the pipeline.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// SessionStore persists sessions between requests.
	// Defaults to the in-memory store.
	SessionStore core.SessionStore

	// ArtifactStore caches rendered exports.
	// Defaults to the in-memory store.
	ArtifactStore artifact.Store

	// Registry maps channels to search adapters.
	// Defaults to tool.DefaultRegistry().
	Registry *tool.Registry

	// Transcriber converts audio messages to text. Optional.
	Transcriber model.Transcriber

	// Prompts overrides the embedded prompt catalogue.
	Prompts *agent.Prompts

	// Callbacks receives lifecycle notifications. Optional.
	Callbacks *CallbackManager

	// Logger provides structured logging.
	// Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Engine owns every session and drives it through the pipeline stages.
//
// Concurrency Model:
//   - Each session has a slot (a mutex). Operations that mutate a session
//     hold its slot for their whole duration, so one session never runs two
//     pipeline steps at once.
//   - A message for a session whose slot is taken while the stored stage is
//     researching, analyzing or editing is ignored and answered with a busy
//     snapshot. In lighter stages it waits for the slot.
//   - Heavy steps checkpoint the session to the store after every progress
//     line or activity change, so readers (Progress, Report) observe them
//     without taking the slot.
//   - Different sessions never contend. A slot is dropped once no call
//     holds or waits on it.
type Engine struct {
	sessions  core.SessionStore
	artifacts artifact.Store
	logger    logging.Logger
	callbacks *CallbackManager

	transcriber model.Transcriber

	planner     *agent.Planner
	router      *agent.Router
	researcher  *agent.Researcher
	analyst     *agent.Analyst
	regenerator *agent.Regenerator
	registry    *tool.Registry

	slotsMu sync.Mutex
	slots   map[string]*sessionSlot
}

// sessionSlot serialises the mutating calls of one session. refs counts holders and
// waiters; the slot is dropped when it reaches zero.
type sessionSlot struct {
	mu   sync.Mutex
	refs int
}

// New creates an Engine that uses llm for every generation step.
func New(llm model.Model, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(session.DefaultTTL)
	}
	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}
	if opts.Registry == nil {
		opts.Registry = tool.DefaultRegistry()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Prompts == nil {
		p, err := agent.DefaultPrompts()
		if err != nil {
			return nil, err
		}
		opts.Prompts = p
	}
	cfg := opts.Config
	logger := opts.Logger

	planner, err := agent.NewPlanner(llm, func(o *agent.PlannerOptions) {
		o.Prompts = opts.Prompts
		o.Logger = logger
		o.MaxHistoryMessages = cfg.MaxHistoryMessages
	})
	if err != nil {
		return nil, err
	}
	router, err := agent.NewRouter(llm, func(o *agent.RouterOptions) {
		o.Prompts = opts.Prompts
		o.Logger = logger
		o.MaxTasks = cfg.MaxTasks
	})
	if err != nil {
		return nil, err
	}
	synth, err := agent.NewSynthesizer(llm, func(o *agent.SynthesizerOptions) {
		o.Prompts = opts.Prompts
		o.Logger = logger
		o.Stream = cfg.StreamSections
	})
	if err != nil {
		return nil, err
	}
	researcher := agent.NewResearcher(opts.Registry, func(o *agent.ResearcherOptions) {
		o.Logger = logger
		if cfg.CallTimeout > 0 {
			o.CallTimeout = cfg.CallTimeout
		}
		if cfg.DisplayResults > 0 {
			o.DisplayResults = cfg.DisplayResults
		}
	})

	return &Engine{
		sessions:    opts.SessionStore,
		artifacts:   opts.ArtifactStore,
		logger:      logger,
		callbacks:   opts.Callbacks,
		transcriber: opts.Transcriber,
		planner:     planner,
		router:      router,
		researcher:  researcher,
		analyst:     agent.NewAnalyst(synth, logger),
		regenerator: agent.NewRegenerator(synth, logger),
		registry:    opts.Registry,
		slots:       make(map[string]*sessionSlot),
	}, nil
}

// Callbacks returns the lifecycle callback registry.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Reply is the outcome of one chat message.
type Reply struct {
	SessionID string     `json:"session_id"`
	Message   string     `json:"reply"`
	Stage     core.Stage `json:"stage"`
	// Busy is set when the message was ignored because the session is mid
	// heavy stage. Message is empty then.
	Busy        bool   `json:"busy,omitempty"`
	Workplan    string `json:"workplan,omitempty"`
	PlanVersion int    `json:"plan_version,omitempty"`
}

func replyFor(sess *core.Session, msg string) Reply {
	r := Reply{SessionID: sess.ID, Message: msg, Stage: sess.Stage, Workplan: sess.Workplan}
	if sess.Plan != nil {
		r.PlanVersion = sess.Plan.Version
	}
	return r
}

// HandleMessage processes one user chat message and returns the assistant
// reply. Confirming a workplan runs research and analysis before returning.
func (e *Engine) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}

	release, busy, err := e.acquire(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	if busy != nil {
		return *busy, nil
	}
	defer release()

	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	sess.AddMessage(core.RoleUser, text)

	var reply string
	switch sess.Stage {
	case core.StagePlanning:
		reply = e.handlePlanning(ctx, sess, text)
	case core.StageConfirmingPlan:
		reply = e.handleConfirming(ctx, sess, text)
	case core.StageResearching, core.StageAnalyzing:
		// A previous run was interrupted or failed; pick it up.
		reply = e.runPipeline(ctx, sess)
	case core.StageReviewing:
		reply = e.handleReviewing(ctx, sess, text)
	default:
		return Reply{}, fmt.Errorf("session %s: unexpected stage %s", sess.ID, sess.Stage)
	}

	sess.AddMessage(core.RoleAssistant, reply)
	if err := e.sessions.Save(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return replyFor(sess, reply), nil
}

// HandleAudio transcribes a recorded message and handles it as text.
func (e *Engine) HandleAudio(ctx context.Context, sessionID string, audio []byte, mimeType string) (string, Reply, error) {
	if e.transcriber == nil {
		return "", Reply{}, ErrTranscriptionUnavailable
	}
	text, err := e.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", Reply{}, fmt.Errorf("transcribe audio: %w", err)
	}
	reply, err := e.HandleMessage(ctx, sessionID, text)
	return text, reply, err
}

func (e *Engine) handlePlanning(ctx context.Context, sess *core.Session, text string) string {
	c, err := e.planner.Clarify(ctx, sess.Scope, sess.History[:len(sess.History)-1], text)
	if err != nil {
		e.onError(ctx, sess, err)
	}
	sess.Scope = c.Scope
	if c.NeedsMoreInfo {
		return c.Reply
	}

	wp, err := e.planner.DraftWorkplan(ctx, sess.Scope, sess.History, "")
	if err != nil {
		e.onError(ctx, sess, err)
		return WorkplanFailedReply
	}
	sess.Workplan = wp
	sess.LastError = ""
	if err := e.transition(ctx, sess, core.StageConfirmingPlan); err != nil {
		e.logger.Error("Stage transition failed", "session_id", sess.ID, "error", err)
		return WorkplanFailedReply
	}
	if c.Reply == "" {
		return wp
	}
	return c.Reply + "\n\n" + wp
}

func (e *Engine) handleConfirming(ctx context.Context, sess *core.Session, text string) string {
	switch agent.Classify(text) {
	case agent.DecisionConfirm:
		if err := e.transition(ctx, sess, core.StageResearching); err != nil {
			e.logger.Error("Stage transition failed", "session_id", sess.ID, "error", err)
			return agent.UnclearReply
		}
		sess.AddMessage(core.RoleAssistant, agent.ConfirmReply)
		sess.LogProgress("🧭 Translating the workplan into research runs…")
		e.checkpoint(ctx, sess)
		return e.runPipeline(ctx, sess)
	case agent.DecisionRevise:
		wp, err := e.planner.DraftWorkplan(ctx, sess.Scope, sess.History, text)
		if err != nil {
			e.onError(ctx, sess, err)
			return RevisionFailedReply
		}
		sess.Workplan = wp
		return wp
	default:
		return agent.UnclearReply
	}
}

// runPipeline advances a session from researching or analyzing as far as it
// can and returns the reply for the message that triggered it.
func (e *Engine) runPipeline(ctx context.Context, sess *core.Session) string {
	if sess.Stage == core.StageResearching {
		tasks := e.router.Route(ctx, sess.Workplan, sess.Scope, e.registry.Channels())
		sess.Tasks = tasks
		sess.LogProgress("🚀 Launching research agents…")
		e.checkpoint(ctx, sess)

		e.researcher.Run(ctx, sess, tasks, e.checkpoint)
		if err := e.transition(ctx, sess, core.StageAnalyzing); err != nil {
			e.logger.Error("Stage transition failed", "session_id", sess.ID, "error", err)
			return err.Error()
		}
	}

	plan, err := e.analyst.Run(ctx, sess, e.checkpoint)
	if err != nil {
		e.onError(ctx, sess, err)
		return fmt.Sprintf("I ran into a problem while writing the %s section. Send any message and I'll pick up where I left off.", e.nextSectionTitle(sess))
	}
	if err := e.transition(ctx, sess, core.StageReviewing); err != nil {
		e.logger.Error("Stage transition failed", "session_id", sess.ID, "error", err)
		return err.Error()
	}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnPlanReady, &CallbackContext{SessionID: sess.ID, Plan: plan.Clone()}); err != nil {
		e.logger.Warn("Callback failed", "session_id", sess.ID, "error", err)
	}
	return PlanReadyReply
}

func (e *Engine) nextSectionTitle(sess *core.Session) string {
	for _, s := range core.Sections() {
		if _, ok := sess.Drafts[s]; !ok {
			return s.Title()
		}
	}
	return "next"
}

func (e *Engine) handleReviewing(ctx context.Context, sess *core.Session, text string) string {
	sec, ok := core.DetectSection(text)
	if !ok {
		return ReviewingReply
	}
	if _, err := e.regenerate(ctx, sess, sec.String(), text); err != nil {
		return fmt.Sprintf("I couldn't update the %s section right now. Please try again.", sec.Label())
	}
	return fmt.Sprintf("I've updated the %s section. Anything else?", sec.Label())
}

// Regeneration is the outcome of a section regeneration request.
type Regeneration struct {
	Section string `json:"section"`
	Content string `json:"content,omitempty"`
	Version int    `json:"version"`
	// Busy is set when the request was ignored because the session is mid
	// heavy stage; Version is the current one.
	Busy bool `json:"busy,omitempty"`
}

// Regenerate rewrites one section of the session's plan. It fails with
// core.ErrInvalidSection or core.ErrPlanNotReady without touching the
// session.
func (e *Engine) Regenerate(ctx context.Context, sessionID, sectionID, instruction string) (Regeneration, error) {
	sec, err := core.ParseSection(sectionID)
	if err != nil {
		metrics.RegenerationsTotal.WithLabelValues("invalid").Inc()
		return Regeneration{}, err
	}

	release, busy, err := e.acquire(ctx, sessionID)
	if err != nil {
		return Regeneration{}, err
	}
	if busy != nil {
		metrics.RegenerationsTotal.WithLabelValues("busy").Inc()
		return Regeneration{Section: sec.String(), Version: busy.PlanVersion, Busy: true}, nil
	}
	defer release()

	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return Regeneration{}, err
	}
	if sess.Plan == nil {
		metrics.RegenerationsTotal.WithLabelValues("invalid").Inc()
		return Regeneration{}, core.ErrPlanNotReady
	}

	plan, err := e.regenerate(ctx, sess, sec.String(), instruction)
	if serr := e.sessions.Save(ctx, sess); serr != nil && err == nil {
		err = fmt.Errorf("save session %s: %w", sess.ID, serr)
	}
	if err != nil {
		return Regeneration{Section: sec.String(), Version: sess.Plan.Version}, err
	}
	return Regeneration{Section: sec.String(), Content: plan.Sections[sec], Version: plan.Version}, nil
}

func (e *Engine) regenerate(ctx context.Context, sess *core.Session, sectionID, instruction string) (*core.AccountPlan, error) {
	plan, err := e.regenerator.Regenerate(ctx, sess, sectionID, instruction, e.checkpoint)
	if err != nil {
		e.onError(ctx, sess, err)
		return nil, err
	}
	sec, _ := core.ParseSection(sectionID)
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnRegenerate, &CallbackContext{SessionID: sess.ID, Plan: plan.Clone(), Section: sec}); err != nil {
		e.logger.Warn("Callback failed", "session_id", sess.ID, "error", err)
	}
	return plan, nil
}

// ProgressSnapshot is the pollable view of a running session.
type ProgressSnapshot struct {
	SessionID string               `json:"session_id"`
	Stage     core.Stage           `json:"stage"`
	Progress  []core.ProgressEntry `json:"progress"`
	Activity  []core.ActivityEvent `json:"activity"`
	LastError string               `json:"last_error,omitempty"`
}

// Progress returns the last checkpoint of a session. Unknown sessions read
// as fresh ones.
func (e *Engine) Progress(ctx context.Context, sessionID string) (ProgressSnapshot, error) {
	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	return ProgressSnapshot{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Progress:  sess.Progress,
		Activity:  sess.Activity,
		LastError: sess.LastError,
	}, nil
}

// Report is the current plan with its supporting research.
type Report struct {
	SessionID string            `json:"session_id"`
	Stage     core.Stage        `json:"stage"`
	Scope     core.Scope        `json:"scope"`
	Workplan  string            `json:"workplan,omitempty"`
	Tasks     []core.SearchTask `json:"tasks"`
	Plan      *core.AccountPlan `json:"plan,omitempty"`
	Sources   []core.Source     `json:"sources"`
	Messages  []core.Message    `json:"messages"`
}

// Report returns the session's plan, sources and chat transcript.
func (e *Engine) Report(ctx context.Context, sessionID string) (Report, error) {
	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		SessionID: sess.ID,
		Stage:     sess.Stage,
		Scope:     sess.Scope,
		Workplan:  sess.Workplan,
		Tasks:     sess.Tasks,
		Plan:      sess.Plan,
		Sources:   []core.Source{},
		Messages:  sess.History,
	}
	if sess.Bundle != nil {
		r.Sources = sess.Bundle.Sources
	}
	return r, nil
}

// Export is a rendered plan document.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Export renders the current plan version in the requested format. Rendered
// documents are cached in the artifact store under their versioned name.
func (e *Engine) Export(ctx context.Context, sessionID string, format render.Format) (Export, error) {
	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return Export{}, err
	}
	if sess.Plan == nil {
		return Export{}, core.ErrPlanNotReady
	}
	name := render.FileName(sess.Plan.Version, format)
	out := Export{FileName: name, ContentType: format.ContentType()}

	data, err := e.artifacts.Get(ctx, sess.ID, name)
	if err == nil {
		out.Data = data
		return out, nil
	}
	if !errors.Is(err, artifact.ErrNotFound) {
		e.logger.Warn("Export cache read failed", "session_id", sess.ID, "name", name, "error", err)
	}

	var sources []core.Source
	if sess.Bundle != nil {
		sources = sess.Bundle.Sources
	}
	data, err = render.Render(render.NewDocument(sess.Plan, sources), format)
	if err != nil {
		return Export{}, err
	}
	if err := e.artifacts.Save(ctx, sess.ID, name, data); err != nil {
		e.logger.Warn("Export cache write failed", "session_id", sess.ID, "name", name, "error", err)
	}
	out.Data = data
	return out, nil
}

// Reset forgets a session and its exports. It waits for a running step.
func (e *Engine) Reset(ctx context.Context, sessionID string) error {
	sl := e.slot(sessionID)
	sl.mu.Lock()
	defer e.release(sessionID, sl)

	names, err := e.artifacts.List(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := e.artifacts.Delete(ctx, sessionID, n); err != nil && !errors.Is(err, artifact.ErrNotFound) {
			return err
		}
	}
	return e.sessions.Delete(ctx, sessionID)
}

// slot returns the session's slot with a reference taken. Every call must be
// paired with release.
func (e *Engine) slot(sessionID string) *sessionSlot {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	sl, ok := e.slots[sessionID]
	if !ok {
		sl = &sessionSlot{}
		e.slots[sessionID] = sl
	}
	sl.refs++
	return sl
}

// release unlocks a held slot and drops the reference taken by slot.
func (e *Engine) release(sessionID string, sl *sessionSlot) {
	sl.mu.Unlock()
	e.unref(sessionID, sl)
}

func (e *Engine) unref(sessionID string, sl *sessionSlot) {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(e.slots, sessionID)
	}
}

func (e *Engine) slotCount() int {
	e.slotsMu.Lock()
	defer e.slotsMu.Unlock()
	return len(e.slots)
}

// acquire takes the session slot. When the slot is held by a heavy step it
// returns a busy reply instead and the caller must not proceed.
func (e *Engine) acquire(ctx context.Context, sessionID string) (func(), *Reply, error) {
	sl := e.slot(sessionID)
	if !sl.mu.TryLock() {
		// The holder checkpoints its stage, so the stored one is current.
		sess, err := e.sessions.Get(ctx, sessionID)
		if errors.Is(err, core.ErrSessionNotFound) {
			sess, err = core.NewSession(sessionID), nil
		}
		if err != nil {
			e.unref(sessionID, sl)
			return nil, nil, err
		}
		if sess.Stage.Heavy() {
			e.unref(sessionID, sl)
			metrics.BusyRejectionsTotal.Inc()
			e.logger.Info("Session busy, ignoring request", "session_id", sessionID, "stage", sess.Stage)
			r := replyFor(sess, "")
			r.Busy = true
			return nil, &r, nil
		}
		sl.mu.Lock()
	}
	return func() { e.release(sessionID, sl) }, nil, nil
}

// load returns the stored session, a new one for unknown ids. A session left
// in editing by an interrupted regeneration is returned to reviewing.
func (e *Engine) load(ctx context.Context, sessionID string) (*core.Session, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		return core.NewSession(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Stage == core.StageEditing {
		_ = sess.Advance(core.StageReviewing)
	}
	return sess, nil
}

func (e *Engine) transition(ctx context.Context, sess *core.Session, next core.Stage) error {
	from := sess.Stage
	if err := sess.Advance(next); err != nil {
		return err
	}
	metrics.StageTransitionsTotal.WithLabelValues(from.String(), next.String()).Inc()
	e.logger.Info("Stage changed", "session_id", sess.ID, "from", from, "to", next)
	e.checkpoint(ctx, sess)
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnStageChange, &CallbackContext{SessionID: sess.ID, From: from, To: next}); err != nil {
		e.logger.Warn("Callback failed", "session_id", sess.ID, "error", err)
	}
	return nil
}

// checkpoint saves the session so readers observe in-flight progress.
func (e *Engine) checkpoint(ctx context.Context, sess *core.Session) {
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.logger.Warn("Checkpoint failed", "session_id", sess.ID, "error", err)
	}
}

func (e *Engine) onError(ctx context.Context, sess *core.Session, err error) {
	sess.LastError = err.Error()
	if cerr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{SessionID: sess.ID, Err: err}); cerr != nil {
		e.logger.Warn("Callback failed", "session_id", sess.ID, "error", cerr)
	}
}
