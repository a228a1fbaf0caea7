package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/metrics"
	"github.com/hupe1980/accountplan/tool"
)

// Checkpoint persists the session mid-operation so pollers see progress.
type Checkpoint func(ctx context.Context, s *core.Session)

// ErrNoAdapter is the cause recorded for a task whose channel has no tool.
var ErrNoAdapter = errors.New("no adapter registered for channel")

// ResearcherOptions configures a Researcher.
type ResearcherOptions struct {
	Logger logging.Logger
	// CallTimeout bounds each adapter call.
	CallTimeout time.Duration
	// DisplayResults is the number of hits shown on a completed activity event.
	DisplayResults int
}

// Researcher executes a task list against the tool registry, one task at a
// time, recording activity and progress on the session as it goes.
type Researcher struct {
	registry       *tool.Registry
	logger         logging.Logger
	callTimeout    time.Duration
	displayResults int
}

// NewResearcher creates a researcher over registry.
func NewResearcher(registry *tool.Registry, optFns ...func(o *ResearcherOptions)) *Researcher {
	opts := ResearcherOptions{
		Logger:         logging.NoOpLogger{},
		CallTimeout:    45 * time.Second,
		DisplayResults: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Researcher{
		registry:       registry,
		logger:         opts.Logger,
		callTimeout:    opts.CallTimeout,
		displayResults: opts.DisplayResults,
	}
}

// Run performs one research sweep over tasks and stores a fresh bundle on
// the session. Channel failures are recorded as error events and never stop
// the sweep, so every task ends in a terminal event.
func (r *Researcher) Run(ctx context.Context, sess *core.Session, tasks []core.SearchTask, checkpoint Checkpoint) *core.Bundle {
	if checkpoint == nil {
		checkpoint = func(context.Context, *core.Session) {}
	}
	logger := logging.With(r.logger, "session_id", sess.ID)
	done := logging.StartTimer(logger, "research sweep", "tasks", len(tasks))
	defer done()

	sess.ResetActivity()
	bundle := core.NewBundle(sess.Company(), sess.Scope)

	for _, task := range tasks {
		meta := task.Channel.Meta()
		sess.LogProgress(fmt.Sprintf("%s %s – %s", meta.Emoji, meta.Agent, task.Goal))
		id := uuid.NewString()
		sess.StartActivity(id, task)
		checkpoint(ctx, sess)

		start := time.Now()
		hits, err := r.search(ctx, task)
		if err != nil {
			metrics.RecordChannelTask(task.Channel.String(), "error", time.Since(start))
			logger.Warn("Research task failed", "channel", task.Channel, "query", task.Query, "error", err)
			_ = sess.FailActivity(id, err)
			bundle.MarkFailed(task.Channel)
			sess.LogProgress(fmt.Sprintf("⚠️ %s could not reach %s", meta.Agent, meta.Source))
			checkpoint(ctx, sess)
			continue
		}

		metrics.RecordChannelTask(task.Channel.String(), "complete", time.Since(start))
		cleaned := tool.CleanHits(hits, 0)
		bundle.Add(task.Channel, cleaned)
		_ = sess.CompleteActivity(id, tool.CleanHits(cleaned, r.displayResults))
		sess.LogProgress(fmt.Sprintf("✅ %s found %d results", meta.Agent, len(cleaned)))
		logger.Debug("Research task complete", "channel", task.Channel, "results", len(cleaned))
		checkpoint(ctx, sess)
	}

	bundle.CollectedAt = time.Now().UTC()
	sess.Bundle = bundle
	sess.LogProgress("📦 Research bundle ready for analysis.")
	logger.Info("Research bundle ready", "sources", len(bundle.Sources), "failed_channels", len(bundle.Failed))
	checkpoint(ctx, sess)
	return bundle
}

func (r *Researcher) search(ctx context.Context, task core.SearchTask) ([]core.Hit, error) {
	t, ok := r.registry.Lookup(task.Channel)
	if !ok {
		return nil, &core.ChannelError{Channel: task.Channel, Query: task.Query, Err: ErrNoAdapter}
	}
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	hits, err := t.Search(callCtx, task.Query)
	if err != nil {
		return nil, &core.ChannelError{Channel: task.Channel, Query: task.Query, Err: err}
	}
	return hits, nil
}
