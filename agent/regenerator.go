package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/metrics"
)

// Regenerator rewrites a single section of an existing plan.
type Regenerator struct {
	synth  *Synthesizer
	logger logging.Logger
}

// NewRegenerator creates a regenerator over synth.
func NewRegenerator(synth *Synthesizer, logger logging.Logger) *Regenerator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Regenerator{synth: synth, logger: logger}
}

// Regenerate rewrites the section named by sectionID with the other current
// sections as context and the optional user instruction. An unknown section
// or a missing plan fails before anything is touched. While the call runs the
// session is in the editing stage; it returns to reviewing on every path. The
// plan version only moves when the new text is committed.
func (r *Regenerator) Regenerate(ctx context.Context, sess *core.Session, sectionID, instruction string, checkpoint Checkpoint) (*core.AccountPlan, error) {
	sec, err := core.ParseSection(sectionID)
	if err != nil {
		metrics.RegenerationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if sess.Plan == nil {
		metrics.RegenerationsTotal.WithLabelValues("invalid").Inc()
		return nil, core.ErrPlanNotReady
	}
	if checkpoint == nil {
		checkpoint = func(context.Context, *core.Session) {}
	}
	if err := sess.Advance(core.StageEditing); err != nil {
		return nil, err
	}
	defer func() {
		_ = sess.Advance(core.StageReviewing)
		checkpoint(ctx, sess)
	}()

	logger := logging.With(r.logger, "session_id", sess.ID, "section", sec)
	sess.LogProgress(fmt.Sprintf("♻️ Regenerating %s…", sec.Title()))
	checkpoint(ctx, sess)

	text, err := r.synth.Synthesize(ctx, SectionInput{
		Section:     sec,
		Bundle:      sess.Bundle,
		Scope:       sess.Scope,
		Prior:       sess.Plan.Sections,
		Instruction: instruction,
		Revision:    true,
	})
	if err != nil {
		metrics.RegenerationsTotal.WithLabelValues("error").Inc()
		logger.Error("Section regeneration failed", "error", err)
		sess.LastError = err.Error()
		sess.LogProgress(fmt.Sprintf("⚠️ Could not regenerate %s.", sec.Title()))
		return nil, err
	}

	sess.Plan.Replace(sec, text)
	sess.LastError = ""
	metrics.RegenerationsTotal.WithLabelValues("success").Inc()
	sess.LogProgress(fmt.Sprintf("✅ %s updated.", sec.Title()))
	logger.Info("Section regenerated", "version", sess.Plan.Version)
	return sess.Plan, nil
}
