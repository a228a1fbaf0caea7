package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/metrics"
)

// Analyst drives section synthesis over the whole plan layout and assembles
// the account plan once every section is drafted.
type Analyst struct {
	synth  *Synthesizer
	logger logging.Logger
}

// NewAnalyst creates an analyst over synth.
func NewAnalyst(synth *Synthesizer, logger logging.Logger) *Analyst {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Analyst{synth: synth, logger: logger}
}

// Run synthesizes every section missing from the session drafts, in plan
// order, checkpointing after each one. Drafts survive a failure so a later
// run resumes at the first missing section. When all sections exist the plan
// is assembled at version 1 and the drafts are cleared.
func (a *Analyst) Run(ctx context.Context, sess *core.Session, checkpoint Checkpoint) (*core.AccountPlan, error) {
	if checkpoint == nil {
		checkpoint = func(context.Context, *core.Session) {}
	}
	if sess.Bundle == nil {
		return nil, fmt.Errorf("analyze session %s: no research bundle", sess.ID)
	}
	if sess.Drafts == nil {
		sess.Drafts = make(map[core.Section]string, core.SectionCount())
	}
	logger := logging.With(a.logger, "session_id", sess.ID)

	for _, sec := range core.Sections() {
		if _, ok := sess.Drafts[sec]; ok {
			continue
		}
		sess.LogProgress(sec.ProgressLine())
		checkpoint(ctx, sess)

		text, err := a.synth.Synthesize(ctx, SectionInput{
			Section: sec,
			Bundle:  sess.Bundle,
			Scope:   sess.Scope,
			Prior:   sess.Drafts,
		})
		if err != nil {
			logger.Error("Section synthesis failed", "section", sec, "error", err)
			sess.LastError = err.Error()
			sess.LogProgress(fmt.Sprintf("⚠️ %s could not be generated. Send any message to retry.", sec.Title()))
			checkpoint(ctx, sess)
			return nil, err
		}
		sess.Drafts[sec] = text
		checkpoint(ctx, sess)
	}

	plan, err := core.NewAccountPlan(sess.Company(), sess.Scope, sess.Drafts)
	if err != nil {
		return nil, err
	}
	sess.Plan = plan
	sess.Drafts = map[core.Section]string{}
	sess.LastError = ""
	metrics.PlansCompletedTotal.Inc()
	sess.LogProgress("🗂️ Account plan ready.")
	logger.Info("Account plan ready", "company", plan.CompanyName, "version", plan.Version)
	return plan, nil
}
