// Package engine drives account-plan sessions through the pipeline stages.
//
// The Engine is the single entry point for chat, regeneration, progress and
// export requests. It owns the session store, the artifact cache and the
// agents that do the actual work, and it is the only place where a session
// changes stage.
//
// # Stages
//
//	planning ──► confirming_plan ──► researching ──► analyzing ──► reviewing ◄──► editing
//
// planning collects the brief until every required scope field is known and
// then drafts a workplan. confirming_plan waits for an affirmative (start),
// a revision request (redraft) or anything else (ask again). Confirmation runs
// research and analysis in the same request. reviewing accepts section
// regeneration requests, each of which passes through editing and produces a
// new plan version.
//
// # Concurrency
//
// Every session has one slot. Mutating calls hold it for their duration:
//
//	HandleMessage ─┐
//	Regenerate    ─┼─► slot ─► load ─► step ─► checkpoint* ─► save
//	Reset         ─┘
//
// A caller that finds the slot taken while the stored stage is heavy
// (researching, analyzing, editing) gets a busy reply and nothing runs. This
// absorbs the double-trigger from a UI that resubmits while a sweep is in
// flight. Progress, Report and Export never take the slot; they read the
// most recent checkpoint.
//
// # Failure Handling
//
// Search adapter failures are recorded per task and never abort a sweep. A
// failed section synthesis leaves the session in analyzing with the drafts
// already written; the next message resumes from the missing section. A
// failed regeneration leaves the plan version unchanged.
//
// # Callbacks
//
// A CallbackManager receives stage changes, finished plans, regenerations
// and errors:
//
//	eng.Callbacks().RegisterCallback(engine.NewLoggingCallback(engine.CallbackOnPlanReady, func(msg string) {
//	    log.Print(msg)
//	}))
package engine
