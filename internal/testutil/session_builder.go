package testutil

import (
	"github.com/hupe1980/accountplan/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Scope(FullScope()).Plan().Build()
type SessionBuilder struct {
	id       string
	stage    core.Stage
	scope    core.Scope
	workplan string
	messages []core.Message
	bundle   *core.Bundle
	sections map[core.Section]string
	version  int
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, stage: core.StagePlanning}
}

// FullScope returns a brief with every required field set.
func FullScope() core.Scope {
	return core.Scope{
		Company: "Acme",
		Region:  "EMEA",
		Persona: "CHRO",
		Product: "talent intelligence",
		Depth:   "deep dive",
		Tone:    "executive briefing",
	}
}

// Stage sets the stage of the resulting session (chainable).
func (b *SessionBuilder) Stage(st core.Stage) *SessionBuilder {
	b.stage = st
	return b
}

// Scope sets the brief (chainable).
func (b *SessionBuilder) Scope(s core.Scope) *SessionBuilder {
	b.scope = s
	return b
}

// Workplan sets the pending or approved workplan (chainable).
func (b *SessionBuilder) Workplan(text string) *SessionBuilder {
	b.workplan = text
	return b
}

// Message appends a chat turn (chainable).
func (b *SessionBuilder) Message(role, content string) *SessionBuilder {
	b.messages = append(b.messages, core.Message{Role: role, Content: content})
	return b
}

// Bundle attaches an empty research bundle for the scope's company (chainable).
func (b *SessionBuilder) Bundle() *SessionBuilder {
	b.bundle = core.NewBundle(b.scope.Company, b.scope)
	return b
}

// Plan attaches a complete plan whose sections read "<id> v1" and moves the
// session to reviewing (chainable). A bundle is attached when missing.
func (b *SessionBuilder) Plan() *SessionBuilder {
	b.sections = make(map[core.Section]string, core.SectionCount())
	for _, s := range core.Sections() {
		b.sections[s] = s.String() + " v1"
	}
	b.version = 1
	b.stage = core.StageReviewing
	if b.bundle == nil {
		b.Bundle()
	}
	return b
}

// Version overrides the plan version (chainable). Requires Plan.
func (b *SessionBuilder) Version(v int) *SessionBuilder {
	b.version = v
	return b
}

// Build returns the *core.Session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.Stage = b.stage
	s.Scope = b.scope
	s.Workplan = b.workplan
	s.History = append(s.History, b.messages...)
	s.Bundle = b.bundle
	if b.sections != nil {
		plan, err := core.NewAccountPlan(b.scope.Company, b.scope, b.sections)
		if err != nil {
			panic(err)
		}
		plan.Version = b.version
		s.Plan = plan
	}
	return s
}
