package core

import (
	"context"
	"fmt"
	"time"
)

// Message roles recorded in the chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged chat turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the unit of ownership for one user's conversation. It is owned
// by a single writer at a time (the engine holds the per-session slot while
// mutating it); stores hand out clones so readers never observe a session
// that is being written.
//
// Contract:
//   - Stage changes go through Advance and follow Stage.CanTransition
//   - Bundle exists from the end of researching onward, Plan from reviewing
//   - Drafts holds sections synthesized during analyzing and is cleared once
//     the plan is assembled
//   - Clone performs deep copies of maps and slices for safe divergence.
type Session struct {
	ID        string             `json:"id"`
	Stage     Stage              `json:"stage"`
	Scope     Scope              `json:"scope"`
	History   []Message          `json:"history"`
	Workplan  string             `json:"workplan,omitempty"`
	Tasks     []SearchTask       `json:"tasks,omitempty"`
	Bundle    *Bundle            `json:"bundle,omitempty"`
	Drafts    map[Section]string `json:"drafts,omitempty"`
	Plan      *AccountPlan       `json:"plan,omitempty"`
	Activity  []ActivityEvent    `json:"activity"`
	Progress  []ProgressEntry    `json:"progress"`
	LastError string             `json:"last_error,omitempty"`
	Created   time.Time          `json:"created"`
	Updated   time.Time          `json:"updated"`
}

// NewSession creates a new session in the planning stage.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:       id,
		Stage:    StagePlanning,
		History:  []Message{},
		Drafts:   map[Section]string{},
		Activity: []ActivityEvent{},
		Progress: []ProgressEntry{},
		Created:  now,
		Updated:  now,
	}
}

func (s *Session) touch() { s.Updated = time.Now().UTC() }

// Advance moves the session to the next stage, rejecting edges outside the
// pipeline with ErrIllegalTransition.
func (s *Session) Advance(next Stage) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown stage %d", ErrIllegalTransition, int(next))
	}
	if !s.Stage.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Stage, next)
	}
	s.Stage = next
	s.touch()
	return nil
}

// AddMessage appends a chat turn.
func (s *Session) AddMessage(role, content string) {
	s.History = append(s.History, Message{Role: role, Content: content, Timestamp: time.Now().UTC()})
	s.touch()
}

// HasPlan reports whether an account plan exists.
func (s *Session) HasPlan() bool { return s.Plan != nil }

// Company returns the company the session is researching.
func (s *Session) Company() string {
	if s.Plan != nil && s.Plan.CompanyName != "" {
		return s.Plan.CompanyName
	}
	return s.Scope.Company
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	out := *s
	out.History = append([]Message{}, s.History...)
	out.Tasks = append([]SearchTask(nil), s.Tasks...)
	out.Bundle = s.Bundle.Clone()
	out.Plan = s.Plan.Clone()
	out.Drafts = make(map[Section]string, len(s.Drafts))
	for k, v := range s.Drafts {
		out.Drafts[k] = v
	}
	out.Activity = make([]ActivityEvent, len(s.Activity))
	for i, ev := range s.Activity {
		if ev.Results != nil {
			ev.Results = append([]Hit{}, ev.Results...)
		}
		if ev.CompletedAt != nil {
			at := *ev.CompletedAt
			ev.CompletedAt = &at
		}
		out.Activity[i] = ev
	}
	out.Progress = append([]ProgressEntry{}, s.Progress...)
	return &out
}

// SessionStore persists sessions by key. Implementations must return clones
// from Get and store clones on Save so callers never share memory with the
// store. Get returns ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
