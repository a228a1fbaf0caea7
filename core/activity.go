package core

import (
	"fmt"
	"time"
)

// ActivityStatus is the lifecycle status of a research activity event.
type ActivityStatus string

const (
	ActivityRunning  ActivityStatus = "running"
	ActivityComplete ActivityStatus = "complete"
	ActivityError    ActivityStatus = "error"
)

// ActivityEvent records the execution of one SearchTask. An event moves from
// running to complete or error exactly once and is never changed afterwards.
type ActivityEvent struct {
	ID          string         `json:"id"`
	TaskID      string         `json:"task_id"`
	Agent       string         `json:"agent"`
	Channel     Channel        `json:"channel"`
	Source      string         `json:"source"`
	Query       string         `json:"query"`
	Goal        string         `json:"goal"`
	Status      ActivityStatus `json:"status"`
	Results     []Hit          `json:"results"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
}

// Terminal reports whether the event reached complete or error.
func (e ActivityEvent) Terminal() bool {
	return e.Status == ActivityComplete || e.Status == ActivityError
}

// timestamp returns the current UTC time truncated to seconds.
func timestamp() time.Time { return time.Now().UTC().Truncate(time.Second) }

// StartActivity appends a running event for the task under the given id.
func (s *Session) StartActivity(id string, task SearchTask) {
	meta := task.Channel.Meta()
	s.Activity = append(s.Activity, ActivityEvent{
		ID:        id,
		TaskID:    task.ID,
		Agent:     meta.Agent,
		Channel:   task.Channel,
		Source:    meta.Source,
		Query:     task.Query,
		Goal:      task.Goal,
		Status:    ActivityRunning,
		Results:   []Hit{},
		StartedAt: timestamp(),
	})
	s.touch()
}

// CompleteActivity moves a running event to complete with the display results.
func (s *Session) CompleteActivity(id string, results []Hit) error {
	return s.finishActivity(id, ActivityComplete, append([]Hit{}, results...), "")
}

// FailActivity moves a running event to error. Failed events carry no results.
func (s *Session) FailActivity(id string, cause error) error {
	return s.finishActivity(id, ActivityError, nil, cause.Error())
}

func (s *Session) finishActivity(id string, status ActivityStatus, results []Hit, msg string) error {
	for i := range s.Activity {
		ev := &s.Activity[i]
		if ev.ID != id {
			continue
		}
		if ev.Terminal() {
			return fmt.Errorf("activity %s already %s", id, ev.Status)
		}
		now := timestamp()
		ev.Status = status
		ev.Results = results
		ev.Error = msg
		ev.CompletedAt = &now
		s.touch()
		return nil
	}
	return fmt.Errorf("activity %s not found", id)
}

// ResetActivity clears the activity log at the start of a new sweep.
func (s *Session) ResetActivity() {
	s.Activity = []ActivityEvent{}
	s.touch()
}
