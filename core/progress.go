package core

import (
	"strings"
	"time"
)

// ProgressEntry is one human readable status line.
type ProgressEntry struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// LogProgress appends a status line. Blank lines are ignored and a line equal
// to the latest entry is not repeated. It reports whether a line was added.
func (s *Session) LogProgress(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return false
	}
	if n := len(s.Progress); n > 0 && s.Progress[n-1].Message == msg {
		return false
	}
	s.Progress = append(s.Progress, ProgressEntry{Message: msg, At: timestamp()})
	s.touch()
	return true
}

// ProgressLines returns the progress messages in append order.
func (s *Session) ProgressLines() []string {
	out := make([]string, len(s.Progress))
	for i, p := range s.Progress {
		out[i] = p.Message
	}
	return out
}
