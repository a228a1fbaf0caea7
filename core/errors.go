package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSection is returned when a section identifier is not part of
	// the plan layout.
	ErrInvalidSection = errors.New("invalid section")

	// ErrPlanNotReady is returned when an operation needs an account plan
	// that has not been produced yet.
	ErrPlanNotReady = errors.New("account plan not ready")

	// ErrIllegalTransition is returned when a stage change is not an edge of
	// the pipeline.
	ErrIllegalTransition = errors.New("illegal stage transition")

	// ErrSessionNotFound is returned by stores for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// ChannelError is a failure of a single research task. It is recorded on the
// activity log and never aborts the sweep.
type ChannelError struct {
	Channel Channel
	Query   string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s (%q): %v", e.Channel, e.Query, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// GenerationError is a failure of the text generation collaborator.
type GenerationError struct {
	Role string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Role, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err carries a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
