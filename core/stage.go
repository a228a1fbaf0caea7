package core

import "fmt"

// Stage is the conversation stage of a session. Exactly one stage is active
// per session at any time.
type Stage int

const (
	// StagePlanning collects the scope required before a workplan can be drafted.
	StagePlanning Stage = iota
	// StageConfirmingPlan waits for the user to approve or revise the workplan.
	StageConfirmingPlan
	// StageResearching runs the research sweep.
	StageResearching
	// StageAnalyzing synthesizes plan sections from the research bundle.
	StageAnalyzing
	// StageReviewing is the steady state once an account plan exists.
	StageReviewing
	// StageEditing is entered for the duration of a single-section regeneration.
	StageEditing

	stageCount
)

var stageNames = [...]string{
	StagePlanning:       "planning",
	StageConfirmingPlan: "confirming_plan",
	StageResearching:    "researching",
	StageAnalyzing:      "analyzing",
	StageReviewing:      "reviewing",
	StageEditing:        "editing",
}

var _ = [1]struct{}{}[len(stageNames)-int(stageCount)]

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	out := make([]Stage, 0, stageCount)
	for s := Stage(0); s < stageCount; s++ {
		out = append(out, s)
	}
	return out
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Valid reports whether s is one of the enumerated stages.
func (s Stage) Valid() bool { return s >= 0 && s < stageCount }

// Heavy reports whether the stage runs long external work. A second trigger
// into a heavy stage that is already in flight is absorbed as a no-op.
func (s Stage) Heavy() bool {
	return s == StageResearching || s == StageAnalyzing || s == StageEditing
}

// CanTransition reports whether the pipeline allows moving from s to next.
// Self-loops on researching and analyzing exist so an interrupted sweep or
// analysis pass can be resumed. editing -> reviewing is the only backward edge.
func (s Stage) CanTransition(next Stage) bool {
	switch s {
	case StagePlanning:
		return next == StagePlanning || next == StageConfirmingPlan
	case StageConfirmingPlan:
		return next == StageConfirmingPlan || next == StageResearching
	case StageResearching:
		return next == StageResearching || next == StageAnalyzing
	case StageAnalyzing:
		return next == StageAnalyzing || next == StageReviewing
	case StageReviewing:
		return next == StageEditing
	case StageEditing:
		return next == StageReviewing
	}
	return false
}

// ParseStage parses the wire identifier of a stage.
func ParseStage(v string) (Stage, error) {
	for i, name := range stageNames {
		if name == v {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", v)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
