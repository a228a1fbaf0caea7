package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSession_CloneIsolation(t *testing.T) {
	s := NewSession("s1")
	s.AddMessage(RoleUser, "hi")
	s.Drafts[SectionOverview] = "draft"
	s.Bundle = NewBundle("Acme", Scope{Company: "Acme"})
	s.Bundle.Add(ChannelNews, []Hit{{Title: "t", URL: "https://a"}})

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.AddMessage(RoleAssistant, "hello")
	clone.Drafts[SectionIndustry] = "other"
	clone.Bundle.Add(ChannelWeb, []Hit{{Title: "w", URL: "https://w"}})

	if len(s.History) != 1 {
		t.Errorf("original history changed: %d", len(s.History))
	}
	if _, ok := s.Drafts[SectionIndustry]; ok {
		t.Error("original drafts should not have clone's key")
	}
	if len(s.Bundle.Hits[ChannelWeb]) != 0 || len(s.Bundle.Sources) != 1 {
		t.Error("original bundle should not see clone's hits")
	}
}

func TestSession_AdvanceFollowsPipeline(t *testing.T) {
	s := NewSession("s1")
	path := []Stage{StageConfirmingPlan, StageResearching, StageAnalyzing, StageReviewing, StageEditing, StageReviewing}
	for _, next := range path {
		if err := s.Advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}

	err := s.Advance(StagePlanning)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if s.Stage != StageReviewing {
		t.Errorf("stage changed on rejected transition: %s", s.Stage)
	}
}

func TestStage_OnlyBackwardEdgeIsEditingToReviewing(t *testing.T) {
	for _, from := range Stages() {
		for _, to := range Stages() {
			if !from.CanTransition(to) || to >= from {
				continue
			}
			if from != StageEditing || to != StageReviewing {
				t.Errorf("unexpected backward edge %s -> %s", from, to)
			}
		}
	}
}

func TestSession_LogProgressDedupe(t *testing.T) {
	s := NewSession("s1")
	s.LogProgress("one")
	s.LogProgress("one")
	s.LogProgress("   ")
	s.LogProgress("two")
	s.LogProgress("one")

	got := s.ProgressLines()
	want := []string{"one", "two", "one"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSession_ActivityTransitionsOnce(t *testing.T) {
	s := NewSession("s1")
	task := SearchTask{ID: "t1", Channel: ChannelNews, Query: "acme news"}
	s.StartActivity("a1", task)

	if s.Activity[0].Agent != "News Radar" || s.Activity[0].Status != ActivityRunning {
		t.Fatalf("unexpected running event: %+v", s.Activity[0])
	}
	if err := s.FailActivity("a1", errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if s.Activity[0].Results != nil || s.Activity[0].Error != "boom" || s.Activity[0].CompletedAt == nil {
		t.Fatalf("unexpected error event: %+v", s.Activity[0])
	}
	if err := s.CompleteActivity("a1", nil); err == nil {
		t.Fatal("expected second transition to be rejected")
	}
	if err := s.CompleteActivity("missing", nil); err == nil {
		t.Fatal("expected unknown activity to be rejected")
	}
}

func TestSession_JSONRoundTrip(t *testing.T) {
	s := NewSession("s1")
	s.Stage = StageReviewing
	sections := map[Section]string{}
	for _, sec := range Sections() {
		sections[sec] = sec.Title()
	}
	plan, err := NewAccountPlan("Acme", Scope{Company: "Acme"}, sections)
	if err != nil {
		t.Fatal(err)
	}
	s.Plan = plan

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Stage != StageReviewing {
		t.Errorf("stage lost: %s", out.Stage)
	}
	if out.Plan.Sections[SectionPlan306090] != "30-60-90 Day Plan" {
		t.Errorf("sections lost: %v", out.Plan.Sections)
	}
}
