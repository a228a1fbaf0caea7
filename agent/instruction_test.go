package agent

import (
	"testing"
)

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	got, err := inst.Resolve(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "static instruction" {
		t.Fatalf("expected 'static instruction', got %q", got)
	}
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromText("Research {{.Company}} in {{default \"any region\" .Region}}")
	got, err := inst.Resolve(map[string]any{"Company": "Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Research Acme in any region" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestInstruction_TemplateDoesNotEscape(t *testing.T) {
	inst := NewInstructionFromText("{{.Bundle}}")
	got, err := inst.Resolve(map[string]any{"Bundle": `{"a":"<b>"}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":"<b>"}` {
		t.Fatalf("expected raw JSON, got %q", got)
	}
}

func TestInstruction_ParseError(t *testing.T) {
	inst := NewInstructionFromText("{{.Company")
	if _, err := inst.Resolve(nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
