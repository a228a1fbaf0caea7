package agent

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/accountplan/core"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// PromptPair is the system and user template of one model role.
type PromptPair struct {
	System Instruction
	User   Instruction
}

// Prompts is the prompt catalogue used by every agent.
type Prompts struct {
	Clarifier   PromptPair
	Workplanner PromptPair
	Router      PromptPair
	Section     PromptPair
	// Briefs holds the section specific instruction inserted into Section.User.
	Briefs map[core.Section]string
}

type rawPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type rawPrompts struct {
	Clarifier   rawPair           `yaml:"clarifier"`
	Workplanner rawPair           `yaml:"workplanner"`
	Router      rawPair           `yaml:"router"`
	Section     rawPair           `yaml:"section"`
	Sections    map[string]string `yaml:"sections"`
}

func (r rawPair) pair() PromptPair {
	return PromptPair{System: NewInstructionFromText(r.System), User: NewInstructionFromText(r.User)}
}

// ParsePrompts decodes a YAML prompt catalogue. Every section of the plan
// layout must have a brief.
func ParsePrompts(data []byte) (*Prompts, error) {
	var raw rawPrompts
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	for name, p := range map[string]rawPair{
		"clarifier":   raw.Clarifier,
		"workplanner": raw.Workplanner,
		"router":      raw.Router,
		"section":     raw.Section,
	} {
		if p.System == "" || p.User == "" {
			return nil, fmt.Errorf("prompts: %s needs system and user templates", name)
		}
	}

	p := &Prompts{
		Clarifier:   raw.Clarifier.pair(),
		Workplanner: raw.Workplanner.pair(),
		Router:      raw.Router.pair(),
		Section:     raw.Section.pair(),
		Briefs:      make(map[core.Section]string, core.SectionCount()),
	}
	for id, brief := range raw.Sections {
		s, err := core.ParseSection(id)
		if err != nil {
			return nil, fmt.Errorf("prompts: %w", err)
		}
		p.Briefs[s] = brief
	}
	for _, s := range core.Sections() {
		if p.Briefs[s] == "" {
			return nil, fmt.Errorf("prompts: missing brief for section %s", s)
		}
	}
	return p, nil
}

var defaultPrompts = sync.OnceValues(func() (*Prompts, error) {
	return ParsePrompts(defaultPromptsYAML)
})

// DefaultPrompts returns the embedded prompt catalogue.
func DefaultPrompts() (*Prompts, error) { return defaultPrompts() }

// render resolves a prompt pair against data.
func render(p PromptPair, data any) (system, user string, err error) {
	if system, err = p.System.Resolve(data); err != nil {
		return "", "", err
	}
	if user, err = p.User.Resolve(data); err != nil {
		return "", "", err
	}
	return system, user, nil
}
