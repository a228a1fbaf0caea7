package core

import (
	"fmt"
	"strings"
)

// Section identifies one of the ten fixed parts of an account plan. The
// declaration order is the synthesis order: later sections may reference
// earlier ones.
type Section int

const (
	SectionOverview Section = iota
	SectionIndustry
	SectionFinancials
	SectionTalent
	SectionLeadership
	SectionNews
	SectionSWOT
	SectionOpportunities
	SectionStrategy
	SectionPlan306090

	sectionCount
)

var sectionIDs = [...]string{
	SectionOverview:      "overview",
	SectionIndustry:      "industry",
	SectionFinancials:    "financials",
	SectionTalent:        "talent",
	SectionLeadership:    "leadership",
	SectionNews:          "news",
	SectionSWOT:          "swot",
	SectionOpportunities: "opportunities",
	SectionStrategy:      "strategy",
	SectionPlan306090:    "plan_30_60_90",
}

var sectionTitles = [...]string{
	SectionOverview:      "Company Overview",
	SectionIndustry:      "Industry Landscape",
	SectionFinancials:    "Financial Health",
	SectionTalent:        "Talent & Hiring",
	SectionLeadership:    "Leadership",
	SectionNews:          "Recent News",
	SectionSWOT:          "SWOT Analysis",
	SectionOpportunities: "Opportunities",
	SectionStrategy:      "Strategy",
	SectionPlan306090:    "30-60-90 Day Plan",
}

var sectionProgress = [...]string{
	SectionOverview:      "🧠 Building overview…",
	SectionIndustry:      "🌐 Mapping industry dynamics…",
	SectionFinancials:    "💰 Summarizing financials…",
	SectionTalent:        "👥 Assessing talent trends…",
	SectionLeadership:    "🤝 Profiling leadership…",
	SectionNews:          "📰 Compiling news triggers…",
	SectionSWOT:          "⚖️ Drafting SWOT…",
	SectionOpportunities: "🚀 Identifying opportunities…",
	SectionStrategy:      "📋 Designing strategy…",
	SectionPlan306090:    "🗓️ Framing 30-60-90 plan…",
}

var (
	_ = [1]struct{}{}[len(sectionIDs)-int(sectionCount)]
	_ = [1]struct{}{}[len(sectionTitles)-int(sectionCount)]
	_ = [1]struct{}{}[len(sectionProgress)-int(sectionCount)]
)

// Sections returns all sections in synthesis order.
func Sections() []Section {
	out := make([]Section, 0, sectionCount)
	for s := Section(0); s < sectionCount; s++ {
		out = append(out, s)
	}
	return out
}

// SectionCount is the number of sections in a complete plan.
func SectionCount() int { return int(sectionCount) }

// String returns the wire identifier of the section.
func (s Section) String() string {
	if !s.Valid() {
		return fmt.Sprintf("section(%d)", int(s))
	}
	return sectionIDs[s]
}

// Valid reports whether s is one of the enumerated sections.
func (s Section) Valid() bool { return s >= 0 && s < sectionCount }

// Title is the human readable heading used in rendered documents.
func (s Section) Title() string { return sectionTitles[s] }

// Label is the identifier with underscores replaced by spaces.
func (s Section) Label() string { return strings.ReplaceAll(sectionIDs[s], "_", " ") }

// ProgressLine is appended to the progress log before the section is synthesized.
func (s Section) ProgressLine() string { return sectionProgress[s] }

// ParseSection parses a section identifier. It returns ErrInvalidSection for
// anything outside the enumeration.
func ParseSection(v string) (Section, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	for i, id := range sectionIDs {
		if id == key {
			return Section(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSection, v)
}

// DetectSection finds the first section named in free text, either by its
// identifier or by its label ("plan 30 60 90").
func DetectSection(text string) (Section, bool) {
	normalized := strings.ToLower(text)
	for _, s := range Sections() {
		if strings.Contains(normalized, sectionIDs[s]) || strings.Contains(normalized, s.Label()) {
			return s, true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Section) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSection, int(s))
	}
	return []byte(sectionIDs[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Section) UnmarshalText(b []byte) error {
	v, err := ParseSection(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
