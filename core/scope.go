package core

import "strings"

// Scope is the research brief collected during planning. Every field except
// Notes is required before a workplan can be drafted.
type Scope struct {
	Company string `json:"company,omitempty"`
	Region  string `json:"region,omitempty"`
	Persona string `json:"persona,omitempty"`
	Product string `json:"product,omitempty"`
	Depth   string `json:"depth,omitempty"`
	Tone    string `json:"tone,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Missing lists the human readable names of the required fields that are
// still empty, in the order they should be asked for.
func (s Scope) Missing() []string {
	var out []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"company", s.Company},
		{"region", s.Region},
		{"buyer persona", s.Persona},
		{"product focus", s.Product},
		{"research depth", s.Depth},
		{"tone", s.Tone},
	} {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// Complete reports whether all required fields are present.
func (s Scope) Complete() bool { return len(s.Missing()) == 0 }

// Merge overlays the non-empty fields of u onto s. Notes are appended rather
// than replaced so earlier constraints are not lost.
func (s Scope) Merge(u Scope) Scope {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&s.Company, u.Company)
	set(&s.Region, u.Region)
	set(&s.Persona, u.Persona)
	set(&s.Product, u.Product)
	set(&s.Depth, strings.ToLower(u.Depth))
	set(&s.Tone, u.Tone)
	if n := strings.TrimSpace(u.Notes); n != "" && !strings.Contains(s.Notes, n) {
		if s.Notes == "" {
			s.Notes = n
		} else {
			s.Notes += "; " + n
		}
	}
	return s
}
