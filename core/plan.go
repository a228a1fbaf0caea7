package core

import "time"

// AccountPlan is the finished strategy document. Version starts at 1 and is
// incremented once per committed section regeneration.
type AccountPlan struct {
	CompanyName string             `json:"company_name"`
	Scope       Scope              `json:"scope"`
	Sections    map[Section]string `json:"sections"`
	Version     int                `json:"version"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewAccountPlan assembles version 1 of a plan from a full set of sections.
func NewAccountPlan(company string, scope Scope, sections map[Section]string) (*AccountPlan, error) {
	for _, s := range Sections() {
		if _, ok := sections[s]; !ok {
			return nil, &missingSectionError{section: s}
		}
	}
	p := &AccountPlan{CompanyName: company, Scope: scope, Sections: make(map[Section]string, len(sections)), Version: 1, UpdatedAt: timestamp()}
	for s, body := range sections {
		p.Sections[s] = body
	}
	return p, nil
}

// Replace swaps in new content for one section and bumps the version.
func (p *AccountPlan) Replace(s Section, content string) {
	p.Sections[s] = content
	p.Version++
	p.UpdatedAt = timestamp()
}

// Clone returns a deep copy.
func (p *AccountPlan) Clone() *AccountPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.Sections = make(map[Section]string, len(p.Sections))
	for s, body := range p.Sections {
		out.Sections[s] = body
	}
	return &out
}

type missingSectionError struct{ section Section }

func (e *missingSectionError) Error() string {
	return "account plan is missing section " + e.section.String()
}
