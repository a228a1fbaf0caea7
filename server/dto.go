package server

import (
	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/engine"
)

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=8000"`
}

type ChatResponse struct {
	Reply            string               `json:"reply"`
	Stage            core.Stage           `json:"stage"`
	Busy             bool                 `json:"busy,omitempty"`
	Workplan         string               `json:"workplan,omitempty"`
	Transcript       string               `json:"transcript,omitempty"`
	ProgressLog      []string             `json:"progress_log"`
	ResearchActivity []core.ActivityEvent `json:"research_activity"`
	HasAccountPlan   bool                 `json:"has_account_plan"`
	PlanVersion      int                  `json:"plan_version,omitempty"`
}

type ProgressResponse struct {
	Stage            core.Stage           `json:"stage"`
	ProgressLog      []string             `json:"progress_log"`
	ResearchActivity []core.ActivityEvent `json:"research_activity"`
	LastError        string               `json:"last_error,omitempty"`
}

type ReportResponse struct {
	CompanyName string            `json:"company_name"`
	Stage       core.Stage        `json:"stage"`
	Scope       core.Scope        `json:"scope"`
	Workplan    string            `json:"workplan,omitempty"`
	Sections    map[string]string `json:"sections"`
	Version     int               `json:"version"`
	Sources     []core.Source     `json:"sources"`
}

type RegenerateRequest struct {
	Section     string `json:"section" validate:"required"`
	Instruction string `json:"instruction" validate:"max=4000"`
}

type RegenerateResponse struct {
	Section string `json:"section"`
	Content string `json:"content,omitempty"`
	Version int    `json:"version"`
	Busy    bool   `json:"busy,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func progressLines(p engine.ProgressSnapshot) []string {
	lines := make([]string, len(p.Progress))
	for i, e := range p.Progress {
		lines[i] = e.Message
	}
	return lines
}

func newChatResponse(r engine.Reply, p engine.ProgressSnapshot) ChatResponse {
	return ChatResponse{
		Reply:            r.Message,
		Stage:            r.Stage,
		Busy:             r.Busy,
		Workplan:         r.Workplan,
		ProgressLog:      progressLines(p),
		ResearchActivity: p.Activity,
		HasAccountPlan:   r.PlanVersion > 0,
		PlanVersion:      r.PlanVersion,
	}
}

func newReportResponse(r engine.Report) ReportResponse {
	resp := ReportResponse{
		CompanyName: r.Scope.Company,
		Stage:       r.Stage,
		Scope:       r.Scope,
		Workplan:    r.Workplan,
		Sections:    map[string]string{},
		Sources:     r.Sources,
	}
	if r.Plan != nil {
		resp.CompanyName = r.Plan.CompanyName
		resp.Version = r.Plan.Version
		for _, s := range core.Sections() {
			resp.Sections[s.String()] = r.Plan.Sections[s]
		}
	}
	return resp
}
