package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/model"
)

// Task list bounds. The lower bound is the size of the mandatory baseline.
const (
	MinTasks     = 7
	DefaultTasks = 12
)

// RouterOptions configures a Router.
type RouterOptions struct {
	Prompts  *Prompts
	Logger   logging.Logger
	MaxTasks int
}

// Router turns an approved workplan into the research task list.
type Router struct {
	llm      model.Model
	prompts  *Prompts
	logger   logging.Logger
	maxTasks int
}

// NewRouter creates a router. MaxTasks is clamped to [MinTasks, DefaultTasks].
func NewRouter(llm model.Model, optFns ...func(o *RouterOptions)) (*Router, error) {
	opts := RouterOptions{
		Logger:   logging.NoOpLogger{},
		MaxTasks: DefaultTasks,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Prompts == nil {
		p, err := DefaultPrompts()
		if err != nil {
			return nil, err
		}
		opts.Prompts = p
	}
	return &Router{
		llm:      llm,
		prompts:  opts.Prompts,
		logger:   opts.Logger,
		maxTasks: max(MinTasks, min(opts.MaxTasks, DefaultTasks)),
	}, nil
}

// MaxTasks returns the effective task cap.
func (r *Router) MaxTasks() int { return r.maxTasks }

type routedTask struct {
	Channel string `json:"channel"`
	Query   string `json:"query"`
	Goal    string `json:"goal"`
	Phase   string `json:"phase"`
}

type routerPayload struct {
	SearchTasks []routedTask `json:"search_tasks"`
}

// Route returns the ordered research tasks for workplan. Candidates come from
// the model; unknown or unsupported channels are dropped and duplicates by
// (channel, normalized query) collapse to the first. The result never exceeds
// the cap and always covers every mandatory channel, backfilling a default
// query where the candidates left one out. A failed or malformed routing call
// yields the baseline alone.
func (r *Router) Route(ctx context.Context, workplan string, scope core.Scope, supported []core.Channel) []core.SearchTask {
	candidates := r.candidates(ctx, workplan, scope, supported)
	tasks := Cap(candidates, scope.Company, r.maxTasks)
	for i := range tasks {
		tasks[i].ID = uuid.NewString()
	}
	r.logger.Info("Search tasks routed", "candidates", len(candidates), "tasks", len(tasks))
	return tasks
}

func (r *Router) candidates(ctx context.Context, workplan string, scope core.Scope, supported []core.Channel) []core.SearchTask {
	channels := supported
	if len(channels) == 0 {
		channels = core.Channels()
	}
	allowed := make(map[core.Channel]bool, len(channels))
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		allowed[c] = true
		names = append(names, c.String())
	}

	system, user, err := render(r.prompts.Router, map[string]any{
		"Scope":    scopeText(scope),
		"Workplan": workplan,
		"Channels": names,
		"MaxTasks": r.maxTasks,
	})
	if err != nil {
		r.logger.Error("Render router prompt", "error", err)
		return nil
	}
	text, err := call(ctx, r.llm, r.logger, model.Request{
		Role:         "router",
		Instructions: system,
		Messages:     []model.Message{{Role: core.RoleUser, Content: user}},
		JSON:         true,
	})
	if err != nil {
		return nil
	}
	var payload routerPayload
	if err := model.DecodeJSON(text, &payload); err != nil {
		r.logger.Warn("Router output is not valid JSON", "error", err)
		return nil
	}

	var (
		out  []core.SearchTask
		seen = make(map[string]bool)
	)
	for _, rt := range payload.SearchTasks {
		c, err := core.ParseChannel(rt.Channel)
		if err != nil || !allowed[c] {
			r.logger.Debug("Dropping routed task", "channel", rt.Channel)
			continue
		}
		t := core.SearchTask{
			Channel: c,
			Query:   strings.TrimSpace(rt.Query),
			Goal:    strings.TrimSpace(rt.Goal),
			Phase:   strings.TrimSpace(rt.Phase),
		}
		if t.Query == "" {
			t.Query = c.DefaultQuery(scope.Company)
		}
		if t.Goal == "" {
			t.Goal = c.DefaultGoal()
		}
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		out = append(out, t)
	}
	return out
}

// Cap keeps candidates in order while leaving room for every mandatory channel
// they do not cover, then appends default tasks for those channels.
func Cap(candidates []core.SearchTask, company string, maxTasks int) []core.SearchTask {
	mandatory := core.MandatoryChannels()
	maxTasks = max(maxTasks, len(mandatory))

	covered := make(map[core.Channel]bool)
	uncovered := func(extra core.Channel) int {
		n := 0
		for _, c := range mandatory {
			if !covered[c] && c != extra {
				n++
			}
		}
		return n
	}

	out := make([]core.SearchTask, 0, maxTasks)
	for _, t := range candidates {
		if len(out)+1+uncovered(t.Channel) > maxTasks {
			continue
		}
		out = append(out, t)
		covered[t.Channel] = true
	}
	for _, c := range mandatory {
		if covered[c] {
			continue
		}
		out = append(out, core.SearchTask{
			Channel: c,
			Query:   c.DefaultQuery(company),
			Goal:    c.DefaultGoal(),
			Phase:   "Baseline",
		})
		covered[c] = true
	}
	return out
}
