package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/model"
	"github.com/hupe1980/accountplan/tool"
)

// FakeTool is a scripted search adapter. It returns Hits or Err after
// Delay, honoring context cancellation.
type FakeTool struct {
	Ch    core.Channel
	Hits  []core.Hit
	Err   error
	Delay time.Duration

	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

// Name implements tool.Tool.
func (f *FakeTool) Name() string { return "fake_" + f.Ch.String() }

// Channel implements tool.Tool.
func (f *FakeTool) Channel() core.Channel { return f.Ch }

// Search implements tool.Tool.
func (f *FakeTool) Search(ctx context.Context, query string) ([]core.Hit, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, query)
	f.mu.Unlock()
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.Hits, f.Err
}

// Calls returns the number of searches served.
func (f *FakeTool) Calls() int { return int(f.calls.Load()) }

// Hits builds n distinct hits for a channel.
func Hits(c core.Channel, n int) []core.Hit {
	out := make([]core.Hit, n)
	for i := range out {
		out[i] = core.Hit{
			Title:   fmt.Sprintf("%s result %d", c, i+1),
			URL:     fmt.Sprintf("https://%s.example/%d", c, i+1),
			Snippet: fmt.Sprintf("%s snippet %d", c, i+1),
		}
	}
	return out
}

// Registry returns a registry with one FakeTool per mandatory channel, each
// configured by fn. The fakes are returned keyed by channel.
func Registry(fn func(t *FakeTool)) (*tool.Registry, map[core.Channel]*FakeTool) {
	reg := tool.NewRegistry()
	fakes := make(map[core.Channel]*FakeTool)
	for _, c := range core.MandatoryChannels() {
		ft := &FakeTool{Ch: c, Hits: Hits(c, 3)}
		if fn != nil {
			fn(ft)
		}
		reg.Register(ft)
		fakes[c] = ft
	}
	return reg, fakes
}

// TotalCalls sums the searches served by fakes.
func TotalCalls(fakes map[core.Channel]*FakeTool) int {
	n := 0
	for _, f := range fakes {
		n += f.Calls()
	}
	return n
}

// PipelineModel returns a MockModel scripted for a full run: the clarifier
// echoes a complete brief, the workplanner returns a short plan, the router
// proposes nothing (baseline only) and every section is "<Title> draft".
func PipelineModel() *model.MockModel {
	m := model.NewMockModel("mock", "mock")
	m.AddResponse("clarifier", `{"assistant_reply":"Thanks, I have what I need.","scope_updates":{},"needs_more_info":false}`)
	m.AddResponse("workplanner", "Here is the workplan.\n\n**Phase 1: Discovery**")
	m.AddResponse("router", `{"search_tasks":[]}`)
	m.SetHandler(func(req model.Request) (string, error) {
		if id, ok := strings.CutPrefix(req.Role, "section:"); ok {
			s, err := core.ParseSection(id)
			if err != nil {
				return "", err
			}
			return s.Title() + " draft", nil
		}
		return "", nil
	})
	return m
}

// Brief is a single message carrying every required scope field.
const Brief = "company: Acme; region: EMEA; persona: CHRO; product: talent intelligence; depth: deep dive; tone: executive briefing"
