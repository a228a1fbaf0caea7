package tool

import (
	"context"
	"time"

	"github.com/hupe1980/accountplan/core"
	"golang.org/x/time/rate"
)

// Paced spaces consecutive calls to an upstream. Several adapters that share
// one upstream should share one limiter. It never runs calls in parallel; it
// only delays the next one.
type Paced struct {
	Tool
	limiter *rate.Limiter
}

// NewLimiter returns a limiter allowing one call per interval. A non-positive
// interval disables pacing.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// WithLimiter wraps t so every Search first waits on l.
func WithLimiter(t Tool, l *rate.Limiter) *Paced {
	return &Paced{Tool: t, limiter: l}
}

// Search waits for the limiter, then delegates. A wait cut short by ctx is
// reported as a tool error of the wrapped adapter.
func (p *Paced) Search(ctx context.Context, query string) ([]core.Hit, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ToolError{Tool: p.Name(), Message: err.Error(), Code: "paced", Err: err}
	}
	return p.Tool.Search(ctx, query)
}

// DefaultOptions configures DefaultRegistry.
type DefaultOptions struct {
	HTTP HTTPOptions
	// MinInterval spaces calls to each upstream.
	MinInterval time.Duration
}

// DefaultRegistry wires every mandatory channel: DuckDuckGo for web and the
// topical channels (sharing one limiter), Google News for news and the
// Wikipedia REST API for wikipedia.
func DefaultRegistry(optFns ...func(o *DefaultOptions)) *Registry {
	var opts DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	httpOpts := func(o *HTTPOptions) {
		o.Client = opts.HTTP.Client
		o.UserAgent = opts.HTTP.UserAgent
	}

	ddg := NewLimiter(opts.MinInterval)
	web := NewWebSearch(httpOpts)

	return NewRegistry(
		WithLimiter(web, ddg),
		WithLimiter(NewNewsSearch(httpOpts), NewLimiter(opts.MinInterval)),
		WithLimiter(NewWikipedia(httpOpts), NewLimiter(opts.MinInterval)),
		WithLimiter(NewTopicSearch(core.ChannelFinance, web), ddg),
		WithLimiter(NewTopicSearch(core.ChannelLeadership, web), ddg),
		WithLimiter(NewTopicSearch(core.ChannelTalent, web), ddg),
		WithLimiter(NewTopicSearch(core.ChannelCompetitors, web), ddg),
	)
}
