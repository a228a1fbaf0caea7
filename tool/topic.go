package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/accountplan/core"
)

// Searcher is the subset of Tool a topical adapter delegates to.
type Searcher interface {
	Search(ctx context.Context, query string) ([]core.Hit, error)
}

// TopicSearch serves a channel without a dedicated upstream (finance,
// leadership, talent, competitors) by running its queries through a general
// web backend.
type TopicSearch struct {
	name    string
	channel core.Channel
	backend Searcher
}

// NewTopicSearch binds a channel to a backend.
func NewTopicSearch(channel core.Channel, backend Searcher) *TopicSearch {
	return &TopicSearch{
		name:    fmt.Sprintf("%s_topic", channel),
		channel: channel,
		backend: backend,
	}
}

// Name implements Tool.
func (t *TopicSearch) Name() string { return t.name }

// Channel implements Tool.
func (t *TopicSearch) Channel() core.Channel { return t.channel }

// Search implements Tool.
func (t *TopicSearch) Search(ctx context.Context, query string) ([]core.Hit, error) {
	hits, err := t.backend.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []core.Hit{}
	}
	return hits, nil
}
