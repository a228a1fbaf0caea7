package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/accountplan/core"
)

const wikipediaSummaryURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"

// Wikipedia fetches the lead summary of the article matching the query.
type Wikipedia struct {
	opts HTTPOptions
}

// NewWikipedia creates the wikipedia adapter.
func NewWikipedia(optFns ...func(o *HTTPOptions)) *Wikipedia {
	var opts HTTPOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.defaults(wikipediaSummaryURL)
	return &Wikipedia{opts: opts}
}

type wikiSummary struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Name implements Tool.
func (w *Wikipedia) Name() string { return "knowledge_base" }

// Channel implements Tool.
func (w *Wikipedia) Channel() core.Channel { return core.ChannelWikipedia }

// Search implements Tool. A missing article is an empty result.
func (w *Wikipedia) Search(ctx context.Context, query string) ([]core.Hit, error) {
	title := strings.ReplaceAll(strings.TrimSpace(query), " ", "_")
	if title == "" {
		return []core.Hit{}, nil
	}
	body, status, err := fetch(ctx, w.Name(), w.opts, w.opts.BaseURL+url.PathEscape(title), "application/json")
	if status == http.StatusNotFound {
		return []core.Hit{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s wikiSummary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, &ToolError{Tool: w.Name(), Message: err.Error(), Code: "parse", Err: err}
	}
	if s.Extract == "" || s.Type == "disambiguation" {
		return []core.Hit{}, nil
	}
	snippet := s.Extract
	if s.Description != "" {
		snippet = s.Description + ". " + snippet
	}
	return CleanHits([]core.Hit{{Title: s.Title, URL: s.ContentURLs.Desktop.Page, Snippet: snippet}}, 1), nil
}
