package tool

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/hupe1980/accountplan/core"
)

const googleNewsURL = "https://news.google.com/rss/search"

// NewsSearch reads the Google News RSS search feed.
type NewsSearch struct {
	opts HTTPOptions
}

// NewNewsSearch creates the news adapter.
func NewNewsSearch(optFns ...func(o *HTTPOptions)) *NewsSearch {
	var opts HTTPOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.defaults(googleNewsURL)
	return &NewsSearch{opts: opts}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

// Name implements Tool.
func (n *NewsSearch) Name() string { return "news_radar" }

// Channel implements Tool.
func (n *NewsSearch) Channel() core.Channel { return core.ChannelNews }

// Search implements Tool.
func (n *NewsSearch) Search(ctx context.Context, query string) ([]core.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []core.Hit{}, nil
	}
	params := url.Values{"q": {query}, "hl": {"en-US"}, "gl": {"US"}, "ceid": {"US:en"}}
	body, _, err := fetch(ctx, n.Name(), n.opts, n.opts.BaseURL+"?"+params.Encode(), "application/rss+xml")
	if err != nil {
		return nil, err
	}
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, &ToolError{Tool: n.Name(), Message: err.Error(), Code: "parse", Err: err}
	}
	hits := make([]core.Hit, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		snippet := it.Description
		if it.PubDate != "" {
			snippet = it.PubDate + " · " + snippet
		}
		hits = append(hits, core.Hit{Title: it.Title, URL: it.Link, Snippet: snippet})
	}
	return CleanHits(hits, 0), nil
}
