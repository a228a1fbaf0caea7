package tool

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/hupe1980/accountplan/core"
	"golang.org/x/net/html"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// WebSearch queries the DuckDuckGo HTML endpoint, which needs no API key.
// The same backend serves the topical channels through TopicSearch.
type WebSearch struct {
	opts HTTPOptions
}

// NewWebSearch creates the web adapter.
func NewWebSearch(optFns ...func(o *HTTPOptions)) *WebSearch {
	var opts HTTPOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.defaults(duckDuckGoURL)
	return &WebSearch{opts: opts}
}

// Name implements Tool.
func (w *WebSearch) Name() string { return "web_scout" }

// Channel implements Tool.
func (w *WebSearch) Channel() core.Channel { return core.ChannelWeb }

// Search implements Tool.
func (w *WebSearch) Search(ctx context.Context, query string) ([]core.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []core.Hit{}, nil
	}
	u := w.opts.BaseURL + "?" + url.Values{"q": {query}}.Encode()
	body, _, err := fetch(ctx, w.Name(), w.opts, u, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ToolError{Tool: w.Name(), Message: err.Error(), Code: "parse", Err: err}
	}
	return CleanHits(parseDuckDuckGo(doc), 0), nil
}

// parseDuckDuckGo walks the result list: each "result__a" anchor opens a hit
// and the following "result__snippet" element fills its snippet.
func parseDuckDuckGo(doc *html.Node) []core.Hit {
	hits := []core.Hit{}
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				hits = append(hits, core.Hit{Title: textContent(n), URL: resolveDuckDuckGoLink(attr(n, "href"))})
				return
			case hasClass(n, "result__snippet") && len(hits) > 0:
				hits[len(hits)-1].Snippet = textContent(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return hits
}

// resolveDuckDuckGoLink unwraps redirect links of the form
// //duckduckgo.com/l/?uddg=<target>.
func resolveDuckDuckGoLink(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
