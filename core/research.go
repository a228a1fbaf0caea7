package core

import (
	"strings"
	"time"
	"unicode"
)

// SearchTask is one routed research query against a single channel.
type SearchTask struct {
	ID      string  `json:"id"`
	Channel Channel `json:"channel"`
	Query   string  `json:"query"`
	Goal    string  `json:"goal"`
	Phase   string  `json:"phase,omitempty"`
}

// Key is the identity used for task deduplication.
func (t SearchTask) Key() string {
	return t.Channel.String() + "|" + NormalizeQuery(t.Query)
}

// NormalizeQuery lowercases q, collapses internal whitespace and strips
// surrounding punctuation.
func NormalizeQuery(q string) string {
	q = strings.Join(strings.Fields(strings.ToLower(q)), " ")
	return strings.TrimFunc(q, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// Hit is a normalized search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Source is a deduplicated citation exposed with the report.
type Source struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Channel Channel `json:"channel"`
}

// Bundle is the channel-grouped evidence of one research sweep. It is built
// from scratch per sweep and not modified afterwards.
type Bundle struct {
	Company     string            `json:"company"`
	Scope       Scope             `json:"scope"`
	Hits        map[Channel][]Hit `json:"hits"`
	Counts      map[Channel]int   `json:"counts"`
	Sources     []Source          `json:"sources"`
	Failed      []Channel         `json:"failed,omitempty"`
	CollectedAt time.Time         `json:"collected_at"`
}

// NewBundle returns an empty bundle with every mandatory channel present.
func NewBundle(company string, scope Scope) *Bundle {
	b := &Bundle{
		Company: company,
		Scope:   scope,
		Hits:    make(map[Channel][]Hit),
		Counts:  make(map[Channel]int),
		Sources: []Source{},
	}
	for _, c := range MandatoryChannels() {
		b.Hits[c] = []Hit{}
		b.Counts[c] = 0
	}
	return b
}

// Add appends hits for a channel and records their sources. Sources are
// deduplicated by URL, falling back to title when a hit has no URL.
func (b *Bundle) Add(c Channel, hits []Hit) {
	b.Hits[c] = append(b.Hits[c], hits...)
	b.Counts[c] = len(b.Hits[c])
	for _, h := range hits {
		if h.URL == "" && h.Title == "" {
			continue
		}
		if b.hasSource(h) {
			continue
		}
		b.Sources = append(b.Sources, Source{Title: h.Title, URL: h.URL, Channel: c})
	}
}

// MarkFailed records a channel that produced at least one error.
func (b *Bundle) MarkFailed(c Channel) {
	for _, f := range b.Failed {
		if f == c {
			return
		}
	}
	b.Failed = append(b.Failed, c)
}

func (b *Bundle) hasSource(h Hit) bool {
	for _, s := range b.Sources {
		if h.URL != "" && s.URL == h.URL {
			return true
		}
		if h.URL == "" && s.URL == "" && s.Title == h.Title {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	out := *b
	out.Hits = make(map[Channel][]Hit, len(b.Hits))
	for c, hits := range b.Hits {
		out.Hits[c] = append([]Hit{}, hits...)
	}
	out.Counts = make(map[Channel]int, len(b.Counts))
	for c, n := range b.Counts {
		out.Counts[c] = n
	}
	out.Sources = append([]Source{}, b.Sources...)
	out.Failed = append([]Channel(nil), b.Failed...)
	return &out
}
