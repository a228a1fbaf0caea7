// Package render turns an account plan into exportable documents.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/hupe1980/accountplan/core"
)

//go:embed report.html.tmpl
var reportTemplate string

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"blocks": Blocks,
	"date":   func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 UTC") },
}).Parse(reportTemplate))

// Document is the view of a plan handed to the renderers.
type Document struct {
	Company  string
	Version  int
	Updated  time.Time
	Scope    core.Scope
	Sections []DocSection
	Sources  []core.Source
}

// DocSection is one titled section in plan order.
type DocSection struct {
	ID      string
	Title   string
	Content string
}

// NewDocument orders the plan sections and attaches the research sources.
func NewDocument(plan *core.AccountPlan, sources []core.Source) Document {
	doc := Document{
		Company: plan.CompanyName,
		Version: plan.Version,
		Updated: plan.UpdatedAt,
		Scope:   plan.Scope,
		Sources: sources,
	}
	for _, s := range core.Sections() {
		doc.Sections = append(doc.Sections, DocSection{
			ID:      s.String(),
			Title:   s.Title(),
			Content: strings.TrimSpace(plan.Sections[s]),
		})
	}
	return doc
}

// Render encodes the document in the given format.
func Render(doc Document, f Format) ([]byte, error) {
	switch f {
	case FormatHTML:
		var buf bytes.Buffer
		if err := htmlTmpl.Execute(&buf, doc); err != nil {
			return nil, fmt.Errorf("render html: %w", err)
		}
		return buf.Bytes(), nil
	case FormatMarkdown:
		return Markdown(doc), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// Markdown renders the document as Markdown. Section bodies are model
// written Markdown and are emitted as-is.
func Markdown(doc Document) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Account Plan: %s\n\n", doc.Company)
	fmt.Fprintf(&b, "_Version %d · updated %s_\n\n", doc.Version, doc.Updated.UTC().Format("2006-01-02 15:04 UTC"))
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, s.Content)
	}
	if len(doc.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for _, src := range doc.Sources {
			if src.URL == "" {
				fmt.Fprintf(&b, "- %s (%s)\n", src.Title, src.Channel)
				continue
			}
			fmt.Fprintf(&b, "- [%s](%s) (%s)\n", src.Title, src.URL, src.Channel)
		}
	}
	return []byte(strings.TrimRight(b.String(), "\n") + "\n")
}

// Block is a paragraph, heading or bullet list of a section body.
type Block struct {
	Heading string
	Text    string
	Items   []string
}

// Blocks splits light Markdown into paragraphs, headings and bullet lists.
// Inline markup is dropped; html/template escapes the rest.
func Blocks(content string) []Block {
	var (
		out  []Block
		para []string
		list []string
	)
	flush := func() {
		if len(para) > 0 {
			out = append(out, Block{Text: strings.Join(para, " ")})
			para = nil
		}
		if len(list) > 0 {
			out = append(out, Block{Items: list})
			list = nil
		}
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "#"):
			flush()
			out = append(out, Block{Heading: stripInline(strings.TrimLeft(line, "# "))})
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "), strings.HasPrefix(line, "• "):
			if len(para) > 0 {
				out = append(out, Block{Text: strings.Join(para, " ")})
				para = nil
			}
			_, item, _ := strings.Cut(line, " ")
			list = append(list, stripInline(item))
		default:
			if len(list) > 0 {
				out = append(out, Block{Items: list})
				list = nil
			}
			para = append(para, stripInline(line))
		}
	}
	flush()
	return out
}

func stripInline(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(strings.TrimSpace(s))
}
