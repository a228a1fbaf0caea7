package render

import (
	"fmt"
	"strings"
)

// Format is an export document format.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts "html", "md" and "markdown". An empty value is HTML.
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "html":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", v)
	}
}

// Ext is the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// FileName is the artifact name of a plan version, e.g. "plan-v3.html".
func FileName(version int, f Format) string {
	return fmt.Sprintf("plan-v%d.%s", version, f.Ext())
}
