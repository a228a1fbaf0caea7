package model

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when a completion contains no JSON object.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// DecodeJSON extracts the outermost JSON object from a completion, tolerating
// Markdown code fences and leading or trailing prose, and decodes it into v.
func DecodeJSON(text string, v any) error {
	raw := ExtractJSON(text)
	if raw == "" {
		return ErrNoJSONObject
	}
	return json.Unmarshal([]byte(raw), v)
}

// ExtractJSON returns the substring spanning the first '{' to the last '}'
// after stripping code fences, or "" when there is none.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
