// Package tool implements the research channel adapters: one opaque search
// function per channel returning normalized hits, plus the registry the
// research orchestrator resolves channels through.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/accountplan/core"
)

// Tool is a channel adapter.
//
// Implementations should:
//   - Return hits in relevance order with HTML already stripped
//   - Return an empty slice, not an error, when nothing matches
//   - Honour ctx cancellation so the per-call timeout can interrupt them
//   - Be safe for concurrent use across sessions
type Tool interface {
	// Name returns the unique identifier for this adapter.
	Name() string

	// Channel is the research channel this adapter serves.
	Channel() core.Channel

	// Search runs one query.
	Search(ctx context.Context, query string) ([]core.Hit, error)
}

// ToolError represents errors that occur during adapter execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the adapter that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Registry maps channels to adapters. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[core.Channel]Tool
}

// NewRegistry creates a registry holding the given adapters. A later adapter
// for the same channel replaces an earlier one.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[core.Channel]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces the adapter for t.Channel().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Channel()] = t
}

// Lookup returns the adapter for a channel.
func (r *Registry) Lookup(c core.Channel) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[c]
	return t, ok
}

// Channels lists the channels with a registered adapter in enumeration order.
func (r *Registry) Channels() []core.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Channel, 0, len(r.tools))
	for c := range r.tools {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
