// Package tools implements the expense and analytics tools the answer
// step can request, a registry describing them to the model, and an
// executor that runs approved tool calls against the expense store.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/randalmurphal/expenseagent/pkg/llm"
)

// Handler executes one tool call and returns its result content.
// Errors are reported to the model as content by the executor, so
// handlers should return an error only for genuine failures.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Registry is a thread-safe catalog of tools available to the agent.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	definition llm.Tool
	handler    Handler
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds or replaces a tool.
// Panics if the handler is nil or the definition has no name.
func (r *Registry) Register(def llm.Tool, h Handler) {
	if def.Name == "" {
		panic("tools: tool definition requires a name")
	}
	if h == nil {
		panic("tools: tool handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = entry{definition: def, handler: h}
}

// Get returns the handler for a tool name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.handler, true
}

// Has returns true if the tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Definitions returns all tool definitions sorted by name, ready to
// offer to the model.
func (r *Registry) Definitions() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.Tool, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.definition)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
