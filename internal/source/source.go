// Package source defines the adapter interface and registry for upstream
// personal-data search APIs, plus the shared error taxonomy all adapters
// map their upstream vocabulary onto.
package source

import (
	"context"
	"sort"
	"sync"

	"github.com/nik-maltcev/datatrace/internal/model"
)

// Source wraps one upstream search API. Implementations are stateless
// aside from static config (base URL, credential, timeout) and must be
// safe for concurrent use.
type Source interface {
	// ID returns the unique source identifier.
	ID() string
	// Label returns the display name shown in results.
	Label() string
	// Priority orders sources in the fan-out; lower runs first.
	Priority() int
	// Search executes one query and returns a normalized result, or a
	// classified *Error on failure. A nil error always carries a result.
	Search(ctx context.Context, q model.Query) (*model.SourceResult, error)
	// Probe is a lightweight availability check on a distinct endpoint;
	// it must not consume the source's main rate limit.
	Probe(ctx context.Context) bool
}

// Registry holds the fixed set of sources created at process start.
// Sources are never removed, only disabled.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	enabled map[string]bool
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
		enabled: make(map[string]bool),
	}
}

// Register adds a source, enabled by default.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID()] = s
	r.enabled[s.ID()] = true
}

// Get returns a source by id, or nil if not registered.
func (r *Registry) Get(id string) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[id]
}

// SetEnabled toggles a source at runtime. Returns false for unknown ids.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[id]; !ok {
		return false
	}
	r.enabled[id] = enabled
	return true
}

// IsEnabled reports whether the source exists and is enabled.
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[id]
}

// Enabled returns all enabled sources sorted by ascending priority,
// with id as a deterministic tie-break.
func (r *Registry) Enabled() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for id, s := range r.sources {
		if r.enabled[id] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// List returns all registered source ids sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Priority() != all[j].Priority() {
			return all[i].Priority() < all[j].Priority()
		}
		return all[i].ID() < all[j].ID()
	})
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.ID()
	}
	return ids
}
