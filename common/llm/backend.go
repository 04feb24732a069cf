package llm

import (
	"context"
	"log/slog"
	"sort"
)

// Backend is one provider+model pair reachable with a chat-completion call.
// Invoke never returns an error: every failure is folded into the Outcome.
// Implementations must be safe for concurrent use.
type Backend interface {
	Invoke(ctx context.Context, inv Invocation) Outcome
	ID() string
}

// Registry maps ModelIdentifiers to backends. It is built once at startup
// and read-only afterwards.
type Registry struct {
	backends map[string]Backend
}

func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.ID()] = b
	}
	return r
}

// NewRegistryFromConfigs builds a backend per config. Configs without an API
// key are skipped with a warning so a partially configured deployment still
// serves the backends it has.
func NewRegistryFromConfigs(ctx context.Context, cfgs []Config) (*Registry, error) {
	var backends []Backend
	for _, cfg := range cfgs {
		if cfg.APIKey == "" {
			slog.WarnContext(ctx, "backend disabled, no API key", "backend", cfg.ID, "provider", cfg.Provider)
			continue
		}
		b, err := NewBackend(cfg)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	return NewRegistry(backends...), nil
}

func (r *Registry) Get(id string) (Backend, bool) {
	b, ok := r.backends[id]
	return b, ok
}

// Invoke calls the backend registered under id. Unknown ids fail like any
// other backend failure.
func (r *Registry) Invoke(ctx context.Context, id string, inv Invocation) Outcome {
	b, ok := r.backends[id]
	if !ok {
		slog.WarnContext(ctx, "invoke on unknown backend", "backend", id)
		return Failed(FailureAPI, "unknown backend")
	}
	return b.Invoke(ctx, inv)
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
