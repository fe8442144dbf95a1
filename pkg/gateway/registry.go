// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the multi-provider orchestration core: a
// registry of configured storage providers, a health monitor that keeps
// their status fresh, a selection policy, and an orchestrator that executes
// operations with single-hop fallback.
package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/storagegw/storagegw/pkg/blobstore"
)

// Provider is a registered backend together with its selection and health
// metadata. Everything except the health fields is immutable after
// registration; the health fields are written by the health monitor (and by
// synchronous re-checks during a switch) and read on every request path, so
// they are guarded by their own mutex.
type Provider struct {
	name     string
	kind     string
	priority int
	primary  bool
	backend  blobstore.Backend

	mu        sync.RWMutex
	healthy   bool
	lastCheck time.Time
}

// NewProvider creates a provider entry. Lower priority values are preferred
// when selecting a fallback. Providers start unhealthy until the first probe.
func NewProvider(name, kind string, priority int, primary bool, backend blobstore.Backend) *Provider {
	return &Provider{
		name:     name,
		kind:     kind,
		priority: priority,
		primary:  primary,
		backend:  backend,
	}
}

// Name returns the unique provider name.
func (p *Provider) Name() string { return p.name }

// Kind returns the backend kind tag (e.g. "s3", "filesystem").
func (p *Provider) Kind() string { return p.kind }

// Priority returns the fallback preference; lower is preferred.
func (p *Provider) Priority() int { return p.priority }

// Primary reports whether this is the configured default provider.
func (p *Provider) Primary() bool { return p.primary }

// Backend returns the underlying storage backend.
func (p *Provider) Backend() blobstore.Backend { return p.backend }

// Health returns the last known health status and the time of the last probe.
func (p *Provider) Health() (bool, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy, p.lastCheck
}

// Healthy returns the last known health status.
func (p *Provider) Healthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
}

func (p *Provider) setHealth(healthy bool, at time.Time) {
	p.mu.Lock()
	p.healthy = healthy
	p.lastCheck = at
	p.mu.Unlock()
}

// ProviderHealth is a read-only view of one provider's status, exposed to
// callers (dashboards, the providers endpoint) and never mutated by them.
type ProviderHealth struct {
	Name            string    `json:"name"`
	Kind            string    `json:"kind"`
	Priority        int       `json:"priority"`
	Primary         bool      `json:"primary"`
	Current         bool      `json:"current"`
	Healthy         bool      `json:"healthy"`
	LastHealthCheck time.Time `json:"last_health_check"`
}

// Registry owns the set of configured providers. The set is built once at
// startup and is immutable afterwards: no provider is added or removed at
// runtime, only health state mutates.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Provider
	order   []*Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Provider)}
}

// Register adds a provider at startup. Registration order is preserved and
// used as the tie-break for equal priorities.
func (r *Registry) Register(p *Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[p.name]; exists {
		return fmt.Errorf("provider %q: %w", p.name, ErrDuplicateProvider)
	}
	r.entries[p.name] = p
	r.order = append(r.order, p)
	return nil
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, ErrProviderNotFound)
	}
	return p, nil
}

// All returns all providers in registration order.
func (r *Registry) All() []*Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Provider, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns a point-in-time health view of all providers in
// registration order. The Current flag is left unset; the gateway fills it
// in from the selection state.
func (r *Registry) Snapshot() []ProviderHealth {
	all := r.All()
	out := make([]ProviderHealth, 0, len(all))
	for _, p := range all {
		healthy, lastCheck := p.Health()
		out = append(out, ProviderHealth{
			Name:            p.name,
			Kind:            p.kind,
			Priority:        p.priority,
			Primary:         p.primary,
			Healthy:         healthy,
			LastHealthCheck: lastCheck,
		})
	}
	return out
}
