// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultProbeTimeout bounds synchronous health re-checks.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultStaleAfter is how old a cached health flag may be before a
	// switch triggers a synchronous re-probe.
	DefaultStaleAfter = time.Minute
)

// Selector decides which provider services a call: it tracks the current
// provider name and picks the best healthy alternative on failover.
type Selector struct {
	reg          *Registry
	probeTimeout time.Duration
	staleAfter   time.Duration

	mu      sync.RWMutex
	current string
}

// SelectorConfig tunes the selector. Zero values use defaults.
type SelectorConfig struct {
	// InitialProvider is the configured default. If empty, the provider
	// registered with the primary flag is used, then the first registered.
	InitialProvider string
	ProbeTimeout    time.Duration
	StaleAfter      time.Duration
}

// NewSelector creates a selector over the given registry.
func NewSelector(reg *Registry, cfg SelectorConfig) *Selector {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}

	current := cfg.InitialProvider
	if current == "" {
		for _, p := range reg.All() {
			if p.Primary() {
				current = p.Name()
				break
			}
		}
	}
	if current == "" {
		if all := reg.All(); len(all) > 0 {
			current = all[0].Name()
		}
	}

	return &Selector{
		reg:          reg,
		probeTimeout: cfg.ProbeTimeout,
		staleAfter:   cfg.StaleAfter,
		current:      current,
	}
}

// Current returns the provider named by the current selection.
func (s *Selector) Current() (*Provider, error) {
	s.mu.RLock()
	name := s.current
	s.mu.RUnlock()

	if name == "" {
		return nil, ErrNoProviderAvailable
	}
	p, err := s.reg.Get(name)
	if err != nil {
		return nil, fmt.Errorf("current provider %q: %w", name, ErrNoProviderAvailable)
	}
	return p, nil
}

// CurrentName returns the current provider name, or "" when unset.
func (s *Selector) CurrentName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// BestAlternative returns the healthy provider with the lowest priority
// value, excluding the given provider. Ties are broken by registration
// order. The second return value is false when no healthy alternative
// exists; callers must treat that as "no fallback available", not as an
// error source.
func (s *Selector) BestAlternative(exclude *Provider) (*Provider, bool) {
	var best *Provider
	for _, p := range s.reg.All() {
		if exclude != nil && p.Name() == exclude.Name() {
			continue
		}
		if !p.Healthy() {
			continue
		}
		if best == nil || p.Priority() < best.Priority() {
			best = p
		}
	}
	return best, best != nil
}

// SwitchTo changes the current provider after verifying the target exists
// and is healthy. When the cached health flag is stale (older than the
// configured threshold) a synchronous probe is performed and its result
// recorded. On any failure the current selection is left unchanged.
func (s *Selector) SwitchTo(ctx context.Context, name string) error {
	p, err := s.reg.Get(name)
	if err != nil {
		return err
	}

	healthy, checkedAt := p.Health()
	if time.Since(checkedAt) > s.staleAfter {
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		probeErr := p.Backend().HealthCheck(probeCtx)
		cancel()

		healthy = probeErr == nil
		p.setHealth(healthy, time.Now())
	}
	if !healthy {
		return fmt.Errorf("provider %q: %w", name, ErrProviderUnhealthy)
	}

	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
	return nil
}
