// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/storagegw/storagegw/pkg/observability/logging"
	"github.com/storagegw/storagegw/pkg/observability/metrics"
)

// DefaultHealthInterval is the default period between probe sweeps.
const DefaultHealthInterval = 30 * time.Second

// MonitorConfig tunes the health monitor. Zero values use defaults.
type MonitorConfig struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
}

// Monitor keeps every provider's health flag fresh by probing all backends
// periodically. Probes for different providers run concurrently so a slow
// backend cannot delay the others, and every probe is bounded by a timeout
// so a hung backend cannot starve the next sweep.
type Monitor struct {
	reg          *Registry
	interval     time.Duration
	probeTimeout time.Duration
	log          *logging.Logger
	metrics      *metrics.Metrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a health monitor over the registry. The metrics
// argument may be nil.
func NewMonitor(reg *Registry, cfg MonitorConfig, log *logging.Logger, m *metrics.Metrics) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHealthInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Monitor{
		reg:          reg,
		interval:     cfg.Interval,
		probeTimeout: cfg.ProbeTimeout,
		log:          log,
		metrics:      m,
	}
}

// Start runs one probe sweep synchronously, so health state is populated
// before Start returns, then launches the periodic loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("health monitor already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true

	m.sweep(loopCtx)
	go m.loop(loopCtx)
	return nil
}

// Stop cancels the periodic loop and waits for it to exit. No probe result
// is written to the registry after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}
	m.cancel()
	<-m.done
	m.started = false
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep probes every provider concurrently and waits for the results. The
// wait is bounded by the per-probe timeout, so a sweep can never overrun
// more than one tick.
func (m *Monitor) sweep(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range m.reg.All() {
		wg.Add(1)
		go func(p *Provider) {
			defer wg.Done()
			m.probe(ctx, p)
		}(p)
	}
	wg.Wait()
}

func (m *Monitor) probe(ctx context.Context, p *Provider) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Backend().HealthCheck(probeCtx)
	elapsed := time.Since(start)

	// The monitor may have been stopped while the probe was in flight;
	// a cancelled monitor must not mutate registry state.
	if ctx.Err() != nil {
		return
	}

	wasHealthy, _ := p.Health()
	healthy := err == nil
	p.setHealth(healthy, time.Now())

	m.metrics.RecordProbe(p.Name(), elapsed)
	m.metrics.RecordHealth(p.Name(), healthy)

	switch {
	case healthy && !wasHealthy:
		m.log.Info("provider became healthy",
			"provider", p.Name(),
			"probe_duration", elapsed)
	case !healthy && wasHealthy:
		m.log.Warn("provider became unhealthy",
			"provider", p.Name(),
			"probe_duration", elapsed,
			"error", err)
	default:
		m.log.Debug("health probe",
			"provider", p.Name(),
			"healthy", healthy,
			"probe_duration", elapsed)
	}
}
