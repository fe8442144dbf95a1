// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorStartProbesImmediately(t *testing.T) {
	reg := NewRegistry()
	healthy := newFakeBackend()
	broken := newFakeBackend()
	broken.setHealthErr(errors.New("dial tcp: connection refused"))
	require.NoError(t, reg.Register(NewProvider("good", "memory", 1, true, healthy)))
	require.NoError(t, reg.Register(NewProvider("bad", "memory", 2, false, broken)))

	m := NewMonitor(reg, MonitorConfig{Interval: time.Hour}, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	// The first sweep runs synchronously inside Start.
	good, err := reg.Get("good")
	require.NoError(t, err)
	bad, err := reg.Get("bad")
	require.NoError(t, err)

	assert.True(t, good.Healthy())
	assert.False(t, bad.Healthy())

	_, checkedAt := good.Health()
	assert.False(t, checkedAt.IsZero())
}

func TestMonitorDetectsRecovery(t *testing.T) {
	reg := NewRegistry()
	b := newFakeBackend()
	b.setHealthErr(errors.New("unavailable"))
	require.NoError(t, reg.Register(NewProvider("flappy", "memory", 1, true, b)))

	m := NewMonitor(reg, MonitorConfig{Interval: 5 * time.Millisecond}, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	p, err := reg.Get("flappy")
	require.NoError(t, err)
	assert.False(t, p.Healthy())

	b.setHealthErr(nil)
	require.Eventually(t, p.Healthy, time.Second, 5*time.Millisecond)
}

func TestMonitorDetectsFailure(t *testing.T) {
	reg := NewRegistry()
	b := newFakeBackend()
	require.NoError(t, reg.Register(NewProvider("flappy", "memory", 1, true, b)))

	m := NewMonitor(reg, MonitorConfig{Interval: 5 * time.Millisecond}, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	p, err := reg.Get("flappy")
	require.NoError(t, err)
	assert.True(t, p.Healthy())

	b.setHealthErr(errors.New("unavailable"))
	require.Eventually(t, func() bool { return !p.Healthy() }, time.Second, 5*time.Millisecond)
}

func TestMonitorProbeTimeoutBoundsHangingBackend(t *testing.T) {
	reg := NewRegistry()
	b := newFakeBackend()
	b.healthDelay = time.Minute
	require.NoError(t, reg.Register(NewProvider("stuck", "memory", 1, true, b)))

	m := NewMonitor(reg, MonitorConfig{Interval: time.Hour, ProbeTimeout: 20 * time.Millisecond}, nil, nil)

	start := time.Now()
	require.NoError(t, m.Start(context.Background()))
	m.Stop()

	assert.Less(t, time.Since(start), 5*time.Second)

	p, err := reg.Get("stuck")
	require.NoError(t, err)
	assert.False(t, p.Healthy())
}

func TestMonitorStartTwiceFails(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewProvider("a", "memory", 1, true, newFakeBackend())))

	m := NewMonitor(reg, MonitorConfig{Interval: time.Hour}, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.Error(t, m.Start(context.Background()))
}

func TestMonitorStopPreventsFurtherWrites(t *testing.T) {
	reg := NewRegistry()
	b := newFakeBackend()
	require.NoError(t, reg.Register(NewProvider("a", "memory", 1, true, b)))

	m := NewMonitor(reg, MonitorConfig{Interval: 5 * time.Millisecond}, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	m.Stop()

	p, err := reg.Get("a")
	require.NoError(t, err)
	_, before := p.Health()
	probes := b.callCount("health_check")

	time.Sleep(50 * time.Millisecond)

	_, after := p.Health()
	assert.Equal(t, before, after)
	assert.Equal(t, probes, b.callCount("health_check"))
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewProvider("a", "memory", 1, true, newFakeBackend())))

	m := NewMonitor(reg, MonitorConfig{Interval: time.Hour}, nil, nil)
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
	m.Stop()
}
