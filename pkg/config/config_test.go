// Copyright Storage Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
  timeout: 30s
health:
  interval: 10s
  probe_timeout: 2s
  stale_threshold: 45s
primary_provider: s3
providers:
  - name: s3
    type: s3
    enabled: true
    priority: 1
    params:
      bucket: uploads
      region: us-east-1
  - name: local
    type: filesystem
    enabled: true
    priority: 2
    params:
      base_dir: /var/lib/storagegw
  - name: scratch
    type: memory
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Health.Interval)
	assert.Equal(t, 2*time.Second, cfg.Health.ProbeTimeout)
	assert.Equal(t, 45*time.Second, cfg.Health.StaleThreshold)
	assert.Equal(t, "s3", cfg.Primary)

	enabled := cfg.EnabledProviders()
	require.Len(t, enabled, 2)
	assert.Equal(t, "s3", enabled[0].Name)
	assert.Equal(t, "uploads", enabled[0].Params["bucket"])
	assert.Equal(t, "local", enabled[1].Name)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: mem
    type: memory
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, 5*time.Second, cfg.Health.ProbeTimeout)
	assert.Equal(t, time.Minute, cfg.Health.StaleThreshold)
	assert.Equal(t, 1, cfg.Providers[0].Priority)
}

func TestLoadRejectsDuplicateProviderNames(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: a
    type: memory
    enabled: true
  - name: a
    type: filesystem
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider name")
}

func TestLoadRejectsUnknownPrimary(t *testing.T) {
	path := writeConfig(t, `
primary_provider: missing
providers:
  - name: mem
    type: memory
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary provider")
}

func TestLoadRejectsDisabledPrimary(t *testing.T) {
	path := writeConfig(t, `
primary_provider: s3
providers:
  - name: s3
    type: s3
    enabled: false
  - name: mem
    type: memory
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNoEnabledProviders(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: mem
    type: memory
    enabled: false
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STORAGEGW_HOST", "10.0.0.5")
	t.Setenv("STORAGEGW_PORT", "7070")
	t.Setenv("STORAGEGW_PRIMARY_PROVIDER", "mem")

	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
primary_provider: mem
providers:
  - name: mem
    type: memory
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Server.Host)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "mem", cfg.Primary)
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Primary)
	require.Len(t, cfg.EnabledProviders(), 1)
	assert.Equal(t, "memory", cfg.EnabledProviders()[0].Type)
}
