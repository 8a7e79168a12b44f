// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnvKeys = []string{
	EnvAPIURL, EnvAPITimeout, EnvDownloadDir, EnvLogLevel, EnvMetricsAddr,
	EnvOTelEnabled, EnvOTelExporter, EnvOTelEndpoint, EnvOTelSampling,
	EnvFFprobeBin, EnvFFprobeTimeout,
	EnvMockListenAddr, EnvMockOutputsDir, EnvMockFailWith, EnvMockRateLimit, EnvMockDelay,
	EnvShutdownTimeout,
}

// clearEnv blanks every key the loader reads; empty values mean "use default".
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnvKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, DefaultAPIBaseURL, cfg.API.BaseURL)
	assert.Zero(t, cfg.API.Timeout)
	assert.True(t, filepath.IsAbs(cfg.Download.Dir))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.ListenAddr)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, DefaultMockListenAddr, cfg.Mock.ListenAddr)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dl := t.TempDir()
	path := writeConfig(t, "config.yaml", `
api:
  baseURL: http://detector:9000
  timeout: 90s
download:
  dir: `+dl+`
log:
  level: debug
metrics:
  listenAddr: 127.0.0.1:9090
telemetry:
  enabled: true
  exporter: http
  endpoint: collector:4318
  samplingRate: 0.25
ffprobe:
  bin: /opt/ffmpeg/bin/ffprobe
  timeout: 3s
mock:
  listenAddr: 127.0.0.1:8001
  failWith: model failure
  rateLimit: 10
  processingDelay: 2s
shutdownTimeout: 1s
`)

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://detector:9000", cfg.API.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.API.Timeout)
	assert.Equal(t, dl, cfg.Download.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Metrics.ListenAddr)
	assert.Equal(t, TelemetryConfig{Enabled: true, Exporter: "http", Endpoint: "collector:4318", SamplingRate: 0.25}, cfg.Telemetry)
	assert.Equal(t, FFprobeConfig{Bin: "/opt/ffmpeg/bin/ffprobe", Timeout: 3 * time.Second}, cfg.FFprobe)
	assert.Equal(t, "model failure", cfg.Mock.FailWith)
	assert.Equal(t, 10, cfg.Mock.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.Mock.ProcessingDelay)
	assert.Equal(t, time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yml", "api:\n  baseURL: http://from-file:1\nlog:\n  level: warn\n")
	t.Setenv(EnvAPIURL, "https://from-env.example")
	t.Setenv(EnvMockRateLimit, "5")
	t.Setenv(EnvOTelEnabled, "yes")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://from-env.example", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level, "file value survives when env is empty")
	assert.Equal(t, 5, cfg.Mock.RateLimit)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Contains(t, l.ConsumedEnvKeys, EnvAPIURL)
	assert.Len(t, l.ConsumedEnvKeys, len(allEnvKeys))
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", "api:\n  baseUrl: http://typo:1\n")

	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField))
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.json", "{}")
	_, err := NewLoader(path, "dev").Load()
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", "log:\n  level: info\n---\nlog:\n  level: debug\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", "")
	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIBaseURL, cfg.API.BaseURL)
}

func TestLoad_BadFileDuration(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", "api:\n  timeout: soon\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.timeout")
}

func TestLoad_ValidationFailure(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIURL, "ftp://detector")
	t.Setenv(EnvLogLevel, "loud")

	_, err := NewLoader("", "dev").Load()
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	fields := make([]string, 0, len(ve.Errors()))
	for _, fe := range ve.Errors() {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"api.baseURL", "log.level"}, fields)
}

func TestLoad_FileExpandsEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("VT_TEST_DL", dir)
	path := writeConfig(t, "config.yaml", "download:\n  dir: ${VT_TEST_DL}/out\n")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.Download.Dir)
}
