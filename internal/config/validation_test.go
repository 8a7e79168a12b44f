// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	cfg := Defaults()
	cfg.Download.Dir = os.TempDir()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"empty base url", func(c *AppConfig) { c.API.BaseURL = "" }, "api.baseURL"},
		{"base url without host", func(c *AppConfig) { c.API.BaseURL = "http://" }, "api.baseURL"},
		{"base url scheme", func(c *AppConfig) { c.API.BaseURL = "ws://x" }, "api.baseURL"},
		{"negative timeout", func(c *AppConfig) { c.API.Timeout = -time.Second }, "api.timeout"},
		{"download traversal", func(c *AppConfig) { c.Download.Dir = "../out" }, "download.dir"},
		{"log level", func(c *AppConfig) { c.Log.Level = "verbose" }, "log.level"},
		{"metrics addr", func(c *AppConfig) { c.Metrics.ListenAddr = "9090" }, "metrics.listenAddr"},
		{"otel exporter", func(c *AppConfig) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "zipkin" }, "telemetry.exporter"},
		{"otel endpoint", func(c *AppConfig) { c.Telemetry.Enabled = true; c.Telemetry.Endpoint = " " }, "telemetry.endpoint"},
		{"sampling", func(c *AppConfig) { c.Telemetry.SamplingRate = 1.5 }, "telemetry.samplingRate"},
		{"mock addr", func(c *AppConfig) { c.Mock.ListenAddr = "" }, "mock.listenAddr"},
		{"mock rate", func(c *AppConfig) { c.Mock.RateLimit = -1 }, "mock.rateLimit"},
		{"shutdown", func(c *AppConfig) { c.ShutdownTimeout = 0 }, "shutdownTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			require.Len(t, ve.Errors(), 1, err.Error())
			assert.Equal(t, tt.field, ve.Errors()[0].Field)
		})
	}
}

func TestValidationError_JoinsMessages(t *testing.T) {
	cfg := validConfig()
	cfg.API.BaseURL = ""
	cfg.Mock.RateLimit = -3

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.baseURL")
	assert.Contains(t, err.Error(), "; ")
	assert.Contains(t, err.Error(), "mock.rateLimit")
}

func TestResolveFFprobeBin(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/ffprobe", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }

	assert.Equal(t, "/opt/ffprobe", resolveFFprobeBinWithLookPath(" /opt/ffprobe ", missing))
	assert.Equal(t, "/usr/bin/ffprobe", resolveFFprobeBinWithLookPath("", found))
	assert.Empty(t, resolveFFprobeBinWithLookPath("", missing))
}
