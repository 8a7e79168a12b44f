// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/visiontrack/internal/log"
)

// Environment keys.
const (
	EnvAPIURL          = "VISIONTRACK_API_URL"
	EnvAPITimeout      = "VISIONTRACK_API_TIMEOUT"
	EnvDownloadDir     = "VISIONTRACK_DOWNLOAD_DIR"
	EnvLogLevel        = "LOG_LEVEL"
	EnvMetricsAddr     = "VISIONTRACK_METRICS_ADDR"
	EnvOTelEnabled     = "VISIONTRACK_OTEL_ENABLED"
	EnvOTelExporter    = "VISIONTRACK_OTEL_EXPORTER"
	EnvOTelEndpoint    = "VISIONTRACK_OTEL_ENDPOINT"
	EnvOTelSampling    = "VISIONTRACK_OTEL_SAMPLING_RATE"
	EnvFFprobeBin      = "VISIONTRACK_FFPROBE_BIN"
	EnvFFprobeTimeout  = "VISIONTRACK_FFPROBE_TIMEOUT"
	EnvMockListenAddr  = "VISIONTRACK_MOCK_LISTEN_ADDR"
	EnvMockOutputsDir  = "VISIONTRACK_MOCK_OUTPUTS_DIR"
	EnvMockFailWith    = "VISIONTRACK_MOCK_FAIL_WITH"
	EnvMockRateLimit   = "VISIONTRACK_MOCK_RATE_LIMIT"
	EnvMockDelay       = "VISIONTRACK_MOCK_PROCESSING_DELAY"
	EnvShutdownTimeout = "VISIONTRACK_SHUTDOWN_TIMEOUT"
)

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if value == "" {
			logger.Debug().
				Str("key", key).
				Str("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
		return value
	}
	return defaultValue
}

// ParseInt reads an integer from environment variable or returns default value.
// It falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Int("value", i).
		Str("source", "environment").
		Msg("using environment variable")
	return i
}

// ParseDuration reads a duration in Go duration format (e.g. "5s").
// It falls back to default on parse errors or empty variables and logs the choice.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Dur("value", d).
		Str("source", "environment").
		Msg("using environment variable")
	return d
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	return f
}
