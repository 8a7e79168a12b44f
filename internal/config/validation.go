// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FieldError is a single validation failure.
type FieldError struct {
	Field   string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every failure found by Validate.
type ValidationError struct {
	errors []FieldError
}

// Errors returns the individual validation errors making up the validation failure.
func (e ValidationError) Errors() []FieldError {
	return e.errors
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// validator accumulates validation errors.
type validator struct {
	errors []FieldError
}

func (v *validator) add(field, message string, value any) {
	v.errors = append(v.errors, FieldError{Field: field, Value: value, Message: message})
}

func (v *validator) err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

func (v *validator) url(field, value string, allowedSchemes ...string) {
	if value == "" {
		v.add(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.add(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	if u.Host == "" {
		v.add(field, "URL must have a host", value)
		return
	}
	if len(allowedSchemes) > 0 && !slices.Contains(allowedSchemes, u.Scheme) {
		v.add(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, allowedSchemes), value)
	}
}

func (v *validator) oneOf(field, value string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		v.add(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
	}
}

func (v *validator) nonNegative(field string, value int) {
	if value < 0 {
		v.add(field, fmt.Sprintf("value cannot be negative, got %d", value), value)
	}
}

func (v *validator) nonNegativeDuration(field string, d time.Duration) {
	if d < 0 {
		v.add(field, fmt.Sprintf("duration cannot be negative, got %s", d), d)
	}
}

func (v *validator) listenAddr(field, addr string) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		v.add(field, fmt.Sprintf("invalid listen address: %v", err), addr)
	}
}

func (v *validator) path(field, p string) {
	if strings.TrimSpace(p) == "" {
		v.add(field, "path cannot be empty", p)
		return
	}
	if strings.Contains(p, "..") {
		v.add(field, "path contains traversal sequences (..)", p)
	}
}

// Validate checks the effective configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := &validator{}

	v.url("api.baseURL", cfg.API.BaseURL, "http", "https")
	v.nonNegativeDuration("api.timeout", cfg.API.Timeout)
	v.path("download.dir", cfg.Download.Dir)

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil || cfg.Log.Level == "" {
		v.add("log.level", fmt.Sprintf("unknown log level %q", cfg.Log.Level), cfg.Log.Level)
	}

	if cfg.Metrics.ListenAddr != "" {
		v.listenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
	}

	if cfg.Telemetry.Enabled {
		v.oneOf("telemetry.exporter", cfg.Telemetry.Exporter, "grpc", "http")
		if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
			v.add("telemetry.endpoint", "endpoint cannot be empty when telemetry is enabled", cfg.Telemetry.Endpoint)
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.add("telemetry.samplingRate", fmt.Sprintf("value must be between 0 and 1, got %v", cfg.Telemetry.SamplingRate), cfg.Telemetry.SamplingRate)
	}

	v.nonNegativeDuration("ffprobe.timeout", cfg.FFprobe.Timeout)

	v.listenAddr("mock.listenAddr", cfg.Mock.ListenAddr)
	if cfg.Mock.OutputsDir != "" {
		v.path("mock.outputsDir", cfg.Mock.OutputsDir)
	}
	v.nonNegative("mock.rateLimit", cfg.Mock.RateLimit)
	v.nonNegativeDuration("mock.processingDelay", cfg.Mock.ProcessingDelay)

	if cfg.ShutdownTimeout <= 0 {
		v.add("shutdownTimeout", "value must be positive", cfg.ShutdownTimeout)
	}

	return v.err()
}
