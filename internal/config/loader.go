// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> strict file parse -> env -> resolve -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	cfg.FFprobe.Bin = ResolveFFprobeBin(cfg.FFprobe.Bin)
	if abs, err := filepath.Abs(cfg.Download.Dir); err == nil {
		cfg.Download.Dir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() AppConfig {
	return AppConfig{
		API:      APIConfig{BaseURL: DefaultAPIBaseURL},
		Download: DownloadConfig{Dir: DefaultDownloadDir},
		Log:      LogConfig{Level: DefaultLogLevel},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultOTelExporter,
			Endpoint:     DefaultOTelEndpoint,
			SamplingRate: DefaultOTelSampling,
		},
		FFprobe:         FFprobeConfig{Timeout: DefaultProbeTimeout},
		Mock:            MockConfig{ListenAddr: DefaultMockListenAddr},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	var err error
	if f.API != nil {
		setString(&cfg.API.BaseURL, f.API.BaseURL)
		if err = setDuration(&cfg.API.Timeout, "api.timeout", f.API.Timeout); err != nil {
			return err
		}
	}
	if f.Download != nil {
		setString(&cfg.Download.Dir, expandEnv(f.Download.Dir))
	}
	if f.Log != nil {
		setString(&cfg.Log.Level, f.Log.Level)
	}
	if f.Metrics != nil {
		setString(&cfg.Metrics.ListenAddr, f.Metrics.ListenAddr)
	}
	if t := f.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		if t.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
	if f.FFprobe != nil {
		setString(&cfg.FFprobe.Bin, expandEnv(f.FFprobe.Bin))
		if err = setDuration(&cfg.FFprobe.Timeout, "ffprobe.timeout", f.FFprobe.Timeout); err != nil {
			return err
		}
	}
	if m := f.Mock; m != nil {
		setString(&cfg.Mock.ListenAddr, m.ListenAddr)
		setString(&cfg.Mock.OutputsDir, expandEnv(m.OutputsDir))
		setString(&cfg.Mock.FailWith, m.FailWith)
		if m.RateLimit != nil {
			cfg.Mock.RateLimit = *m.RateLimit
		}
		if err = setDuration(&cfg.Mock.ProcessingDelay, "mock.processingDelay", m.ProcessingDelay); err != nil {
			return err
		}
	}
	return setDuration(&cfg.ShutdownTimeout, "shutdownTimeout", f.ShutdownTimeout)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.API.BaseURL = l.envString(EnvAPIURL, cfg.API.BaseURL)
	cfg.API.Timeout = l.envDuration(EnvAPITimeout, cfg.API.Timeout)
	cfg.Download.Dir = l.envString(EnvDownloadDir, cfg.Download.Dir)
	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Metrics.ListenAddr = l.envString(EnvMetricsAddr, cfg.Metrics.ListenAddr)

	cfg.Telemetry.Enabled = l.envBool(EnvOTelEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvOTelExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvOTelSampling, cfg.Telemetry.SamplingRate)

	cfg.FFprobe.Bin = l.envString(EnvFFprobeBin, cfg.FFprobe.Bin)
	cfg.FFprobe.Timeout = l.envDuration(EnvFFprobeTimeout, cfg.FFprobe.Timeout)

	cfg.Mock.ListenAddr = l.envString(EnvMockListenAddr, cfg.Mock.ListenAddr)
	cfg.Mock.OutputsDir = l.envString(EnvMockOutputsDir, cfg.Mock.OutputsDir)
	cfg.Mock.FailWith = l.envString(EnvMockFailWith, cfg.Mock.FailWith)
	cfg.Mock.RateLimit = l.envInt(EnvMockRateLimit, cfg.Mock.RateLimit)
	cfg.Mock.ProcessingDelay = l.envDuration(EnvMockDelay, cfg.Mock.ProcessingDelay)

	cfg.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, v, err)
	}
	*dst = d
	return nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
