// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for visiontrack.
//
// Precedence is ENV > YAML file > defaults. The file is decoded strictly:
// unknown keys are an error.
package config

import "time"

// Defaults.
const (
	DefaultAPIBaseURL      = "http://localhost:8000"
	DefaultDownloadDir     = "."
	DefaultLogLevel        = "info"
	DefaultMockListenAddr  = ":8000"
	DefaultOTelExporter    = "grpc"
	DefaultOTelEndpoint    = "localhost:4317"
	DefaultOTelSampling    = 1.0
	DefaultProbeTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// AppConfig is the effective runtime configuration.
type AppConfig struct {
	Version string

	API       APIConfig
	Download  DownloadConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
	FFprobe   FFprobeConfig
	Mock      MockConfig

	// ShutdownTimeout bounds graceful shutdown of servers started by the CLI.
	ShutdownTimeout time.Duration
}

// APIConfig points at the detection service.
type APIConfig struct {
	BaseURL string
	// Timeout bounds a whole submission. Zero means the request is bounded
	// only by its context.
	Timeout time.Duration
}

// DownloadConfig controls where results are saved.
type DownloadConfig struct {
	Dir string
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// FFprobeConfig locates ffprobe for duration discovery.
type FFprobeConfig struct {
	Bin     string
	Timeout time.Duration
}

// MockConfig configures the local stand-in detection endpoint.
type MockConfig struct {
	ListenAddr string
	// OutputsDir stores uploads; empty uses a temporary directory.
	OutputsDir string
	// FailWith, if set, makes every upload fail with this message.
	FailWith string
	// RateLimit caps uploads per minute; zero disables the limit.
	RateLimit       int
	ProcessingDelay time.Duration
}

// FileConfig mirrors the YAML layout. Pointers distinguish "unset" from zero.
type FileConfig struct {
	API       *APIFileConfig       `yaml:"api,omitempty"`
	Download  *DownloadFileConfig  `yaml:"download,omitempty"`
	Log       *LogFileConfig       `yaml:"log,omitempty"`
	Metrics   *MetricsFileConfig   `yaml:"metrics,omitempty"`
	Telemetry *TelemetryFileConfig `yaml:"telemetry,omitempty"`
	FFprobe   *FFprobeFileConfig   `yaml:"ffprobe,omitempty"`
	Mock      *MockFileConfig      `yaml:"mock,omitempty"`

	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
}

type APIFileConfig struct {
	BaseURL string `yaml:"baseURL,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type DownloadFileConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

type LogFileConfig struct {
	Level string `yaml:"level,omitempty"`
}

type MetricsFileConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}

type FFprobeFileConfig struct {
	Bin     string `yaml:"bin,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type MockFileConfig struct {
	ListenAddr      string `yaml:"listenAddr,omitempty"`
	OutputsDir      string `yaml:"outputsDir,omitempty"`
	FailWith        string `yaml:"failWith,omitempty"`
	RateLimit       *int   `yaml:"rateLimit,omitempty"`
	ProcessingDelay string `yaml:"processingDelay,omitempty"`
}
