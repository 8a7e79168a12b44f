// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/ManuGH/visiontrack/internal/config"
	xglog "github.com/ManuGH/visiontrack/internal/log"
	"github.com/ManuGH/visiontrack/internal/telemetry"
	"github.com/ManuGH/visiontrack/internal/version"
)

// Globals are flags shared by every command.
type Globals struct {
	Config string `help:"Path to config file (YAML)" type:"path" env:"VISIONTRACK_CONFIG"`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Submit     SubmitCmd     `cmd:"" help:"Upload a video and wait for the processed result"`
	UI         UICmd         `cmd:"" name:"ui" help:"Interactive terminal UI"`
	Watch      WatchCmd      `cmd:"" help:"Process videos dropped into a directory"`
	MockServer MockServerCmd `cmd:"" name:"mock-server" help:"Run a local mock detection service"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("visiontrack"),
		kong.Description("Upload videos for object detection and review the results."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// runtime is the per-command environment built from configuration.
type runtime struct {
	cfg       config.AppConfig
	logger    zerolog.Logger
	telemetry *telemetry.Provider
}

// setup loads configuration and configures logging and tracing. Logs go to
// logOut.
func (g *Globals) setup(ctx context.Context, logOut io.Writer) (*runtime, error) {
	xglog.Configure(xglog.Config{
		Level:   config.DefaultLogLevel,
		Output:  logOut,
		Service: "visiontrack",
		Version: version.Version,
	})

	loader := config.NewLoader(g.Config, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	xglog.Reconfigure(xglog.Config{
		Level:   cfg.Log.Level,
		Output:  logOut,
		Service: "visiontrack",
		Version: cfg.Version,
	})
	logger := xglog.WithComponent("cli")

	source := "env+defaults"
	if g.Config != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, g.Config).
		Msg("loaded configuration")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    telemetry.DefaultServiceName,
		ServiceVersion: cfg.Version,
		Environment:    "local",
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, telemetry: tp}, nil
}

// close flushes telemetry within the configured shutdown timeout.
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	if err := r.telemetry.Shutdown(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// VersionCmd prints build information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintln(os.Stdout, version.String())
	return nil
}
