// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/visiontrack/internal/clock"
	"github.com/ManuGH/visiontrack/internal/config"
	"github.com/ManuGH/visiontrack/internal/detect"
	xglog "github.com/ManuGH/visiontrack/internal/log"
	"github.com/ManuGH/visiontrack/internal/platform/httpx"
	"github.com/ManuGH/visiontrack/internal/playback"
	"github.com/ManuGH/visiontrack/internal/session"
)

// services are the collaborators a session controller is assembled from.
type services struct {
	client     *detect.Client
	downloader *playback.HTTPDownloader
	prober     playback.FFprobe
}

func newServices(cfg config.AppConfig) (*services, error) {
	client, err := detect.New(cfg.API.BaseURL,
		detect.WithHTTPClient(httpx.NewUploadClient(cfg.API.Timeout)),
		detect.WithLogger(xglog.WithComponent("detect")),
	)
	if err != nil {
		return nil, fmt.Errorf("detection client: %w", err)
	}
	return &services{
		client:     client,
		downloader: playback.NewHTTPDownloader(httpx.NewDownloadClient(), xglog.WithComponent("download")),
		prober:     playback.FFprobe{Bin: cfg.FFprobe.Bin, Timeout: cfg.FFprobe.Timeout},
	}, nil
}

// newController wires the controller with a headless player per result.
func (s *services) newController(cfg config.AppConfig) *session.Controller {
	logger := xglog.WithComponent("session")
	playerLogger := xglog.WithComponent("playback")
	factory := func(locator string) *playback.Player {
		h := playback.NewVirtualHandle(locator, s.prober, clock.Real{}, playerLogger)
		return playback.NewPlayer(locator, h,
			playback.WithLogger(playerLogger),
			playback.WithDownloader(s.downloader, cfg.Download.Dir),
		)
	}
	return session.New(s.client,
		session.WithLogger(logger),
		session.WithPlayerFactory(factory),
	)
}

// serveMetrics exposes /metrics on addr until ctx is done. Empty addr disables it.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, shutdown time.Duration, logger zerolog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdown)
		defer cancel()
		return srv.Shutdown(sctx)
	})
}
