// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/visiontrack/internal/dropzone"
	xglog "github.com/ManuGH/visiontrack/internal/log"
	"github.com/ManuGH/visiontrack/internal/mockdetect"
	"github.com/ManuGH/visiontrack/internal/playback"
	"github.com/ManuGH/visiontrack/internal/selection"
	"github.com/ManuGH/visiontrack/internal/session"
	"github.com/ManuGH/visiontrack/internal/tui"
	"github.com/ManuGH/visiontrack/internal/types"
)

// SubmitCmd processes a single file non-interactively.
type SubmitCmd struct {
	File     string `arg:"" name:"file" help:"Video file to upload" type:"existingfile"`
	Download bool   `help:"Save the processed video to the download directory"`
}

func (c *SubmitCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	rt, err := g.setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := newServices(rt.cfg)
	if err != nil {
		return err
	}
	ctrl := svc.newController(rt.cfg)
	defer func() { _ = ctrl.Close() }()

	var eg errgroup.Group
	mctx, cancelMetrics := context.WithCancel(ctx)
	serveMetrics(mctx, &eg, rt.cfg.Metrics.ListenAddr, rt.cfg.ShutdownTimeout, rt.logger)
	defer func() {
		cancelMetrics()
		_ = eg.Wait()
	}()

	snap, err := submitFile(ctx, ctrl, c.File, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Result: %s\n", snap.ResultLocator)

	if c.Download {
		dest := filepath.Join(rt.cfg.Download.Dir, playback.DownloadName)
		if err := svc.downloader.Download(ctx, snap.ResultLocator, dest); err != nil {
			return fmt.Errorf("download result: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Saved: %s\n", dest)
	}
	return nil
}

// submitFile selects path and blocks until the session finishes. Progress
// changes are written to out. A session that ends in error returns its
// user-facing message as the error.
func submitFile(ctx context.Context, ctrl *session.Controller, path string, out io.Writer) (session.Snapshot, error) {
	f, err := selection.FromPath(path)
	if err != nil {
		return session.Snapshot{}, err
	}

	done := make(chan session.Snapshot, 1)
	last := -1
	unsubscribe := ctrl.Subscribe(func(s session.Snapshot) {
		if s.State.IsActive() && s.Progress != last {
			last = s.Progress
			fmt.Fprintf(out, "%-24s %3d%%\n", s.Status().Title, s.Progress)
		}
		if s.State.IsTerminal() {
			select {
			case done <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := ctrl.SelectFile(f); err != nil {
		return session.Snapshot{}, err
	}

	select {
	case <-ctx.Done():
		_ = ctrl.Cancel()
		return session.Snapshot{}, ctx.Err()
	case s := <-done:
		if s.State == types.SessionError {
			return s, errors.New(s.ErrorMessage)
		}
		return s, nil
	}
}

// UICmd runs the interactive terminal front end.
type UICmd struct {
	LogFile string `help:"Write logs to this file instead of discarding them" type:"path"`
}

func (c *UICmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	var logOut io.Writer = io.Discard
	if c.LogFile != "" {
		// #nosec G304 -- path is chosen by the operator
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}

	rt, err := g.setup(ctx, logOut)
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := newServices(rt.cfg)
	if err != nil {
		return err
	}
	ctrl := svc.newController(rt.cfg)
	defer func() { _ = ctrl.Close() }()

	var eg errgroup.Group
	mctx, cancelMetrics := context.WithCancel(ctx)
	serveMetrics(mctx, &eg, rt.cfg.Metrics.ListenAddr, rt.cfg.ShutdownTimeout, rt.logger)
	defer func() {
		cancelMetrics()
		_ = eg.Wait()
	}()

	model := tui.New(ctrl, rt.cfg.Version)
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if m, ok := final.(tui.Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

// WatchCmd turns files dropped into a directory into sessions. A new file
// supersedes the one in flight.
type WatchCmd struct {
	Dir      string `arg:"" name:"dir" help:"Directory to watch" type:"existingdir"`
	Download bool   `help:"Save each processed video to the download directory"`
}

func (c *WatchCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	rt, err := g.setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	svc, err := newServices(rt.cfg)
	if err != nil {
		return err
	}
	ctrl := svc.newController(rt.cfg)
	defer func() { _ = ctrl.Close() }()

	w, err := dropzone.New(dropzone.Config{
		Dir:    c.Dir,
		Logger: xglog.WithComponent("dropzone"),
		Skip:   resultSkipper(c.Dir, rt.cfg.Download.Dir),
	})
	if err != nil {
		return err
	}

	finished := make(chan session.Snapshot, 8)
	unsubscribe := ctrl.Subscribe(forwardOutcomes(finished, rt.logger))
	defer unsubscribe()

	eg, gctx := errgroup.WithContext(ctx)
	serveMetrics(gctx, eg, rt.cfg.Metrics.ListenAddr, rt.cfg.ShutdownTimeout, rt.logger)

	eg.Go(func() error {
		return w.Run(gctx, func(path string) {
			f, err := selection.FromPath(path)
			if err != nil {
				rt.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("cannot read dropped file")
				return
			}
			if err := ctrl.SelectFile(f); err != nil {
				rt.logger.Warn().Err(err).Str(xglog.FieldFile, f.Name).Msg("dropped file rejected")
			}
		})
	})

	eg.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case s := <-finished:
				c.handleOutcome(gctx, rt, svc, s)
			}
		}
	})

	return eg.Wait()
}

func (c *WatchCmd) handleOutcome(ctx context.Context, rt *runtime, svc *services, s session.Snapshot) {
	logger := rt.logger.With().Str(xglog.FieldSessionID, s.ID).Str(xglog.FieldFile, s.FileName).Logger()
	if s.State == types.SessionError {
		logger.Warn().Str(xglog.FieldReason, s.ErrorMessage).Msg("processing failed")
		return
	}
	logger.Info().Str(xglog.FieldLocator, s.ResultLocator).Msg("processing complete")
	if !c.Download {
		return
	}
	dest := filepath.Join(rt.cfg.Download.Dir, resultName(s.FileName))
	if err := svc.downloader.Download(ctx, s.ResultLocator, dest); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldPath, dest).Msg("download failed")
		return
	}
	logger.Info().Str(xglog.FieldPath, dest).Msg("download saved")
}

// forwardOutcomes returns a subscriber that sends each finished session to
// out exactly once. Rejected selections re-notify the previous session and are
// not outcomes.
func forwardOutcomes(out chan<- session.Snapshot, logger zerolog.Logger) func(session.Snapshot) {
	var last string
	return func(s session.Snapshot) {
		if !s.State.IsTerminal() || s.Rejection != nil || s.ID == last {
			return
		}
		last = s.ID
		select {
		case out <- s:
		default:
			logger.Warn().Str(xglog.FieldSessionID, s.ID).Msg("result queue full, dropping outcome")
		}
	}
}

// resultSkipper keeps downloaded results from being picked up again when they
// land in the watched directory.
func resultSkipper(watchDir, downloadDir string) func(name string) bool {
	if !sameDir(watchDir, downloadDir) {
		return nil
	}
	return func(name string) bool {
		return strings.HasSuffix(name, playback.DownloadName)
	}
}

func sameDir(a, b string) bool {
	ra, errA := resolveDir(a)
	rb, errB := resolveDir(b)
	return errA == nil && errB == nil && ra == rb
}

func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// resultName derives a per-source download name so watched results do not
// overwrite each other.
func resultName(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if stem == "" || stem == "." {
		return playback.DownloadName
	}
	return stem + "-" + playback.DownloadName
}

// MockServerCmd runs the local stand-in for the detection service.
type MockServerCmd struct {
	Listen    string `help:"Listen address (overrides mock.listenAddr)"`
	Outputs   string `help:"Directory for stored uploads (overrides mock.outputsDir)" type:"path"`
	FailWith  string `name:"fail-with" help:"Fail every upload with this message"`
	PublicURL string `name:"public-url" help:"Base URL used in returned video_url values"`
}

func (c *MockServerCmd) Run(g *Globals) error {
	ctx, stop := signalContext()
	defer stop()

	rt, err := g.setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	mc := rt.cfg.Mock
	if c.Listen != "" {
		mc.ListenAddr = c.Listen
	}
	if c.Outputs != "" {
		mc.OutputsDir = c.Outputs
	}
	if c.FailWith != "" {
		mc.FailWith = c.FailWith
	}
	if mc.OutputsDir == "" {
		dir, err := os.MkdirTemp("", "visiontrack-mock-*")
		if err != nil {
			return fmt.Errorf("create outputs dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		mc.OutputsDir = dir
	}

	srv, err := mockdetect.New(mockdetect.Config{
		ListenAddr:       mc.ListenAddr,
		OutputsDir:       mc.OutputsDir,
		PublicURL:        c.PublicURL,
		FailWith:         mc.FailWith,
		ProcessingDelay:  mc.ProcessingDelay,
		UploadsPerMinute: mc.RateLimit,
		Logger:           xglog.WithComponent("mockdetect"),
	})
	if err != nil {
		return err
	}

	eg, gctx := errgroup.WithContext(ctx)
	serveMetrics(gctx, eg, rt.cfg.Metrics.ListenAddr, rt.cfg.ShutdownTimeout, rt.logger)
	eg.Go(srv.Start)
	eg.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return eg.Wait()
}
