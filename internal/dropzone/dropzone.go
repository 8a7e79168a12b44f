// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dropzone turns files landing in a directory into selections.
// A file is reported once it has stopped changing for the debounce window.
package dropzone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/visiontrack/internal/log"
)

// DefaultDebounce is the quiet period after the last write before a file is reported.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	Dir      string
	Debounce time.Duration
	Logger   zerolog.Logger
	// Skip, if set, drops files by base name before they are debounced.
	Skip func(name string) bool
}

// Watcher reports settled files in a single directory. Subdirectories are not watched.
type Watcher struct {
	dir      string
	debounce time.Duration
	skip     func(name string) bool
	logger   zerolog.Logger
}

// New validates cfg and returns a Watcher.
func New(cfg Config) (*Watcher, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("dropzone: directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("dropzone: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dropzone: %s is not a directory", cfg.Dir)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      filepath.Clean(cfg.Dir),
		debounce: cfg.Debounce,
		skip:     cfg.Skip,
		logger:   cfg.Logger.With().Str(xglog.FieldComponent, "dropzone").Str(xglog.FieldPath, cfg.Dir).Logger(),
	}, nil
}

// Run watches until ctx is done, calling onReady from the Run goroutine for
// every settled file. Files already present when Run starts are ignored.
func (w *Watcher) Run(ctx context.Context, onReady func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", w.dir, err)
	}
	w.logger.Info().Str(xglog.FieldEvent, "dropzone.started").Msg("watching for new videos")

	ready := make(chan string)
	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-ready:
			if settled(path) {
				w.logger.Info().Str(xglog.FieldFile, filepath.Base(path)).Msg("file ready")
				onReady(path)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if ignored(event.Name) || (w.skip != nil && w.skip(filepath.Base(event.Name))) {
				continue
			}
			w.logger.Debug().
				Str(xglog.FieldFile, filepath.Base(event.Name)).
				Str("op", event.Op.String()).
				Msg("file changed")
			schedule(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			w.logger.Warn().Err(err).Msg("fsnotify watcher error")
		}
	}
}

// ignored filters hidden and temporary files, which include pending atomic writes.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") ||
		strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part")
}

func settled(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
