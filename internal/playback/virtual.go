// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/visiontrack/internal/clock"
	xglog "github.com/ManuGH/visiontrack/internal/log"
)

// TimeUpdateInterval is how often a playing VirtualHandle reports its position.
const TimeUpdateInterval = 250 * time.Millisecond

// Prober discovers the duration of a media locator in seconds.
type Prober interface {
	ProbeDuration(ctx context.Context, locator string) (float64, error)
}

// VirtualHandle is a headless media element. Position advances on the clock
// while playing; the duration comes from the Prober.
type VirtualHandle struct {
	locator string
	prober  Prober
	clock   clock.Clock
	logger  zerolog.Logger

	mu       sync.Mutex
	sink     EventSink
	position float64
	duration float64
	playing  bool
	muted    bool
	stopTick func()
	probing  bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVirtualHandle creates a handle for locator. A nil prober leaves the
// duration unknown; a nil clock uses the system clock.
func NewVirtualHandle(locator string, prober Prober, clk clock.Clock, logger zerolog.Logger) *VirtualHandle {
	if clk == nil {
		clk = clock.Real{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &VirtualHandle{
		locator: locator,
		prober:  prober,
		clock:   clk,
		logger:  logger.With().Str(xglog.FieldLocator, locator).Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Attach registers sink and starts duration discovery on first use.
func (h *VirtualHandle) Attach(sink EventSink) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return func() {}
	}
	h.sink = sink

	if h.duration > 0 {
		d := h.duration
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.emit(func(s EventSink) { s.OnMetadata(d) })
		}()
	} else if h.prober != nil && !h.probing {
		h.probing = true
		h.wg.Add(1)
		go h.probe()
	}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.sink == sink {
			h.sink = nil
		}
	}
}

func (h *VirtualHandle) probe() {
	defer h.wg.Done()
	d, err := h.prober.ProbeDuration(h.ctx, h.locator)
	if err != nil {
		if h.ctx.Err() == nil {
			h.logger.Warn().Err(err).Msg("duration probe failed")
		}
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.duration = d
	h.mu.Unlock()
	h.emit(func(s EventSink) { s.OnMetadata(d) })
}

// emit delivers an event outside the handle lock.
func (h *VirtualHandle) emit(fn func(EventSink)) {
	h.mu.Lock()
	s := h.sink
	closed := h.closed
	h.mu.Unlock()
	if s != nil && !closed {
		fn(s)
	}
}

func (h *VirtualHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.playing {
		return nil
	}
	if h.duration > 0 && h.position >= h.duration {
		h.position = 0
	}
	h.playing = true
	h.stopTick = h.clock.Every(TimeUpdateInterval, h.tick)
	return nil
}

func (h *VirtualHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauseLocked()
	return nil
}

func (h *VirtualHandle) pauseLocked() {
	h.playing = false
	if h.stopTick != nil {
		h.stopTick()
		h.stopTick = nil
	}
}

func (h *VirtualHandle) tick() {
	h.mu.Lock()
	if !h.playing || h.closed {
		h.mu.Unlock()
		return
	}
	h.position += TimeUpdateInterval.Seconds()
	ended := false
	if h.duration > 0 && h.position >= h.duration {
		h.position = h.duration
		h.pauseLocked()
		ended = true
	}
	pos := h.position
	h.mu.Unlock()

	h.emit(func(s EventSink) { s.OnTimeUpdate(pos) })
	if ended {
		h.emit(func(s EventSink) { s.OnEnded() })
	}
}

func (h *VirtualHandle) Seek(seconds float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if h.duration > 0 && seconds > h.duration {
		seconds = h.duration
	}
	h.position = seconds
	return nil
}

func (h *VirtualHandle) SetMuted(muted bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.muted = muted
	return nil
}

// SetFullscreen always fails: there is no screen.
func (h *VirtualHandle) SetFullscreen(bool) error {
	return ErrUnsupported
}

// Position reports the current position and whether the handle is playing.
func (h *VirtualHandle) Position() (seconds float64, playing bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position, h.playing
}

// Close stops the clock, aborts the probe and waits for its goroutines.
func (h *VirtualHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.sink = nil
	h.pauseLocked()
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	return nil
}
