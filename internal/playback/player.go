// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/visiontrack/internal/log"
)

// State is a value copy of the playback session.
type State struct {
	Locator     string
	Playing     bool
	CurrentTime float64
	Duration    float64
	Muted       bool
	Fullscreen  bool
}

// Progress is the played fraction in percent, 0 while the duration is unknown.
func (s State) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return 100 * s.CurrentTime / s.Duration
}

// Player is the playback controller for one result locator.
// It owns its Handle exclusively.
type Player struct {
	locator     string
	handle      Handle
	downloader  Downloader
	downloadDir string
	logger      zerolog.Logger

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
	detach func()
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the player logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// WithDownloader enables Download.
func WithDownloader(d Downloader, dir string) Option {
	return func(p *Player) {
		p.downloader = d
		p.downloadDir = dir
	}
}

// NewPlayer binds a player to locator. h may be nil, in which case transport
// controls are no-ops.
func NewPlayer(locator string, h Handle, opts ...Option) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		locator: locator,
		handle:  h,
		logger:  xglog.WithComponent("playback"),
		state:   State{Locator: locator},
		subs:    make(map[int]func(State)),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str(xglog.FieldLocator, locator).Logger()
	if h != nil {
		p.detach = h.Attach(sink{p})
	}
	return p
}

// State returns a snapshot of the transport state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Progress is State().Progress().
func (p *Player) Progress() float64 {
	return p.State().Progress()
}

// Locator is the media URL the player is bound to.
func (p *Player) Locator() string { return p.locator }

// Subscribe registers fn for every state change. fn runs synchronously under
// the player lock and must not call back into the player.
func (p *Player) Subscribe(fn func(State)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Play starts playback.
func (p *Player) Play() { p.setPlaying(true) }

// Pause pauses playback.
func (p *Player) Pause() { p.setPlaying(false) }

// TogglePlay flips between playing and paused.
func (p *Player) TogglePlay() {
	p.mu.Lock()
	playing := p.state.Playing
	p.mu.Unlock()
	p.setPlaying(!playing)
}

func (p *Player) setPlaying(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.usable() || p.state.Playing == playing {
		return
	}

	var err error
	if playing {
		err = p.handle.Play()
	} else {
		err = p.handle.Pause()
	}
	if err != nil {
		p.logger.Warn().Err(err).Bool("playing", playing).Msg("media handle rejected transport change")
	}
	p.state.Playing = playing
	p.notifyLocked()
}

// Seek moves to fraction (clamped to [0,1]) of the duration. It is a no-op
// while the duration is unknown.
func (p *Player) Seek(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.usable() || p.state.Duration <= 0 {
		return
	}
	if math.IsNaN(fraction) {
		return
	}
	target := clamp(fraction, 0, 1) * p.state.Duration
	if err := p.handle.Seek(target); err != nil {
		p.logger.Warn().Err(err).Float64(xglog.FieldPosition, target).Msg("seek failed")
		return
	}
	p.state.CurrentTime = target
	p.notifyLocked()
}

// ToggleMute flips the muted flag.
func (p *Player) ToggleMute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.usable() {
		return
	}
	muted := !p.state.Muted
	if err := p.handle.SetMuted(muted); err != nil {
		p.logger.Warn().Err(err).Bool("muted", muted).Msg("mute change failed")
		return
	}
	p.state.Muted = muted
	p.notifyLocked()
}

// ToggleFullscreen requests or exits full-screen. Failures are not reported.
func (p *Player) ToggleFullscreen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.usable() {
		return
	}
	on := !p.state.Fullscreen
	if err := p.handle.SetFullscreen(on); err != nil {
		ev := p.logger.Debug().Err(err).Bool("fullscreen", on)
		if errors.Is(err, ErrUnsupported) {
			ev.Msg("fullscreen not supported by media handle")
		} else {
			ev.Msg("fullscreen request failed")
		}
		return
	}
	p.state.Fullscreen = on
	p.notifyLocked()
}

// Download saves the locator as DownloadName in the download directory.
// It returns immediately; the outcome is only logged.
func (p *Player) Download() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.downloader == nil || p.locator == "" {
		p.logger.Debug().Msg("download unavailable")
		return
	}

	dest := filepath.Join(p.downloadDir, DownloadName)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.downloader.Download(p.ctx, p.locator, dest); err != nil {
			p.logger.Warn().Err(err).Str(xglog.FieldPath, dest).Msg("download failed")
			return
		}
		p.logger.Info().Str(xglog.FieldPath, dest).Msg("download saved")
	}()
}

// Close detaches from the handle, releases it and cancels pending downloads.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	detach := p.detach
	p.detach = nil
	p.subs = make(map[int]func(State))
	p.mu.Unlock()

	if detach != nil {
		detach()
	}
	var err error
	if p.handle != nil {
		if cerr := p.handle.Close(); cerr != nil {
			err = fmt.Errorf("close media handle: %w", cerr)
		}
	}
	p.cancel()
	p.wg.Wait()
	return err
}

func (p *Player) usable() bool {
	return !p.closed && p.handle != nil
}

func (p *Player) notifyLocked() {
	if len(p.subs) == 0 {
		return
	}
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	// Deliver in subscription order.
	slices.Sort(ids)
	snap := p.state
	for _, id := range ids {
		p.subs[id](snap)
	}
}

// sink adapts media events onto the player without exporting the methods.
type sink struct{ p *Player }

func (s sink) OnTimeUpdate(seconds float64) {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.state.Duration > 0 {
		seconds = clamp(seconds, 0, p.state.Duration)
	} else if seconds < 0 {
		seconds = 0
	}
	p.state.CurrentTime = seconds
	p.notifyLocked()
}

func (s sink) OnMetadata(duration float64) {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return
	}
	p.state.Duration = duration
	if duration > 0 {
		p.state.CurrentTime = clamp(p.state.CurrentTime, 0, duration)
	}
	p.logger.Debug().Float64(xglog.FieldDuration, duration).Msg("media metadata loaded")
	p.notifyLocked()
}

func (s sink) OnEnded() {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.state.Playing = false
	p.notifyLocked()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
