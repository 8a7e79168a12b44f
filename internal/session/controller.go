// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session implements the upload/processing lifecycle: one selected
// file at a time is submitted for detection, with synthetic progress while the
// service works and a playback controller once a result is available.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/visiontrack/internal/clock"
	"github.com/ManuGH/visiontrack/internal/detect"
	"github.com/ManuGH/visiontrack/internal/fsm"
	xglog "github.com/ManuGH/visiontrack/internal/log"
	"github.com/ManuGH/visiontrack/internal/metrics"
	"github.com/ManuGH/visiontrack/internal/playback"
	"github.com/ManuGH/visiontrack/internal/selection"
	"github.com/ManuGH/visiontrack/internal/telemetry"
	"github.com/ManuGH/visiontrack/internal/types"
	"github.com/ManuGH/visiontrack/internal/validate"
)

// Synthetic progress schedule.
const (
	UploadTick       = 200 * time.Millisecond
	UploadStep       = 5
	UploadCeiling    = 30
	ProcessingTick   = 500 * time.Millisecond
	ProcessingStep   = 2
	ProcessingCeil   = 90
	CompleteProgress = 100
)

// ErrClosed is returned by SelectFile after Close.
var ErrClosed = errors.New("session controller closed")

// Submitter performs the detection request for one file. onDispatched is
// called at most once, after the request is fully written.
type Submitter interface {
	Submit(ctx context.Context, file selection.File, onDispatched func()) (detect.Result, error)
}

// PlayerFactory builds the playback controller for a result locator.
type PlayerFactory func(locator string) *playback.Player

// Snapshot is a value copy of the controller state.
type Snapshot struct {
	ID            string
	State         types.SessionState
	Progress      int
	ErrorMessage  string
	ResultLocator string
	FileName      string
	// Rejection is the most recent refused selection. It does not affect State.
	Rejection *validate.Rejection
}

// Status returns the user-facing text for the snapshot.
func (s Snapshot) Status() Status {
	return Describe(s.State, s.ErrorMessage)
}

// Controller owns the single live processing session.
//
// Subscribers are notified synchronously, in order, while the controller lock
// is held; they must not call mutating Controller methods from the callback.
type Controller struct {
	submitter Submitter
	clock     clock.Clock
	logger    zerolog.Logger
	tracer    trace.Tracer
	newPlayer PlayerFactory

	mu      sync.Mutex
	machine *fsm.Machine[types.SessionState, Event]
	gen     uint64
	snap    Snapshot
	ctx     context.Context
	cancel  context.CancelFunc
	span    trace.Span
	stop    func()
	player  *playback.Player
	subs    map[int]func(Snapshot)
	nextSub int
	closed  bool

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the system clock used for progress timers.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithPlayerFactory sets how a playback controller is built on completion.
func WithPlayerFactory(f PlayerFactory) Option {
	return func(c *Controller) {
		if f != nil {
			c.newPlayer = f
		}
	}
}

// New creates an idle controller.
func New(submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		submitter: submitter,
		clock:     clock.Real{},
		logger:    xglog.WithComponent("session"),
		tracer:    telemetry.Tracer("visiontrack/session"),
		snap:      Snapshot{State: types.SessionIdle},
		subs:      make(map[int]func(Snapshot)),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.newPlayer == nil {
		logger := c.logger
		c.newPlayer = func(locator string) *playback.Player {
			return playback.NewPlayer(locator, nil, playback.WithLogger(logger))
		}
	}
	c.machine = fsm.MustNew(types.SessionIdle, c.transitions())
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Player returns the playback controller of a complete session, or nil.
func (c *Controller) Player() *playback.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

// Subscribe registers fn for every state, progress or rejection change.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// SelectFile validates f and, if accepted, starts a new session for it,
// superseding any existing one. A rejection is returned and recorded in the
// snapshot without changing state.
func (c *Controller) SelectFile(f selection.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := validate.File(f); err != nil {
		rej, _ := validate.AsRejection(err)
		if rej == nil {
			return err
		}
		metrics.IncSelectionRejected(string(rej.Reason))
		c.logger.Info().
			Str(xglog.FieldFile, f.Name).
			Str(xglog.FieldMimeType, f.MimeType).
			Int64(xglog.FieldSizeBytes, f.SizeBytes).
			Str(xglog.FieldReason, string(rej.Reason)).
			Msg("selection rejected")
		c.snap.Rejection = rej
		c.notifyLocked()
		return err
	}

	prev := c.snap.State
	if prev.IsActive() {
		metrics.IncSessionFinished("superseded")
		c.endSpanLocked(codes.Unset, "superseded")
	}
	c.teardownLocked()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(xglog.ContextWithSessionID(context.Background(), id))
	ctx, span := c.tracer.Start(ctx, "session.process",
		trace.WithAttributes(telemetry.SessionAttributes(id, types.SessionUploading.String())...))
	span.SetAttributes(telemetry.UploadAttributes(f.Name, f.MimeType, f.SizeBytes)...)

	if _, err := c.machine.Fire(ctx, EventSelect); err != nil {
		cancel()
		span.End()
		return fmt.Errorf("start session: %w", err)
	}

	c.ctx, c.cancel, c.span = ctx, cancel, span
	c.snap = Snapshot{
		ID:       id,
		State:    types.SessionUploading,
		FileName: f.Name,
	}
	c.notifyLocked()

	gen := c.gen
	c.stop = c.clock.Every(UploadTick, func() { c.onUploadTick(gen) })

	c.wg.Add(1)
	go c.run(ctx, gen, f)
	return nil
}

func (c *Controller) run(ctx context.Context, gen uint64, f selection.File) {
	defer c.wg.Done()
	res, err := c.submitter.Submit(ctx, f, func() { c.onDispatched(gen) })
	c.onResponse(gen, res, err)
}

// Reset returns to idle from any non-idle state: retry from error, new video
// from complete, cancel while uploading or processing. It is a no-op on idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := resetEvent(c.snap.State)
	if !ok {
		return
	}
	_ = c.resetLocked(ev)
}

// Retry leaves the error state.
func (c *Controller) Retry() error { return c.fireReset(EventRetry) }

// NewVideo leaves the complete state.
func (c *Controller) NewVideo() error { return c.fireReset(EventNewVideo) }

// Cancel aborts an uploading or processing session.
func (c *Controller) Cancel() error { return c.fireReset(EventCancel) }

func (c *Controller) fireReset(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(ev)
}

func (c *Controller) resetLocked(ev Event) error {
	if !c.machine.Can(ev) {
		return fmt.Errorf("%w: state=%s event=%s", fsm.ErrInvalidTransition, c.snap.State, ev)
	}
	if _, err := c.machine.Fire(c.ctx, ev); err != nil {
		return err
	}
	if ev == EventCancel {
		metrics.IncSessionFinished("reset")
		c.endSpanLocked(codes.Unset, "canceled")
	}
	c.teardownLocked()
	c.snap = Snapshot{State: types.SessionIdle}
	c.notifyLocked()
	return nil
}

// Close aborts any session, releases the playback controller and waits for
// the in-flight request to return.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.snap.State.IsActive() {
		c.endSpanLocked(codes.Unset, "closed")
	}
	c.teardownLocked()
	c.subs = make(map[int]func(Snapshot))
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// teardownLocked cancels everything the current session owns and invalidates
// its outstanding callbacks.
func (c *Controller) teardownLocked() {
	c.gen++
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.endSpanLocked(codes.Unset, "")
	if c.player != nil {
		if err := c.player.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close playback")
		}
		c.player = nil
	}
	c.ctx = context.Background()
}

func (c *Controller) stopTimerLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

func (c *Controller) endSpanLocked(code codes.Code, desc string) {
	if c.span == nil {
		return
	}
	if desc != "" {
		c.span.SetAttributes(attribute.String("session.outcome", desc))
	}
	c.span.SetStatus(code, desc)
	c.span.End()
	c.span = nil
}

// current reports whether a callback issued for gen still applies.
func (c *Controller) current(gen uint64, kind string) bool {
	if gen == c.gen {
		return true
	}
	metrics.IncStaleEventDropped(kind)
	c.logger.Debug().Str(xglog.FieldEvent, kind).Msg("dropping event for superseded session")
	return false
}

func (c *Controller) onUploadTick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen, "tick") || c.snap.State != types.SessionUploading {
		return
	}
	c.advanceLocked(UploadStep, UploadCeiling)
}

func (c *Controller) onProcessingTick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen, "tick") || c.snap.State != types.SessionProcessing {
		return
	}
	c.advanceLocked(ProcessingStep, ProcessingCeil)
}

func (c *Controller) advanceLocked(step, ceiling int) {
	if c.snap.Progress < ceiling {
		c.snap.Progress = min(c.snap.Progress+step, ceiling)
		c.logger.Debug().
			Str(xglog.FieldSessionID, c.snap.ID).
			Int(xglog.FieldProgress, c.snap.Progress).
			Msg("synthetic progress")
		c.notifyLocked()
	}
	if c.snap.Progress >= ceiling {
		c.stopTimerLocked()
	}
}

func (c *Controller) onDispatched(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen, "dispatched") || c.snap.State != types.SessionUploading {
		return
	}
	c.dispatchedLocked()
}

func (c *Controller) dispatchedLocked() {
	if _, err := c.machine.Fire(c.ctx, EventDispatched); err != nil {
		c.logger.Error().Err(err).Msg("dispatch transition rejected")
		return
	}
	c.stopTimerLocked()
	c.snap.State = types.SessionProcessing
	c.snap.Progress = max(c.snap.Progress, UploadCeiling)
	if c.span != nil {
		c.span.AddEvent("dispatched")
	}
	c.notifyLocked()

	gen := c.gen
	c.stop = c.clock.Every(ProcessingTick, func() { c.onProcessingTick(gen) })
}

func (c *Controller) onResponse(gen uint64, res detect.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen, "response") || !c.snap.State.IsActive() {
		return
	}

	if err != nil {
		c.failLocked(err)
		return
	}

	if c.snap.State == types.SessionUploading {
		c.dispatchedLocked()
	}
	if _, ferr := c.machine.Fire(c.ctx, EventSucceeded); ferr != nil {
		c.logger.Error().Err(ferr).Msg("completion transition rejected")
		return
	}
	c.stopTimerLocked()
	c.snap.State = types.SessionComplete
	c.snap.Progress = CompleteProgress
	c.snap.ResultLocator = res.Locator
	c.player = c.newPlayer(res.Locator)

	metrics.IncSessionFinished("complete")
	if c.span != nil {
		c.span.SetAttributes(attribute.String(telemetry.UploadLocatorKey, res.Locator))
	}
	c.endSpanLocked(codes.Ok, "complete")
	c.notifyLocked()
}

func (c *Controller) failLocked(err error) {
	if _, ferr := c.machine.Fire(c.ctx, EventFailed); ferr != nil {
		c.logger.Error().Err(ferr).Msg("failure transition rejected")
		return
	}
	c.stopTimerLocked()
	c.snap.State = types.SessionError
	c.snap.ErrorMessage = detect.UserMessage(err)

	metrics.IncSessionFinished("error")
	if c.span != nil {
		c.span.RecordError(err)
		c.span.SetAttributes(telemetry.ErrorAttributes(err, errorType(err))...)
	}
	c.endSpanLocked(codes.Error, "error")
	c.notifyLocked()
}

func errorType(err error) string {
	var se *detect.StatusError
	switch {
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, detect.ErrProtocol):
		return "protocol"
	default:
		return "transport"
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := c.snap
	if s.Rejection != nil {
		r := *s.Rejection
		s.Rejection = &r
	}
	return s
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	// Deliver in subscription order.
	slices.Sort(ids)
	snap := c.snapshotLocked()
	for _, id := range ids {
		c.subs[id](snap)
	}
}
