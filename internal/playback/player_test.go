// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeHandle struct {
	mu         sync.Mutex
	calls      []string
	seeks      []float64
	sink       EventSink
	fullscreen error
	closed     bool
}

func (h *fakeHandle) record(c string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, c)
}

func (h *fakeHandle) Play() error  { h.record("play"); return nil }
func (h *fakeHandle) Pause() error { h.record("pause"); return nil }
func (h *fakeHandle) Seek(s float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "seek")
	h.seeks = append(h.seeks, s)
	return nil
}
func (h *fakeHandle) SetMuted(m bool) error {
	if m {
		h.record("mute")
	} else {
		h.record("unmute")
	}
	return nil
}
func (h *fakeHandle) SetFullscreen(bool) error {
	h.record("fullscreen")
	return h.fullscreen
}
func (h *fakeHandle) Attach(s EventSink) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = s
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sink = nil
	}
}
func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) events() EventSink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sink
}

func (h *fakeHandle) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func newTestPlayer(h Handle, opts ...Option) *Player {
	return NewPlayer("http://svc/outputs/a.mp4", h, append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

func TestPlayer_TogglePlayDrivesHandle(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	p.TogglePlay()
	assert.True(t, p.State().Playing)
	p.TogglePlay()
	assert.False(t, p.State().Playing)
	p.Pause()

	assert.Empty(t, cmp.Diff([]string{"play", "pause"}, h.Calls()))
}

func TestPlayer_NilHandleIsNoop(t *testing.T) {
	p := newTestPlayer(nil)
	p.Play()
	p.ToggleMute()
	p.ToggleFullscreen()
	p.Seek(0.5)
	assert.Equal(t, State{Locator: "http://svc/outputs/a.mp4"}, p.State())
	require.NoError(t, p.Close())
}

func TestPlayer_SeekRequiresDuration(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	p.Seek(0.5)
	assert.Zero(t, p.State().CurrentTime)
	assert.NotContains(t, h.Calls(), "seek")

	h.events().OnMetadata(120)
	p.Seek(0.25)
	assert.InDelta(t, 30.0, p.State().CurrentTime, 1e-9)
	assert.InDelta(t, 25.0, p.Progress(), 1e-9)

	p.Seek(1.7)
	assert.InDelta(t, 120.0, p.State().CurrentTime, 1e-9)
	p.Seek(-3)
	assert.Zero(t, p.State().CurrentTime)

	assert.Equal(t, []float64{30, 120, 0}, h.seeks)
}

func TestPlayer_EndedStopsPlayingKeepsPosition(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	h.events().OnMetadata(10)
	p.Play()
	h.events().OnTimeUpdate(10)
	h.events().OnEnded()

	st := p.State()
	assert.False(t, st.Playing)
	assert.Equal(t, 10.0, st.CurrentTime)
	assert.Equal(t, 100.0, st.Progress())
}

func TestPlayer_TimeUpdateClampedToDuration(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	h.events().OnTimeUpdate(12)
	assert.Equal(t, 12.0, p.State().CurrentTime, "unclamped while duration unknown")

	h.events().OnMetadata(8)
	assert.Equal(t, 8.0, p.State().CurrentTime)

	h.events().OnTimeUpdate(-1)
	assert.Zero(t, p.State().CurrentTime)
}

func TestPlayer_ToggleMute(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	p.ToggleMute()
	assert.True(t, p.State().Muted)
	p.ToggleMute()
	assert.False(t, p.State().Muted)
	assert.Equal(t, []string{"mute", "unmute"}, h.Calls())
}

func TestPlayer_FullscreenFailureSwallowed(t *testing.T) {
	h := &fakeHandle{fullscreen: ErrUnsupported}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	p.ToggleFullscreen()
	assert.False(t, p.State().Fullscreen)

	h.fullscreen = nil
	p.ToggleFullscreen()
	assert.True(t, p.State().Fullscreen)
}

func TestPlayer_SubscribeSeesOrderedSnapshots(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	var got []State
	unsub := p.Subscribe(func(s State) { got = append(got, s) })

	h.events().OnMetadata(4)
	p.Play()
	h.events().OnTimeUpdate(1)
	unsub()
	p.Pause()

	loc := "http://svc/outputs/a.mp4"
	want := []State{
		{Locator: loc, Duration: 4},
		{Locator: loc, Duration: 4, Playing: true},
		{Locator: loc, Duration: 4, Playing: true, CurrentTime: 1},
	}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestPlayer_SubscribersNotifiedInSubscriptionOrder(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	defer func() { _ = p.Close() }()

	var order []int
	for i := 0; i < 8; i++ {
		i := i
		p.Subscribe(func(State) { order = append(order, i) })
	}

	p.ToggleMute()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

type recordingDownloader struct {
	mu    sync.Mutex
	calls [][2]string
	block chan struct{}
	err   error
}

func (d *recordingDownloader) Download(ctx context.Context, locator, dest string) error {
	d.mu.Lock()
	d.calls = append(d.calls, [2]string{locator, dest})
	d.mu.Unlock()
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return d.err
}

func TestPlayer_DownloadUsesFixedName(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := &recordingDownloader{err: errors.New("disk full")}
	p := newTestPlayer(&fakeHandle{}, WithDownloader(d, "/tmp/out"))
	p.Download()
	require.NoError(t, p.Close())

	require.Len(t, d.calls, 1)
	assert.Equal(t, "http://svc/outputs/a.mp4", d.calls[0][0])
	assert.Equal(t, "/tmp/out/"+DownloadName, d.calls[0][1])
}

func TestPlayer_CloseCancelsPendingDownload(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := &recordingDownloader{block: make(chan struct{})}
	p := newTestPlayer(&fakeHandle{}, WithDownloader(d, t.TempDir()))
	p.Download()

	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the download")
	}

	p.Download()
	assert.Len(t, d.calls, 1, "closed player must not start downloads")
}

func TestPlayer_CloseDetachesHandle(t *testing.T) {
	h := &fakeHandle{}
	p := newTestPlayer(h)
	sink := h.events()
	require.NotNil(t, sink)

	require.NoError(t, p.Close())
	assert.Nil(t, h.events())
	assert.True(t, h.closed)

	sink.OnTimeUpdate(3)
	p.Play()
	assert.Equal(t, State{Locator: "http://svc/outputs/a.mp4"}, p.State())
	require.NoError(t, p.Close())
}

func TestFormatTime(t *testing.T) {
	cases := map[float64]string{
		0:    "0:00",
		5.9:  "0:05",
		65:   "1:05",
		600:  "10:00",
		3599: "59:59",
		3600: "60:00",
		-2:   "0:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatTime(in), "FormatTime(%v)", in)
	}
}
