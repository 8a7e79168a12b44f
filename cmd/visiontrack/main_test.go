// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/visiontrack/internal/config"
	"github.com/ManuGH/visiontrack/internal/mockdetect"
	"github.com/ManuGH/visiontrack/internal/playback"
	"github.com/ManuGH/visiontrack/internal/selection"
	"github.com/ManuGH/visiontrack/internal/session"
	"github.com/ManuGH/visiontrack/internal/types"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("visiontrack"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, kctx
}

func TestCLI_Parse(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o600))

	cli, kctx := parse(t, "--config", "cfg.yaml", "submit", "--download", video)
	assert.Equal(t, "submit <file>", kctx.Command())
	assert.True(t, filepath.IsAbs(cli.Config))
	assert.Equal(t, video, cli.Submit.File)
	assert.True(t, cli.Submit.Download)

	dir := t.TempDir()
	cli, kctx = parse(t, "watch", dir)
	assert.Equal(t, "watch <dir>", kctx.Command())
	assert.Equal(t, dir, cli.Watch.Dir)

	cli, kctx = parse(t, "mock-server", "--listen", "127.0.0.1:0", "--fail-with", "model failure")
	assert.Equal(t, "mock-server", kctx.Command())
	assert.Equal(t, "127.0.0.1:0", cli.MockServer.Listen)
	assert.Equal(t, "model failure", cli.MockServer.FailWith)
}

func TestCLI_SubmitRequiresExistingFile(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Exit(func(int) {}))
	require.NoError(t, err)
	_, err = parser.Parse([]string{"submit", filepath.Join(t.TempDir(), "missing.mp4")})
	require.Error(t, err)
}

func newMock(t *testing.T, failWith string) *httptest.Server {
	t.Helper()
	mock, err := mockdetect.New(mockdetect.Config{
		OutputsDir: t.TempDir(),
		FailWith:   failWith,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func testServices(t *testing.T, baseURL string) (*services, config.AppConfig) {
	t.Helper()
	cfg := config.Defaults()
	cfg.API.BaseURL = baseURL
	cfg.Download.Dir = t.TempDir()
	cfg.FFprobe.Bin = filepath.Join(t.TempDir(), "no-ffprobe")
	svc, err := newServices(cfg)
	require.NoError(t, err)
	return svc, cfg
}

func TestSubmitFile_Completes(t *testing.T) {
	ts := newMock(t, "")
	svc, cfg := testServices(t, ts.URL)
	ctrl := svc.newController(cfg)
	defer func() { _ = ctrl.Close() }()

	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("frames"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out bytes.Buffer
	snap, err := submitFile(ctx, ctrl, video, &out)
	require.NoError(t, err)

	assert.Equal(t, types.SessionComplete, snap.State)
	assert.Equal(t, 100, snap.Progress)
	assert.Contains(t, snap.ResultLocator, ts.URL+"/outputs/")
	assert.Contains(t, out.String(), "Uploading Video")
	require.NotNil(t, ctrl.Player())
	assert.Equal(t, snap.ResultLocator, ctrl.Player().Locator())

	dest := filepath.Join(cfg.Download.Dir, playback.DownloadName)
	require.NoError(t, svc.downloader.Download(ctx, snap.ResultLocator, dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(data))
}

func TestSubmitFile_ServiceFailure(t *testing.T) {
	ts := newMock(t, "model failure")
	svc, cfg := testServices(t, ts.URL)
	ctrl := svc.newController(cfg)
	defer func() { _ = ctrl.Close() }()

	video := filepath.Join(t.TempDir(), "clip.mov")
	require.NoError(t, os.WriteFile(video, []byte("frames"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := submitFile(ctx, ctrl, video, &bytes.Buffer{})
	require.EqualError(t, err, "model failure")
	assert.Equal(t, types.SessionError, snap.State)
}

func TestSubmitFile_RejectsNonVideo(t *testing.T) {
	svc, cfg := testServices(t, "http://127.0.0.1:1")
	ctrl := svc.newController(cfg)
	defer func() { _ = ctrl.Close() }()

	doc := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("hello"), 0o600))

	_, err := submitFile(context.Background(), ctrl, doc, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, types.SessionIdle, ctrl.Snapshot().State)
}

func TestForwardOutcomes_IgnoresRejectionAfterCompletion(t *testing.T) {
	ts := newMock(t, "")
	svc, cfg := testServices(t, ts.URL)
	ctrl := svc.newController(cfg)
	defer func() { _ = ctrl.Close() }()

	finished := make(chan session.Snapshot, 8)
	unsubscribe := ctrl.Subscribe(forwardOutcomes(finished, zerolog.Nop()))
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	video := filepath.Join(t.TempDir(), "a.mp4")
	require.NoError(t, os.WriteFile(video, []byte("frames"), 0o600))
	first, err := submitFile(ctx, ctrl, video, &bytes.Buffer{})
	require.NoError(t, err)

	err = ctrl.SelectFile(selection.FromBytes("notes.txt", "text/plain", []byte("hello")))
	require.Error(t, err)
	require.NotNil(t, ctrl.Snapshot().Rejection)

	second, err := submitFile(ctx, ctrl, video, &bytes.Buffer{})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	close(finished)
	var ids []string
	for s := range finished {
		assert.Nil(t, s.Rejection)
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{first.ID, second.ID}, ids)
}

func TestResultSkipper(t *testing.T) {
	dir := t.TempDir()

	skip := resultSkipper(dir, dir+string(filepath.Separator))
	require.NotNil(t, skip)
	assert.True(t, skip(resultName("clip.mp4")))
	assert.True(t, skip(playback.DownloadName))
	assert.False(t, skip("clip.mp4"))

	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(dir, link))
	assert.NotNil(t, resultSkipper(link, dir))

	assert.Nil(t, resultSkipper(dir, t.TempDir()))
}

func TestResultName(t *testing.T) {
	assert.Equal(t, "clip-processed-video.mp4", resultName("clip.mp4"))
	assert.Equal(t, "my clip-processed-video.mp4", resultName("/in/my clip.mov"))
	assert.Equal(t, playback.DownloadName, resultName(""))
}
