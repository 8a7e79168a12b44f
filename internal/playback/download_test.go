// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDownloader_WritesFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/outputs/a.mp4", r.URL.Path)
		_, _ = w.Write([]byte("annotated"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "nested", DownloadName)
	d := NewHTTPDownloader(ts.Client(), zerolog.Nop())
	require.NoError(t, d.Download(context.Background(), ts.URL+"/outputs/a.mp4", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "annotated", string(data))
}

func TestHTTPDownloader_StatusErrorKeepsExistingFile(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), DownloadName)
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o600))

	err := NewHTTPDownloader(ts.Client(), zerolog.Nop()).Download(context.Background(), ts.URL+"/missing", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestHTTPDownloader_CanceledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewHTTPDownloader(ts.Client(), zerolog.Nop()).Download(ctx, ts.URL, filepath.Join(t.TempDir(), DownloadName))
	require.ErrorIs(t, err, context.Canceled)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for ffprobe")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700)) // #nosec G306
	return path
}

func TestFFprobe_ParsesDuration(t *testing.T) {
	bin := writeScript(t, `echo "12.480000"`)
	d, err := FFprobe{Bin: bin}.ProbeDuration(context.Background(), "http://svc/outputs/a.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 12.48, d, 1e-9)
}

func TestFFprobe_NoDuration(t *testing.T) {
	bin := writeScript(t, `echo "N/A"`)
	_, err := FFprobe{Bin: bin}.ProbeDuration(context.Background(), "x")
	require.ErrorIs(t, err, ErrNoDuration)
}

func TestFFprobe_ExitFailure(t *testing.T) {
	bin := writeScript(t, `echo "x: Invalid data found when processing input" >&2; exit 1`)
	_, err := FFprobe{Bin: bin}.ProbeDuration(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit 1")
	assert.Contains(t, err.Error(), "Invalid data")
}

func TestFFprobe_MissingBinary(t *testing.T) {
	_, err := FFprobe{Bin: filepath.Join(t.TempDir(), "nope")}.ProbeDuration(context.Background(), "x")
	require.Error(t, err)
}
