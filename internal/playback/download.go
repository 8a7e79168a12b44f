// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/visiontrack/internal/log"
	"github.com/ManuGH/visiontrack/internal/metrics"
	"github.com/ManuGH/visiontrack/internal/platform/httpx"
)

// HTTPDownloader fetches a locator over HTTP and writes it atomically.
type HTTPDownloader struct {
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPDownloader returns a downloader using client, or a streaming client
// bounded only by the request context when client is nil.
func NewHTTPDownloader(client *http.Client, logger zerolog.Logger) *HTTPDownloader {
	if client == nil {
		client = httpx.NewDownloadClient()
	}
	return &HTTPDownloader{client: client, logger: logger}
}

func (d *HTTPDownloader) Download(ctx context.Context, locator, dest string) (err error) {
	defer func() {
		if err != nil {
			metrics.IncDownload("error")
		} else {
			metrics.IncDownload("ok")
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", locator, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: unexpected status %d", locator, resp.StatusCode)
	}

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create download dir: %w", err)
		}
	}

	pendingFile, err := renameio.NewPendingFile(dest)
	if err != nil {
		return fmt.Errorf("create pending download file: %w", err)
	}
	defer func() {
		if cerr := pendingFile.Cleanup(); cerr != nil {
			d.logger.Debug().Err(cerr).Str(xglog.FieldPath, dest).Msg("cleanup pending download file")
		}
	}()

	n, err := io.Copy(pendingFile, resp.Body)
	if err != nil {
		return fmt.Errorf("write download data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace download file: %w", err)
	}

	d.logger.Debug().Str(xglog.FieldPath, dest).Int64(xglog.FieldSizeBytes, n).Msg("download written")
	return nil
}
