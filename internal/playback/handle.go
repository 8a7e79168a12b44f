// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback holds the review-mode transport state for a processed
// video and drives the media handle bound to its locator.
package playback

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by a Handle that cannot perform a request,
// e.g. full-screen on a headless player.
var ErrUnsupported = errors.New("playback: operation not supported")

// DownloadName is the file name used for saved results.
const DownloadName = "processed-video.mp4"

// Handle is a media element bound to a single locator.
//
// Implementations must not call the attached EventSink synchronously from
// within Play, Pause, Seek, SetMuted, SetFullscreen or Close.
type Handle interface {
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetMuted(muted bool) error
	SetFullscreen(on bool) error
	// Attach registers sink for media events. The returned func detaches it.
	Attach(sink EventSink) (detach func())
	Close() error
}

// EventSink receives media events from a Handle.
type EventSink interface {
	OnTimeUpdate(seconds float64)
	OnMetadata(duration float64)
	OnEnded()
}

// Downloader retrieves a locator into dest.
type Downloader interface {
	Download(ctx context.Context, locator, dest string) error
}
