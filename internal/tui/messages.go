// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tui

import (
	"github.com/ManuGH/visiontrack/internal/playback"
	"github.com/ManuGH/visiontrack/internal/session"
)

// SnapshotMsg carries the latest controller state.
type SnapshotMsg session.Snapshot

// PlayerMsg carries the latest transport state of the bound player.
type PlayerMsg playback.State

// selectedMsg reports the outcome of a file selection.
type selectedMsg struct {
	Path string
	Err  error
}
