// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field names for structured logging.
const (
	FieldSessionID = "session_id"
	FieldTraceID   = "trace_id"
	FieldComponent = "component"
	FieldEvent     = "event"

	// Session lifecycle
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldProgress = "progress"
	FieldReason   = "reason"

	// Selected file
	FieldFile      = "file"
	FieldMimeType  = "mime_type"
	FieldSizeBytes = "size_bytes"

	// Result and playback
	FieldLocator  = "locator"
	FieldPosition = "position"
	FieldDuration = "duration"
	FieldPath     = "path"
)
