// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys shared by the session and detect spans.
const (
	UploadFileNameKey = "upload.file_name"
	UploadMimeTypeKey = "upload.mime_type"
	UploadSizeKey     = "upload.size_bytes"
	UploadLocatorKey  = "upload.result_locator"

	SessionIDKey    = "session.id"
	SessionStateKey = "session.state"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// UploadAttributes describes the submitted file. Empty strings are omitted.
func UploadAttributes(name, mimeType string, size int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if name != "" {
		attrs = append(attrs, attribute.String(UploadFileNameKey, name))
	}
	if mimeType != "" {
		attrs = append(attrs, attribute.String(UploadMimeTypeKey, mimeType))
	}
	return append(attrs, attribute.Int64(UploadSizeKey, size))
}

// SessionAttributes identifies the processing session a span belongs to.
func SessionAttributes(sessionID, state string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(SessionStateKey, state))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with a coarse error class such as
// "transport", "protocol" or "status".
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
