// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type sessionIDKey struct{}

// ContextWithSessionID tags ctx with the processing session it belongs to.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the session ID stored in ctx, or "".
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// WithContext adds the session ID and, when a sampled span is active, the
// trace ID from ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	sid := SessionIDFromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if sid == "" && !sc.IsSampled() {
		return logger
	}
	b := logger.With()
	if sid != "" {
		b = b.Str(FieldSessionID, sid)
	}
	if sc.IsSampled() {
		b = b.Str(FieldTraceID, sc.TraceID().String())
	}
	return b.Logger()
}
