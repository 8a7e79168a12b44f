// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func lookup(t *testing.T, attrs []attribute.KeyValue, key string) attribute.Value {
	t.Helper()
	set := attribute.NewSet(attrs...)
	v, ok := set.Value(attribute.Key(key))
	assert.True(t, ok, "attribute %s not found", key)
	return v
}

func TestUploadAttributes(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		size     int64
		wantLen  int
	}{
		{name: "all fields", fileName: "clip.mp4", mimeType: "video/mp4", size: 42, wantLen: 3},
		{name: "no name", mimeType: "video/mp4", size: 1, wantLen: 2},
		{name: "size only", wantLen: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := UploadAttributes(tt.fileName, tt.mimeType, tt.size)
			assert.Len(t, attrs, tt.wantLen)
			assert.Equal(t, tt.size, lookup(t, attrs, UploadSizeKey).AsInt64())
			if tt.fileName != "" {
				assert.Equal(t, tt.fileName, lookup(t, attrs, UploadFileNameKey).AsString())
			}
		})
	}
}

func TestSessionAttributes(t *testing.T) {
	attrs := SessionAttributes("abc", "processing")
	assert.Equal(t, "abc", lookup(t, attrs, SessionIDKey).AsString())
	assert.Equal(t, "processing", lookup(t, attrs, SessionStateKey).AsString())
	assert.Empty(t, SessionAttributes("", ""))
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "transport")
	assert.True(t, lookup(t, attrs, ErrorKey).AsBool())
	assert.Equal(t, "transport", lookup(t, attrs, ErrorTypeKey).AsString())
}
