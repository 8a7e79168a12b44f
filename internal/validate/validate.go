// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate enforces the upload policy on a selected file's declared
// metadata. The content itself is never inspected, so a mislabeled file passes.
package validate

import (
	"errors"
	"strings"

	"github.com/ManuGH/visiontrack/internal/selection"
)

const (
	// VideoPrefix is the MIME category every accepted file must declare.
	VideoPrefix = "video/"
	// MaxSizeBytes is the inclusive upload size limit (500 MiB).
	MaxSizeBytes int64 = 500 * 1024 * 1024
)

// Reason classifies a rejection.
type Reason string

const (
	ReasonNotVideo Reason = "not a video"
	ReasonTooLarge Reason = "too large"
)

// Rejection is returned for files that fail the policy.
type Rejection struct {
	Reason Reason
	// Message is the text shown next to the selection control.
	Message string
}

func (r *Rejection) Error() string {
	return string(r.Reason)
}

// File applies the rules in order; the first failure wins. It returns nil for
// an acceptable file and a *Rejection otherwise.
func File(f selection.File) error {
	if !strings.HasPrefix(f.MimeType, VideoPrefix) {
		return &Rejection{Reason: ReasonNotVideo, Message: "Please upload a video file"}
	}
	if f.SizeBytes > MaxSizeBytes {
		return &Rejection{Reason: ReasonTooLarge, Message: "File size must be less than 500MB"}
	}
	return nil
}

// AsRejection extracts a *Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
