// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package detect

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrTransport classifies network failures and non-success HTTP statuses.
	ErrTransport = errors.New("detection transport error")
	// ErrProtocol classifies success responses without a usable result locator.
	ErrProtocol = errors.New("detection protocol error")
)

const (
	// MessageProcessingFailed is used for a non-success status whose body carries no message.
	MessageProcessingFailed = "Processing failed"
	// MessageGeneric is used when a failure carries no message at all.
	MessageGeneric = "An error occurred"
	// MessageInvalidResponse is used for protocol errors.
	MessageInvalidResponse = "Invalid response from detection service"
)

// StatusError is a non-success HTTP response from the detection service.
type StatusError struct {
	StatusCode int
	// Message is the service's "error" field, if the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("detection service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("detection service returned %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// UserMessage converts a submission error into the text shown in the error state.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var se *StatusError
	if errors.As(err, &se) {
		if msg := strings.TrimSpace(se.Message); msg != "" {
			return msg
		}
		return MessageProcessingFailed
	}
	if errors.Is(err, ErrProtocol) {
		return MessageInvalidResponse
	}

	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		if msg := strings.TrimSpace(ue.Err.Error()); msg != "" {
			return msg
		}
	}
	if errors.Is(err, ErrTransport) {
		// Strip the classification prefix added by Submit.
		msg := strings.TrimSpace(strings.TrimPrefix(err.Error(), ErrTransport.Error()+":"))
		if msg != "" && msg != ErrTransport.Error() {
			return msg
		}
	}
	return MessageGeneric
}
