// SPDX-License-Identifier: MIT

// Package types provides type-safe enumerations and constants for visiontrack.
//
// This package centralizes the typed states shared by the session controller,
// the terminal UI and the metrics labels.
package types

import (
	"encoding/json"
	"fmt"
)

// SessionState is the lifecycle state of a processing session.
type SessionState string

// Session state constants define all possible states of a processing session.
const (
	// SessionIdle indicates no file has been accepted yet (or the session was reset).
	SessionIdle SessionState = "idle"

	// SessionUploading indicates the file is being submitted to the detection service.
	SessionUploading SessionState = "uploading"

	// SessionProcessing indicates the request was dispatched and the service is working on it.
	SessionProcessing SessionState = "processing"

	// SessionComplete indicates a result locator is available.
	SessionComplete SessionState = "complete"

	// SessionError indicates the submission failed.
	SessionError SessionState = "error"
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	return string(s)
}

// IsValid checks whether the state is one of the defined constants.
func (s SessionState) IsValid() bool {
	switch s {
	case SessionIdle, SessionUploading, SessionProcessing, SessionComplete, SessionError:
		return true
	default:
		return false
	}
}

// IsActive reports whether a network submission may still be outstanding.
func (s SessionState) IsActive() bool {
	return s == SessionUploading || s == SessionProcessing
}

// IsTerminal checks whether the state ends a session.
//
// Terminal states only leave through an explicit user reset or a new selection.
func (s SessionState) IsTerminal() bool {
	return s == SessionComplete || s == SessionError
}

// MarshalJSON implements json.Marshaler for SessionState.
func (s SessionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler for SessionState.
func (s *SessionState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSessionState(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSessionState parses a string into a SessionState, returning an error if invalid.
func ParseSessionState(s string) (SessionState, error) {
	state := SessionState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid session state: %q (valid: idle, uploading, processing, complete, error)", s)
	}
	return state, nil
}

// AllSessionStates returns all defined session states in lifecycle order.
func AllSessionStates() []SessionState {
	return []SessionState{
		SessionIdle,
		SessionUploading,
		SessionProcessing,
		SessionComplete,
		SessionError,
	}
}
