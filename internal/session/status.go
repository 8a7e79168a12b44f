// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"strings"

	"github.com/ManuGH/visiontrack/internal/types"
)

// Status is the user-facing headline for a session state.
type Status struct {
	Title       string
	Description string
}

const defaultErrorDescription = "Something went wrong. Please try again."

// Describe returns the status text for state. idle has none.
func Describe(state types.SessionState, errMsg string) Status {
	switch state {
	case types.SessionUploading:
		return Status{Title: "Uploading Video", Description: "Preparing your video for analysis..."}
	case types.SessionProcessing:
		return Status{Title: "Running YOLO Detection", Description: "Detecting and tracking objects in your video..."}
	case types.SessionComplete:
		return Status{Title: "Processing Complete", Description: "Your video is ready to view!"}
	case types.SessionError:
		desc := strings.TrimSpace(errMsg)
		if desc == "" {
			desc = defaultErrorDescription
		}
		return Status{Title: "Processing Failed", Description: desc}
	default:
		return Status{}
	}
}
