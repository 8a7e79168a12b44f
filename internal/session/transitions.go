// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"

	"github.com/ManuGH/visiontrack/internal/fsm"
	xglog "github.com/ManuGH/visiontrack/internal/log"
	"github.com/ManuGH/visiontrack/internal/metrics"
	"github.com/ManuGH/visiontrack/internal/types"
)

// Event drives the session state machine.
type Event string

const (
	EventSelect     Event = "select"
	EventDispatched Event = "dispatched"
	EventSucceeded  Event = "succeeded"
	EventFailed     Event = "failed"
	EventRetry      Event = "retry"
	EventNewVideo   Event = "new_video"
	EventCancel     Event = "cancel"
)

func (c *Controller) transitions() []fsm.Transition[types.SessionState, Event] {
	var table []fsm.Transition[types.SessionState, Event]
	edge := func(from types.SessionState, ev Event, to types.SessionState) {
		table = append(table, fsm.Transition[types.SessionState, Event]{
			From:   from,
			Event:  ev,
			To:     to,
			Action: c.recordTransition,
		})
	}

	// A selection supersedes whatever session exists.
	for _, s := range types.AllSessionStates() {
		edge(s, EventSelect, types.SessionUploading)
	}

	edge(types.SessionUploading, EventDispatched, types.SessionProcessing)
	edge(types.SessionProcessing, EventSucceeded, types.SessionComplete)
	edge(types.SessionUploading, EventFailed, types.SessionError)
	edge(types.SessionProcessing, EventFailed, types.SessionError)

	edge(types.SessionError, EventRetry, types.SessionIdle)
	edge(types.SessionComplete, EventNewVideo, types.SessionIdle)
	edge(types.SessionUploading, EventCancel, types.SessionIdle)
	edge(types.SessionProcessing, EventCancel, types.SessionIdle)

	return table
}

func (c *Controller) recordTransition(ctx context.Context, from, to types.SessionState, ev Event) error {
	metrics.IncSessionTransition(from.String(), to.String())
	logger := xglog.WithContext(ctx, c.logger)
	logger.Info().
		Str(xglog.FieldOldState, from.String()).
		Str(xglog.FieldNewState, to.String()).
		Str(xglog.FieldEvent, string(ev)).
		Msg("session transition")
	return nil
}

// resetEvent picks the event that returns state to idle, if any.
func resetEvent(state types.SessionState) (Event, bool) {
	switch state {
	case types.SessionError:
		return EventRetry, true
	case types.SessionComplete:
		return EventNewVideo, true
	case types.SessionUploading, types.SessionProcessing:
		return EventCancel, true
	default:
		return "", false
	}
}
