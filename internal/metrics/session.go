package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visiontrack_session_transitions_total",
		Help: "Total number of processing session state transitions by source and target state",
	}, []string{"from", "to"})

	sessionsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visiontrack_sessions_finished_total",
		Help: "Total number of processing sessions that ended, by outcome",
	}, []string{"outcome"})

	selectionRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visiontrack_selection_rejections_total",
		Help: "Total number of file selections rejected by the upload policy, by reason",
	}, []string{"reason"})

	staleEventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visiontrack_stale_events_dropped_total",
		Help: "Total number of timer ticks or network results dropped because their session was superseded",
	}, []string{"kind"})
)

// IncSessionTransition records one state transition.
// Labels are restricted to the five session states; anything else becomes "unknown".
func IncSessionTransition(from, to string) {
	sessionTransitionsTotal.WithLabelValues(normalizeStateLabel(from), normalizeStateLabel(to)).Inc()
}

// IncSessionFinished records the end of a session.
// outcome ∈ {complete,error,superseded,reset,unknown}
func IncSessionFinished(outcome string) {
	sessionsFinishedTotal.WithLabelValues(normalizeOutcomeLabel(outcome)).Inc()
}

// IncSelectionRejected records a rejected selection.
// reason ∈ {not_a_video,too_large,unknown}
func IncSelectionRejected(reason string) {
	selectionRejectionsTotal.WithLabelValues(normalizeRejectionLabel(reason)).Inc()
}

// IncStaleEventDropped records an event ignored because its session is gone.
// kind ∈ {tick,dispatched,response,unknown}
func IncStaleEventDropped(kind string) {
	staleEventsDroppedTotal.WithLabelValues(normalizeStaleKindLabel(kind)).Inc()
}

func normalizeStateLabel(state string) string {
	switch s := strings.ToLower(strings.TrimSpace(state)); s {
	case "idle", "uploading", "processing", "complete", "error":
		return s
	default:
		return "unknown"
	}
}

func normalizeOutcomeLabel(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "complete", "error", "superseded", "reset":
		return o
	default:
		return "unknown"
	}
}

func normalizeRejectionLabel(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "not a video", "not_a_video":
		return "not_a_video"
	case "too large", "too_large":
		return "too_large"
	default:
		return "unknown"
	}
}

func normalizeStaleKindLabel(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case "tick", "dispatched", "response":
		return k
	default:
		return "unknown"
	}
}
