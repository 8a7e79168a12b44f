package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visiontrack_upload_duration_seconds",
		Help:    "Wall time from submission start to the detection service's response, by outcome",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"outcome"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visiontrack_upload_bytes_total",
		Help: "Total number of video payload bytes submitted to the detection service",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visiontrack_downloads_total",
		Help: "Total number of processed video downloads by outcome",
	}, []string{"outcome"})

	mockUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visiontrack_mock_uploads_total",
		Help: "Total number of uploads handled by the mock detection endpoint, by outcome",
	}, []string{"outcome"})
)

// ObserveUpload records one submission attempt.
// outcome ∈ {ok,transport_error,status_error,protocol_error,canceled,unknown}
func ObserveUpload(outcome string, d time.Duration, bytes int64) {
	uploadDuration.WithLabelValues(normalizeUploadOutcomeLabel(outcome)).Observe(d.Seconds())
	if bytes > 0 {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// IncDownload records a download attempt. outcome ∈ {ok,error,unknown}
func IncDownload(outcome string) {
	downloadsTotal.WithLabelValues(normalizeOkErrorLabel(outcome)).Inc()
}

// IncMockUpload records a request served by the mock endpoint. outcome ∈ {ok,error,unknown}
func IncMockUpload(outcome string) {
	mockUploadsTotal.WithLabelValues(normalizeOkErrorLabel(outcome)).Inc()
}

func normalizeUploadOutcomeLabel(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "ok", "transport_error", "status_error", "protocol_error", "canceled":
		return o
	default:
		return "unknown"
	}
}

func normalizeOkErrorLabel(outcome string) string {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "ok", "error":
		return o
	default:
		return "unknown"
	}
}
