// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds one ffprobe invocation.
const DefaultProbeTimeout = 10 * time.Second

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("no duration found")

// FFprobe reads the container duration with ffprobe. It accepts local paths
// and http(s) URLs.
type FFprobe struct {
	// Bin is the ffprobe binary; empty means "ffprobe" from PATH.
	Bin     string
	Timeout time.Duration
}

func (p FFprobe) ProbeDuration(ctx context.Context, locator string) (float64, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- bin is operator-configured
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		locator,
	)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return 0, fmt.Errorf("ffprobe failed (exit %d): %w: %s", ee.ExitCode(), err, firstLine(string(ee.Stderr)))
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	val := strings.TrimSpace(firstLine(string(out)))
	if val == "" || val == "N/A" {
		return 0, ErrNoDuration
	}
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", val, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("%w: negative duration %v", ErrNoDuration, secs)
	}
	return secs, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
