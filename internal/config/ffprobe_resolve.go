package config

import (
	"os/exec"
	"strings"
)

// ResolveFFprobeBin returns an effective ffprobe binary path.
//
// Resolution order:
// 1) Explicit ffprobeBin (e.g. VISIONTRACK_FFPROBE_BIN)
// 2) "ffprobe" found in PATH
// 3) Empty string (duration discovery is disabled)
func ResolveFFprobeBin(ffprobeBin string) string {
	return resolveFFprobeBinWithLookPath(ffprobeBin, exec.LookPath)
}

func resolveFFprobeBinWithLookPath(ffprobeBin string, lookPath func(string) (string, error)) string {
	ffprobeBin = strings.TrimSpace(ffprobeBin)
	if ffprobeBin != "" {
		return ffprobeBin
	}
	if p, err := lookPath("ffprobe"); err == nil {
		return p
	}
	return ""
}
