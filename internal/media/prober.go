package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/keyframe-api/internal/command"
)

// Compile-time check that FFprobeProber implements Prober.
var _ Prober = (*FFprobeProber)(nil)

// FFprobeProber implements Prober using the ffprobe CLI.
type FFprobeProber struct {
	exec    command.Executor
	binPath string
	timeout time.Duration
}

// NewFFprobeProber creates a new FFprobeProber.
// If binPath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobeProber(exec command.Executor, binPath string, timeout time.Duration) *FFprobeProber {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &FFprobeProber{exec: exec, binPath: binPath, timeout: timeout}
}

// Duration returns the container duration in seconds of the media at path.
func (p *FFprobeProber) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	res, err := p.exec.Execute(ctx, p.binPath, args, p.timeout)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	if res.ExitCode != 0 {
		return 0, &ToolError{
			Tool:     p.binPath,
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}

	return parseDuration(res.Stdout)
}

// parseDuration parses ffprobe's bare duration output, e.g. "45.023000\n".
func parseDuration(out string) (float64, error) {
	raw := strings.TrimSpace(out)
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableDuration, raw)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnparseableDuration, raw)
	}
	return duration, nil
}
