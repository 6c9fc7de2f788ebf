package media

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/maauso/keyframe-api/internal/command"
)

// DefaultJPEGQuality is the ffmpeg -q:v value for extracted frames (2 = high).
const DefaultJPEGQuality = 2

// Compile-time check that FFmpegFrameGrabber implements FrameGrabber.
var _ FrameGrabber = (*FFmpegFrameGrabber)(nil)

// FFmpegFrameGrabber implements FrameGrabber using the ffmpeg CLI.
type FFmpegFrameGrabber struct {
	exec    command.Executor
	binPath string
	timeout time.Duration
	quality int
}

// NewFFmpegFrameGrabber creates a new FFmpegFrameGrabber.
// If binPath is empty, it defaults to "ffmpeg" (found via PATH).
// The timeout applies to each extraction separately.
func NewFFmpegFrameGrabber(exec command.Executor, binPath string, timeout time.Duration) *FFmpegFrameGrabber {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegFrameGrabber{
		exec:    exec,
		binPath: binPath,
		timeout: timeout,
		quality: DefaultJPEGQuality,
	}
}

// ExtractFrame seeks to timestamp and writes exactly one still image to dst.
func (g *FFmpegFrameGrabber) ExtractFrame(ctx context.Context, videoPath string, timestamp float64, dst string) ([]byte, error) {
	args := []string{
		"-y", // Overwrite output file without asking
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64), // Input seek, fast
		"-i", videoPath,
		"-frames:v", "1", // Output single frame (image)
		"-q:v", strconv.Itoa(g.quality),
		dst,
	}

	res, err := g.exec.Execute(ctx, g.binPath, args, g.timeout)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, &ToolError{
			Tool:     g.binPath,
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}

	// ffmpeg exits 0 without writing anything when seeking past the end.
	data, err := os.ReadFile(dst) // #nosec G304 - dst is built from the session directory
	if err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOutputMissing, dst)
	}
	return data, nil
}
