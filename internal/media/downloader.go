package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/maauso/keyframe-api/internal/command"
)

// DefaultDownloadFormat selects the best single-file stream up to 720p.
const DefaultDownloadFormat = "best[height<=720]"

// Compile-time check that YTDLPDownloader implements Downloader.
var _ Downloader = (*YTDLPDownloader)(nil)

// YTDLPDownloader implements Downloader using the yt-dlp CLI.
type YTDLPDownloader struct {
	exec    command.Executor
	binPath string
	timeout time.Duration
	format  string
}

// NewYTDLPDownloader creates a new YTDLPDownloader.
// If binPath is empty, it defaults to "yt-dlp" (found via PATH).
// The timeout bounds the whole download; zero means no limit.
func NewYTDLPDownloader(exec command.Executor, binPath string, timeout time.Duration) *YTDLPDownloader {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &YTDLPDownloader{
		exec:    exec,
		binPath: binPath,
		timeout: timeout,
		format:  DefaultDownloadFormat,
	}
}

// Download implements Downloader.Download. Only the section [0, budget] is
// fetched. It performs a single attempt.
func (d *YTDLPDownloader) Download(ctx context.Context, locator string, budget float64, dst string) error {
	if err := ValidateLocator(locator); err != nil {
		return err
	}
	if !(budget > 0) || math.IsInf(budget, 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidBudget, budget)
	}

	args := []string{
		"-f", d.format, // Bound resolution to keep transfer small
		"--download-sections", "*0-" + strconv.FormatFloat(budget, 'f', -1, 64),
		"--no-playlist", // Never expand a playlist locator
		"-o", dst,
		locator,
	}

	res, err := d.exec.Execute(ctx, d.binPath, args, d.timeout)
	if err != nil {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	if res.ExitCode != 0 {
		return &ToolError{
			Tool:     d.binPath,
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		}
	}

	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, dst)
	}
	return nil
}
