// Package media acquires remote videos and extracts still frames from them
// by orchestrating external command-line tools (yt-dlp, ffprobe, ffmpeg).
package media

import "context"

// Downloader fetches a duration-bounded local copy of remote media.
type Downloader interface {
	// Download retrieves at most the leading budget seconds of the media at
	// locator and writes it to dst. The locator is validated before any
	// external call is made.
	Download(ctx context.Context, locator string, budget float64, dst string) error
}

// Prober measures media metadata.
type Prober interface {
	// Duration returns the duration in seconds of the media file at path.
	Duration(ctx context.Context, path string) (float64, error)
}

// FrameGrabber extracts still images from a video.
type FrameGrabber interface {
	// ExtractFrame writes the frame at timestamp (seconds) of videoPath to dst
	// as a JPEG image and returns the image bytes.
	ExtractFrame(ctx context.Context, videoPath string, timestamp float64, dst string) ([]byte, error)
}
