// Package bootstrap provides dependency initialization for the keyframe API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/maauso/keyframe-api/internal/command"
	"github.com/maauso/keyframe-api/internal/config"
	"github.com/maauso/keyframe-api/internal/keyframe"
	"github.com/maauso/keyframe-api/internal/media"
	"github.com/maauso/keyframe-api/internal/workspace"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Workspaces *workspace.Manager
	Extractor  *keyframe.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	workspaces, err := workspace.NewManager(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create workspace manager: %w", err)
	}
	logger.Info("workspace configured",
		slog.String("root", workspaces.Root()),
	)

	checkTools(logger, cfg.YTDLPPath, cfg.FFprobePath, cfg.FFmpegPath)

	executor := command.NewOSExecutor()
	svc := keyframe.NewService(
		workspaces,
		media.NewYTDLPDownloader(executor, cfg.YTDLPPath, cfg.DownloadTimeout),
		media.NewFFprobeProber(executor, cfg.FFprobePath, cfg.ProbeTimeout),
		media.NewFFmpegFrameGrabber(executor, cfg.FFmpegPath, cfg.FrameTimeout),
		logger,
		keyframe.WithMaxConcurrentFrames(cfg.MaxConcurrentFrames),
	)

	return &Dependencies{
		Workspaces: workspaces,
		Extractor:  svc,
	}, nil
}

// checkTools warns about external tools that cannot be resolved. Requests
// needing a missing tool fail at call time.
func checkTools(logger *slog.Logger, tools ...string) {
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			logger.Warn("external tool not found",
				slog.String("tool", tool),
				slog.String("error", err.Error()),
			)
		}
	}
}
