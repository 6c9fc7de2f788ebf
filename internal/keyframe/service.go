// Package keyframe provides the ExtractService use case that turns a remote
// video reference into a small set of evenly spaced, base64-embedded stills.
//
// A call to Service.Extract runs one pipeline:
//  1. Validate the request (no side effects on failure)
//  2. Open an isolated workspace session
//  3. Download the leading DurationBudget seconds of the media
//  4. Probe the real duration and clamp it to the budget
//  5. Plan the sample timestamps
//  6. Extract and encode one frame per timestamp, in order
//  7. Close the session, whatever the outcome
package keyframe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/maauso/keyframe-api/internal/command"
	"github.com/maauso/keyframe-api/internal/dataurl"
	"github.com/maauso/keyframe-api/internal/media"
	"github.com/maauso/keyframe-api/internal/sampling"
	"github.com/maauso/keyframe-api/internal/workspace"
)

// Workspaces allocates and tears down per-request sessions.
type Workspaces interface {
	Open(ctx context.Context) (*workspace.Session, error)
	Close(s *workspace.Session) error
}

// Request contains the input parameters for keyframe extraction.
type Request struct {
	// SourceLocator is the URL of the remote video.
	SourceLocator string
	// DurationBudget is the maximum number of leading seconds to sample.
	DurationBudget float64
}

// Validate checks the request without touching the filesystem or any tool.
func (r Request) Validate() error {
	if err := media.ValidateLocator(r.SourceLocator); err != nil {
		msg := MsgInvalidLocator
		if errors.Is(err, media.ErrLocatorRequired) {
			msg = MsgLocatorRequired
		}
		return &Error{Kind: KindValidation, Message: msg, Err: err}
	}
	if !(r.DurationBudget > 0) || math.IsInf(r.DurationBudget, 1) {
		return &Error{
			Kind:    KindValidation,
			Message: MsgInvalidBudget,
			Err:     fmt.Errorf("%w: got %v", media.ErrInvalidBudget, r.DurationBudget),
		}
	}
	return nil
}

// Frame is one extracted still image.
type Frame struct {
	// Index is the position of the frame in the sample plan.
	Index int
	// Timestamp is the offset of the frame in seconds.
	Timestamp float64
	// DataURL is the image as a media-type tagged base64 data URL.
	DataURL string
}

// Result is the outcome of a successful extraction.
type Result struct {
	// Frames are ordered by ascending timestamp.
	Frames []Frame
	// EffectiveDuration is min(measured duration, DurationBudget) in seconds.
	EffectiveDuration float64
}

// Service orchestrates the keyframe extraction pipeline.
// It is safe for concurrent use; each call owns its own session.
type Service struct {
	workspaces Workspaces
	downloader media.Downloader
	prober     media.Prober
	grabber    media.FrameGrabber
	logger     *slog.Logger
	// maxConcurrentFrames limits parallel frame extractions; 1 is sequential.
	maxConcurrentFrames int
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithMaxConcurrentFrames sets how many frames may be extracted at once.
// Values below 1 are ignored. Output order is preserved regardless.
func WithMaxConcurrentFrames(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrentFrames = n
		}
	}
}

// NewService creates a new Service.
func NewService(
	workspaces Workspaces,
	downloader media.Downloader,
	prober media.Prober,
	grabber media.FrameGrabber,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		workspaces:          workspaces,
		downloader:          downloader,
		prober:              prober,
		grabber:             grabber,
		logger:              logger,
		maxConcurrentFrames: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract runs the pipeline for req. Exactly one of the return values is
// non-nil; errors are always *Error. The session is closed before Extract
// returns.
func (s *Service) Extract(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	r := &run{state: StateStart, logger: s.logger}

	session, err := s.workspaces.Open(ctx)
	if err != nil {
		r.fail()
		r.clean()
		return nil, &Error{Kind: KindInternal, Message: MsgInternalFailure, Err: fmt.Errorf("open session: %w", err)}
	}
	r.logger = s.logger.With(slog.String("session_id", session.ID))
	defer s.finalize(r, session)

	res, err := s.process(ctx, r, req, session)
	if err != nil {
		r.fail()
		r.logger.Error("keyframe extraction failed",
			slog.String("kind", string(KindOf(err))),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, err
	}

	r.logger.Info("keyframes extracted",
		slog.Int("frames", len(res.Frames)),
		slog.Float64("duration", res.EffectiveDuration),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// process runs the steps between SessionOpened and Completed.
func (s *Service) process(ctx context.Context, r *run, req Request, session *workspace.Session) (*Result, error) {
	if err := r.advance(StateSessionOpened); err != nil {
		return nil, internalError(err)
	}

	r.logger.Info("downloading video",
		slog.String("url", req.SourceLocator),
		slog.Float64("max_duration", req.DurationBudget),
	)
	if err := s.downloader.Download(ctx, req.SourceLocator, req.DurationBudget, session.MediaPath()); err != nil {
		return nil, classify(err, KindAcquisition, MsgDownloadFailed)
	}
	if err := r.advance(StateAcquired); err != nil {
		return nil, internalError(err)
	}

	measured, err := s.prober.Duration(ctx, session.MediaPath())
	if err != nil {
		return nil, classify(err, KindProbe, MsgProbeFailed)
	}
	// Guards against metadata over-reporting and budgets beyond the media.
	effective := min(measured, req.DurationBudget)
	if err := r.advance(StateProbed); err != nil {
		return nil, internalError(err)
	}

	plan := sampling.New(effective)
	if err := r.advance(StatePlanned); err != nil {
		return nil, internalError(err)
	}

	r.logger.Info("extracting keyframes",
		slog.Int("frame_count", plan.FrameCount),
		slog.Float64("duration", effective),
		slog.Float64("measured_duration", measured),
	)
	if err := r.advance(StateExtracting); err != nil {
		return nil, internalError(err)
	}
	frames, err := s.extractFrames(ctx, session, plan)
	if err != nil {
		return nil, err
	}

	if err := r.advance(StateCompleted); err != nil {
		return nil, internalError(err)
	}
	return &Result{Frames: frames, EffectiveDuration: effective}, nil
}

// extractFrames extracts every planned frame. With one worker it runs in
// plan order and stops at the first failure. With more, the first failure
// cancels outstanding extractions. No partial list is ever returned.
func (s *Service) extractFrames(ctx context.Context, session *workspace.Session, plan sampling.Plan) ([]Frame, error) {
	frames := make([]Frame, plan.FrameCount)

	if s.maxConcurrentFrames <= 1 || plan.FrameCount == 1 {
		for i, ts := range plan.Timestamps {
			f, err := s.extractOne(ctx, session, i, ts)
			if err != nil {
				return nil, err
			}
			frames[i] = f
		}
		return frames, nil
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		sem      = make(chan struct{}, s.maxConcurrentFrames)
	)
	for i, ts := range plan.Timestamps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-poolCtx.Done():
				return
			}
			if poolCtx.Err() != nil {
				return
			}

			f, err := s.extractOne(poolCtx, session, i, ts)
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			frames[i] = f
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, classify(err, KindExtraction, MsgExtractionFailed)
	}
	return frames, nil
}

// extractOne grabs and encodes the frame at index.
func (s *Service) extractOne(ctx context.Context, session *workspace.Session, index int, ts float64) (Frame, error) {
	data, err := s.grabber.ExtractFrame(ctx, session.MediaPath(), ts, session.FramePath(index))
	if err != nil {
		return Frame{}, classify(fmt.Errorf("frame %d at %.3fs: %w", index, ts, err), KindExtraction, MsgExtractionFailed)
	}
	return Frame{
		Index:     index,
		Timestamp: ts,
		DataURL:   dataurl.Encode(data),
	}, nil
}

// finalize closes the session. A teardown failure is logged and never
// replaces the outcome already determined.
func (s *Service) finalize(r *run, session *workspace.Session) {
	if p := recover(); p != nil {
		r.fail()
		s.closeSession(r, session)
		panic(p)
	}
	s.closeSession(r, session)
}

func (s *Service) closeSession(r *run, session *workspace.Session) {
	r.clean()
	if err := s.workspaces.Close(session); err != nil {
		cleanupErr := &Error{Kind: KindCleanup, Message: "session cleanup failed", Err: err}
		r.logger.Error("failed to clean up session",
			slog.String("kind", string(cleanupErr.Kind)),
			slog.String("error", cleanupErr.Error()),
		)
	}
}

// classify maps a step failure to an *Error of the given kind. Timeouts are
// reported as KindTimeout regardless of the step.
func classify(err error, kind Kind, msg string) *Error {
	if errors.Is(err, command.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: MsgTimeout, Err: err}
	}

	e := &Error{Kind: kind, Message: msg, Err: err}
	var toolErr *media.ToolError
	if errors.As(err, &toolErr) {
		e.Details = toolErr.Stderr
	}
	return e
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternalFailure, Err: err}
}

// run tracks the state of a single pipeline execution.
type run struct {
	state  State
	logger *slog.Logger
}

// advance moves the run to the next state.
func (r *run) advance(to State) error {
	if !canTransition(r.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, to)
	}
	r.logger.Debug("pipeline state",
		slog.String("from", string(r.state)),
		slog.String("to", string(to)),
	)
	r.state = to
	return nil
}

// fail moves a non-terminal run to Failed. It is a no-op once the run has
// completed, failed, or been cleaned.
func (r *run) fail() {
	if canTransition(r.state, StateFailed) {
		_ = r.advance(StateFailed)
	}
}

// clean moves a completed or failed run to Cleaned. It is a no-op once the
// run is terminal.
func (r *run) clean() {
	if r.state.IsTerminal() {
		return
	}
	if r.state != StateCompleted && r.state != StateFailed {
		r.fail()
	}
	_ = r.advance(StateCleaned)
}
