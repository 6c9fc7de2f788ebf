package keyframe

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindValidation indicates malformed or missing request input.
	KindValidation Kind = "VALIDATION"
	// KindAcquisition indicates the media could not be downloaded.
	KindAcquisition Kind = "ACQUISITION"
	// KindProbe indicates the media duration could not be measured.
	KindProbe Kind = "PROBE"
	// KindExtraction indicates a planned frame could not be extracted.
	KindExtraction Kind = "EXTRACTION"
	// KindTimeout indicates a step exceeded its time budget.
	KindTimeout Kind = "TIMEOUT"
	// KindCleanup indicates the session could not be torn down.
	KindCleanup Kind = "CLEANUP"
	// KindInternal indicates a failure not attributable to input or tools.
	KindInternal Kind = "INTERNAL"
)

// User-facing messages per failure kind.
const (
	MsgLocatorRequired  = "videoUrl is required"
	MsgInvalidLocator   = "Invalid YouTube URL"
	MsgInvalidBudget    = "maxDuration must be greater than 0"
	MsgDownloadFailed   = "Failed to download video"
	MsgProbeFailed      = "Failed to read video duration"
	MsgExtractionFailed = "Failed to extract frame"
	MsgTimeout          = "Video processing timeout"
	MsgInternalFailure  = "Internal processing error"
)

// Error is the failure returned by Service.Extract.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Message is a human-readable summary safe to return to clients.
	Message string
	// Details carries tool diagnostics (e.g. stderr) when available.
	Details string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("keyframe: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("keyframe: %s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsClientError reports whether the failure was caused by request input.
func (e *Error) IsClientError() bool {
	return e.Kind == KindValidation
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var kfErr *Error
	if errors.As(err, &kfErr) {
		return kfErr.Kind
	}
	return KindInternal
}
