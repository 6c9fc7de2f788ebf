// Package server provides the HTTP server for the keyframe API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// ExtractFramesRequest is the HTTP request body for keyframe extraction.
type ExtractFramesRequest struct {
	// VideoURL is the YouTube URL of the video to sample.
	VideoURL string `json:"videoUrl" validate:"required"`
	// MaxDuration is the number of leading seconds to sample. Nil means the
	// server default.
	MaxDuration *float64 `json:"maxDuration" validate:"omitempty,gt=0"`
}

// FrameResponse is one extracted frame.
type FrameResponse struct {
	// Time is the frame offset in seconds, formatted with one decimal.
	Time string `json:"time"`
	// DataURL is the frame image as a base64 data URL.
	DataURL string `json:"dataUrl"`
}

// ExtractFramesResponse is the HTTP response after a successful extraction.
type ExtractFramesResponse struct {
	Success bool            `json:"success"`
	Frames  []FrameResponse `json:"frames"`
	// Duration is the effective sampled duration, formatted with one decimal.
	Duration string `json:"duration"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Details carries tool diagnostics when available.
	Details string `json:"details,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
