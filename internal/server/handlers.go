package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/keyframe-api/internal/keyframe"
)

// maxBodyBytes bounds the size of a request body.
const maxBodyBytes = 1 << 20

// FrameExtractor runs the keyframe pipeline.
type FrameExtractor interface {
	Extract(ctx context.Context, req keyframe.Request) (*keyframe.Result, error)
}

var _ FrameExtractor = (*keyframe.Service)(nil)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            FrameExtractor
	validator          *validator.Validate
	logger             *slog.Logger
	defaultMaxDuration float64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithDefaultMaxDuration sets the budget used when a request omits maxDuration.
func WithDefaultMaxDuration(seconds float64) HandlerOption {
	return func(h *Handlers) {
		if seconds > 0 {
			h.defaultMaxDuration = seconds
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service FrameExtractor, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          newValidator(),
		logger:             logger,
		defaultMaxDuration: 60,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// ExtractFrames handles POST /api/extract-youtube-frames requests.
func (h *Handlers) ExtractFrames(w http.ResponseWriter, r *http.Request) {
	var req ExtractFramesRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		h.writeError(w, http.StatusBadRequest, validationMessage(err), "")
		return
	}

	budget := h.defaultMaxDuration
	if req.MaxDuration != nil {
		budget = *req.MaxDuration
	}

	// Client disconnects do not cancel an in-flight pipeline.
	ctx := context.WithoutCancel(r.Context())
	res, err := h.service.Extract(ctx, keyframe.Request{
		SourceLocator:  req.VideoURL,
		DurationBudget: budget,
	})
	if err != nil {
		h.writeExtractError(w, err)
		return
	}

	frames := make([]FrameResponse, len(res.Frames))
	for i, f := range res.Frames {
		frames[i] = FrameResponse{
			Time:    formatSeconds(f.Timestamp),
			DataURL: f.DataURL,
		}
		h.logger.Debug("frame encoded",
			slog.Int("index", f.Index),
			slog.String("time", frames[i].Time),
			slog.Int("data_url_bytes", len(f.DataURL)),
		)
	}

	h.writeJSON(w, http.StatusOK, ExtractFramesResponse{
		Success:  true,
		Frames:   frames,
		Duration: formatSeconds(res.EffectiveDuration),
	})
}

// writeExtractError maps a pipeline failure to its HTTP response.
func (h *Handlers) writeExtractError(w http.ResponseWriter, err error) {
	var kfErr *keyframe.Error
	if !errors.As(err, &kfErr) {
		h.logger.Error("unexpected extraction error", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, keyframe.MsgInternalFailure, "")
		return
	}

	if kfErr.IsClientError() {
		h.writeError(w, http.StatusBadRequest, kfErr.Message, "")
		return
	}
	h.writeError(w, http.StatusInternalServerError, kfErr.Message, kfErr.Details)
}

// validationMessage renders the first validation failure for clients.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch {
	case fe.Field() == "videoUrl" && fe.Tag() == "required":
		return keyframe.MsgLocatorRequired
	case fe.Field() == "maxDuration" && fe.Tag() == "gt":
		return keyframe.MsgInvalidBudget
	case fe.Tag() == "required":
		return fmt.Sprintf("%s is required", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// formatSeconds formats seconds with one decimal place.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 1, 64)
}

// writeJSON writes a JSON response using the handler's logger.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, h.logger, status, data)
}

// writeError writes an error response using the handler's logger.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message, details string) {
	writeError(w, h.logger, status, message, details)
}

// writeJSON writes a JSON response. Encode failures are logged to logger.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message, details string) {
	writeJSON(w, logger, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
