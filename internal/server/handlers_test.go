package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/keyframe-api/internal/command"
	"github.com/maauso/keyframe-api/internal/keyframe"
	"github.com/maauso/keyframe-api/internal/media"
	"github.com/maauso/keyframe-api/internal/workspace"
)

const testVideoURL = "https://www.youtube.com/watch?v=abc123"

var jpegFrame = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// mockExtractor implements FrameExtractor for testing.
type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, req keyframe.Request) (*keyframe.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keyframe.Result), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandlers(t *testing.T, opts ...HandlerOption) (*Handlers, *mockExtractor) {
	t.Helper()
	extractor := &mockExtractor{}
	return NewHandlers(extractor, testLogger(), opts...), extractor
}

func postExtract(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/extract-youtube-frames", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestExtractFrames_Success(t *testing.T) {
	h, extractor := newTestHandlers(t)

	result := &keyframe.Result{EffectiveDuration: 45}
	for i := 0; i < 6; i++ {
		result.Frames = append(result.Frames, keyframe.Frame{
			Index:     i,
			Timestamp: float64(i) * 7.5,
			DataURL:   "data:image/jpeg;base64,AAAA",
		})
	}
	extractor.On("Extract", mock.Anything, keyframe.Request{SourceLocator: testVideoURL, DurationBudget: 60}).
		Return(result, nil).Once()

	rec := postExtract(t, http.HandlerFunc(h.ExtractFrames), `{"videoUrl":"`+testVideoURL+`","maxDuration":60}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ExtractFramesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "45.0", resp.Duration)

	times := make([]string, len(resp.Frames))
	for i, f := range resp.Frames {
		times[i] = f.Time
		assert.Equal(t, "data:image/jpeg;base64,AAAA", f.DataURL)
	}
	assert.Equal(t, []string{"0.0", "7.5", "15.0", "22.5", "30.0", "37.5"}, times)
	extractor.AssertExpectations(t)
}

func TestExtractFrames_DefaultMaxDuration(t *testing.T) {
	tests := []struct {
		name   string
		opts   []HandlerOption
		body   string
		budget float64
	}{
		{"omitted", nil, `{"videoUrl":"` + testVideoURL + `"}`, 60},
		{"null", nil, `{"videoUrl":"` + testVideoURL + `","maxDuration":null}`, 60},
		{"configured default", []HandlerOption{WithDefaultMaxDuration(20)}, `{"videoUrl":"` + testVideoURL + `"}`, 20},
		{"explicit fractional", nil, `{"videoUrl":"` + testVideoURL + `","maxDuration":12.5}`, 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, extractor := newTestHandlers(t, tt.opts...)
			extractor.On("Extract", mock.Anything, keyframe.Request{SourceLocator: testVideoURL, DurationBudget: tt.budget}).
				Return(&keyframe.Result{EffectiveDuration: tt.budget}, nil).Once()

			rec := postExtract(t, http.HandlerFunc(h.ExtractFrames), tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			extractor.AssertExpectations(t)
		})
	}
}

func TestExtractFrames_InvalidJSON(t *testing.T) {
	h, extractor := newTestHandlers(t)

	for _, body := range []string{`{invalid`, ``, `{"videoUrl": 42}`} {
		rec := postExtract(t, http.HandlerFunc(h.ExtractFrames), body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid JSON body", decodeError(t, rec).Error)
	}
	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestExtractFrames_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing videoUrl", `{"maxDuration":60}`, "videoUrl is required"},
		{"empty videoUrl", `{"videoUrl":""}`, "videoUrl is required"},
		{"zero maxDuration", `{"videoUrl":"` + testVideoURL + `","maxDuration":0}`, "maxDuration must be greater than 0"},
		{"negative maxDuration", `{"videoUrl":"` + testVideoURL + `","maxDuration":-3}`, "maxDuration must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, extractor := newTestHandlers(t)

			rec := postExtract(t, http.HandlerFunc(h.ExtractFrames), tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantMsg, resp.Error)
			assert.Empty(t, resp.Details)
			extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
		})
	}
}

func TestExtractFrames_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMsg     string
		wantDetails string
	}{
		{
			name:       "invalid locator",
			err:        &keyframe.Error{Kind: keyframe.KindValidation, Message: keyframe.MsgInvalidLocator},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid YouTube URL",
		},
		{
			name:        "download failed",
			err:         &keyframe.Error{Kind: keyframe.KindAcquisition, Message: keyframe.MsgDownloadFailed, Details: "ERROR: Video unavailable"},
			wantStatus:  http.StatusInternalServerError,
			wantMsg:     "Failed to download video",
			wantDetails: "ERROR: Video unavailable",
		},
		{
			name:       "timeout",
			err:        &keyframe.Error{Kind: keyframe.KindTimeout, Message: keyframe.MsgTimeout},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Video processing timeout",
		},
		{
			name:       "probe failed",
			err:        &keyframe.Error{Kind: keyframe.KindProbe, Message: keyframe.MsgProbeFailed},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to read video duration",
		},
		{
			name:       "unclassified error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    keyframe.MsgInternalFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, extractor := newTestHandlers(t)
			extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			rec := postExtract(t, http.HandlerFunc(h.ExtractFrames), `{"videoUrl":"`+testVideoURL+`"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantMsg, resp.Error)
			assert.Equal(t, tt.wantDetails, resp.Details)
		})
	}
}

func TestExtractFrames_DetachesFromClientCancellation(t *testing.T) {
	h, extractor := newTestHandlers(t)

	extractor.On("Extract", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(&keyframe.Result{}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/extract-youtube-frames",
		strings.NewReader(`{"videoUrl":"`+testVideoURL+`"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.ExtractFrames(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	extractor.AssertExpectations(t)
}

func TestRouter_Integration(t *testing.T) {
	h, extractor := newTestHandlers(t)
	router := NewRouter(h, testLogger(), DefaultConfig())

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("extract", func(t *testing.T) {
		extractor.On("Extract", mock.Anything, mock.Anything).Return(&keyframe.Result{EffectiveDuration: 3}, nil).Once()
		rec := postExtract(t, router, `{"videoUrl":"`+testVideoURL+`"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/extract-youtube-frames", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("wildcard echoes origin", func(t *testing.T) {
		handler := CORSMiddleware([]string{"*"})(next)
		req := httptest.NewRequest(http.MethodPost, "/api/extract-youtube-frames", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("disallowed origin", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://app.example"})(next)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		handler := CORSMiddleware([]string{"https://app.example"})(next)
		req := httptest.NewRequest(http.MethodOptions, "/api/extract-youtube-frames", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Error)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, logger, http.StatusBadGateway, "upstream", "")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/extract-youtube-frames", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "status=502")
	assert.Contains(t, out, "path=/api/extract-youtube-frames")
}

// fakeTools stands in for yt-dlp, ffprobe and ffmpeg by writing the files
// each tool would produce.
type fakeTools struct {
	mu        sync.Mutex
	duration  string
	ytdlpFail string
	calls     []string
}

func (f *fakeTools) Execute(_ context.Context, name string, args []string, _ time.Duration) (command.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	switch name {
	case "yt-dlp":
		if f.ytdlpFail != "" {
			return command.Result{ExitCode: 1, Stderr: f.ytdlpFail}, nil
		}
		dst := args[slices.Index(args, "-o")+1]
		return command.Result{}, os.WriteFile(dst, []byte("video"), 0600)
	case "ffprobe":
		return command.Result{Stdout: f.duration + "\n"}, nil
	case "ffmpeg":
		return command.Result{}, os.WriteFile(args[len(args)-1], jpegFrame, 0600)
	}
	return command.Result{}, command.ErrStart
}

func newPipelineRouter(t *testing.T, tools *fakeTools) (http.Handler, *workspace.Manager) {
	t.Helper()
	ws, err := workspace.NewManager(t.TempDir())
	require.NoError(t, err)

	svc := keyframe.NewService(ws,
		media.NewYTDLPDownloader(tools, "yt-dlp", time.Minute),
		media.NewFFprobeProber(tools, "ffprobe", time.Minute),
		media.NewFFmpegFrameGrabber(tools, "ffmpeg", time.Minute),
		testLogger(),
	)
	return NewRouter(NewHandlers(svc, testLogger()), testLogger(), DefaultConfig()), ws
}

func TestExtractFrames_Pipeline(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		tools := &fakeTools{duration: "45.000000"}
		router, ws := newPipelineRouter(t, tools)

		rec := postExtract(t, router, `{"videoUrl":"`+testVideoURL+`","maxDuration":60}`)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp ExtractFramesResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "45.0", resp.Duration)
		require.Len(t, resp.Frames, 6)
		assert.Equal(t, "37.5", resp.Frames[5].Time)
		assert.True(t, strings.HasPrefix(resp.Frames[0].DataURL, "data:image/jpeg;base64,"))

		assert.Equal(t, 0, ws.Active())
		entries, err := os.ReadDir(ws.Root())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("invalid locator", func(t *testing.T) {
		tools := &fakeTools{}
		router, _ := newPipelineRouter(t, tools)

		rec := postExtract(t, router, `{"videoUrl":"http://example.com/video"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid YouTube URL", decodeError(t, rec).Error)
		assert.Empty(t, tools.calls)
	})

	t.Run("download failure", func(t *testing.T) {
		tools := &fakeTools{ytdlpFail: "ERROR: [youtube] abc123: Video unavailable"}
		router, ws := newPipelineRouter(t, tools)

		rec := postExtract(t, router, `{"videoUrl":"`+testVideoURL+`"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "Failed to download video", resp.Error)
		assert.Equal(t, "ERROR: [youtube] abc123: Video unavailable", resp.Details)
		assert.Equal(t, []string{"yt-dlp"}, tools.calls)

		entries, err := os.ReadDir(ws.Root())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestExtractFrames_LogsFramesByIndex(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	extractor := &mockExtractor{}
	h := NewHandlers(extractor, logger)

	result := &keyframe.Result{EffectiveDuration: 22.5}
	for i := 0; i < 3; i++ {
		result.Frames = append(result.Frames, keyframe.Frame{
			Index:     i,
			Timestamp: float64(i) * 7.5,
			DataURL:   "data:image/jpeg;base64,AAAA",
		})
	}
	extractor.On("Extract", mock.Anything, mock.Anything).Return(result, nil).Once()

	rec := postExtract(t, http.HandlerFunc(h.ExtractFrames), `{"videoUrl":"`+testVideoURL+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "frame encoded"))
	assert.Contains(t, out, "index=2 time=15.0")
}

func TestWriteJSON_EncodeFailureUsesHandlerLogger(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandlers(&mockExtractor{}, slog.New(slog.NewTextHandler(&buf, nil)))

	rec := httptest.NewRecorder()
	h.writeJSON(rec, http.StatusOK, map[string]any{"unsupported": make(chan int)})

	assert.Contains(t, buf.String(), "failed to encode JSON response")
	assert.Contains(t, buf.String(), "unsupported type")
}
