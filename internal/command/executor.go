// Package command runs external command-line tools behind a narrow interface
// so that tool-backed components can be tested against a fake executor.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Static errors for command execution.
var (
	// ErrTimeout is returned when a command does not exit within its budget.
	ErrTimeout = errors.New("command: timed out")
	// ErrStart is returned when a command cannot be started at all.
	ErrStart = errors.New("command: failed to start")
)

// waitDelay bounds how long Execute waits for output pipes to close once the
// tool has been killed.
const waitDelay = 2 * time.Second

// Result is the outcome of a command that ran to exit.
type Result struct {
	// ExitCode is the process exit status. Zero means success.
	ExitCode int
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error.
	Stderr string
}

// Executor runs a single external command.
type Executor interface {
	// Execute runs name with args and blocks until it exits or timeout elapses.
	// A non-zero exit status is reported through Result.ExitCode, not as an
	// error. A zero timeout means no budget beyond ctx.
	Execute(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error)
}

// Compile-time check that OSExecutor implements Executor.
var _ Executor = (*OSExecutor)(nil)

// OSExecutor implements Executor using os/exec.
type OSExecutor struct{}

// NewOSExecutor creates a new OSExecutor.
func NewOSExecutor() *OSExecutor {
	return &OSExecutor{}
}

// Execute implements Executor.Execute.
func (e *OSExecutor) Execute(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// #nosec G204 - tool paths are set by configuration, not user input
	cmd := exec.CommandContext(runCtx, name, args...)
	// Children of the tool (yt-dlp runs ffmpeg) are killed with it, and
	// Run stops waiting on pipes they still hold after waitDelay.
	killProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	// The parent context wins over our own budget when both are done.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s cancelled: %w", name, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%w: %s after %s", ErrTimeout, name, timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("%w: %s: %w", ErrStart, name, err)
	}

	return res, nil
}
