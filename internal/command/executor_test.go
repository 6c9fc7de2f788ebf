package command

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoShell skips the test if sh is not available.
func skipIfNoShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}

func TestOSExecutor_CapturesOutput(t *testing.T) {
	skipIfNoShell(t)

	res, err := NewOSExecutor().Execute(context.Background(), "sh",
		[]string{"-c", "echo out; echo err >&2"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestOSExecutor_NonZeroExitIsNotAnError(t *testing.T) {
	skipIfNoShell(t)

	res, err := NewOSExecutor().Execute(context.Background(), "sh",
		[]string{"-c", "echo boom >&2; exit 3"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestOSExecutor_Timeout(t *testing.T) {
	skipIfNoShell(t)

	start := time.Now()
	_, err := NewOSExecutor().Execute(context.Background(), "sh",
		[]string{"-c", "sleep 5"}, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestOSExecutor_MissingBinary(t *testing.T) {
	_, err := NewOSExecutor().Execute(context.Background(), "definitely-not-a-real-tool-xyz", nil, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStart)
}

func TestOSExecutor_CancelledContext(t *testing.T) {
	skipIfNoShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOSExecutor().Execute(ctx, "sh", []string{"-c", "true"}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestOSExecutor_TimeoutWithChildProcesses(t *testing.T) {
	skipIfNoShell(t)

	// The background sleep inherits the output pipes of sh.
	start := time.Now()
	_, err := NewOSExecutor().Execute(context.Background(), "sh",
		[]string{"-c", "sleep 5 & wait"}, 200*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}
