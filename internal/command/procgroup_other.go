//go:build !unix

package command

import "os/exec"

// killProcessGroup keeps the default cancellation, which kills only the
// direct child. WaitDelay still bounds the wait on inherited pipes.
func killProcessGroup(*exec.Cmd) {}
