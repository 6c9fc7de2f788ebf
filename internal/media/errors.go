package media

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for media operations.
var (
	// ErrLocatorRequired is returned when no source locator is provided.
	ErrLocatorRequired = errors.New("media: source locator is required")
	// ErrInvalidLocator is returned when a locator does not match an accepted source.
	ErrInvalidLocator = errors.New("media: unsupported source locator")
	// ErrInvalidBudget is returned when the duration budget is not positive.
	ErrInvalidBudget = errors.New("media: duration budget must be positive")
	// ErrOutputMissing is returned when a tool exits cleanly without producing output.
	ErrOutputMissing = errors.New("media: tool produced no output file")
	// ErrUnparseableDuration is returned when probe output is not a valid duration.
	ErrUnparseableDuration = errors.New("media: unparseable duration")
)

// ToolError represents a tool that ran but exited with a non-zero status.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with status %d\nargs: %v\nstderr: %s",
		e.Tool, e.ExitCode, e.Args, strings.TrimSpace(e.Stderr))
}

// acceptedHosts are the substrings a locator must contain to be acquired.
var acceptedHosts = []string{"youtube.com", "youtu.be"}

// ValidateLocator reports whether locator is eligible for acquisition.
// The rule is a coarse substring match on known YouTube hosts.
func ValidateLocator(locator string) error {
	if strings.TrimSpace(locator) == "" {
		return ErrLocatorRequired
	}
	for _, host := range acceptedHosts {
		if strings.Contains(locator, host) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidLocator, locator)
}
