package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

// Process-level errors. Decode problems never surface here; they are
// recovered where they occur.
var (
	// ErrTimeout is returned when the wall-clock budget expired.
	ErrTimeout = errors.New("agent process timed out")

	// ErrCancelled is returned when the caller stopped the run.
	ErrCancelled = errors.New("agent process cancelled")

	// ErrEmptyCommand is returned when no binary was given.
	ErrEmptyCommand = errors.New("empty command")
)

// LaunchError reports that the process could not be started at all.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports a process that ran to completion with a non-zero code.
// Stderr is filled in by callers that captured it.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("process failed with exit code %d", e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
