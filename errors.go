package gwsvc

import (
	"errors"
	"fmt"
)

// Common errors returned by gateway service operations
var (
	// ErrNotInstalled indicates no unit with the derived name is registered
	ErrNotInstalled = errors.New("gwsvc: service not installed")

	// ErrWatchUnsupported indicates the backend has no watchable unit
	// definition file (PM2 and Scheduled Tasks keep theirs in the
	// manager's own registry)
	ErrWatchUnsupported = errors.New("gwsvc: backend has no watchable unit definition")
)

// ToolUnavailableError indicates a backend's CLI binary is not installed
// or not reachable through PATH. Availability probes gate operations that
// would otherwise hit this; install/stop/restart return it when the probe
// is bypassed.
type ToolUnavailableError struct {
	// Backend is the adapter that needed the tool
	Backend Backend
	// Tool is the binary that could not be found
	Tool string
	// Err is the underlying lookup error
	Err error
}

// Error returns a formatted error message
func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("gwsvc: %s unavailable: %q not found in PATH", e.Backend, e.Tool)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ToolUnavailableError) Unwrap() error {
	return e.Err
}

// InstallError indicates an install step (unit teardown/write, create,
// start, or persist) failed. Output carries the step's captured stderr,
// falling back to stdout when stderr was empty.
type InstallError struct {
	// Backend is the adapter that performed the install
	Backend Backend
	// Step names the failing install step
	Step string
	// Output is the captured diagnostic text from the failing step
	Output string
	// Code is the tool's exit code, 0 when the step never ran
	Code int
	// Err is the underlying error, if any
	Err error
}

// Error returns a formatted error message
func (e *InstallError) Error() string {
	msg := fmt.Sprintf("gwsvc: %s install failed at %s", e.Backend, e.Step)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.Code)
	}
	switch {
	case e.Output != "":
		msg += ": " + e.Output
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *InstallError) Unwrap() error {
	return e.Err
}

// CommandError indicates a stop or restart primitive returned nonzero.
// The same message-composition rule as InstallError applies: stderr
// first, stdout as fallback.
type CommandError struct {
	// Backend is the adapter that ran the command
	Backend Backend
	// Op is the operation that failed
	Op Operation
	// Output is the captured diagnostic text
	Output string
	// Code is the tool's exit code, 0 when the command never ran
	Code int
	// Err is the underlying error, if any
	Err error
}

// Error returns a formatted error message
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("gwsvc: %s %s failed", e.Backend, e.Op)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.Code)
	}
	switch {
	case e.Output != "":
		msg += ": " + e.Output
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *CommandError) Unwrap() error {
	return e.Err
}

// UnsupportedPlatformError indicates no backend adapter set exists for
// the detected platform. Resolution fails fast with this error.
type UnsupportedPlatformError struct {
	// Platform is the detected GOOS value
	Platform string
}

// Error returns a formatted error message
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("gwsvc: unsupported platform %q (supported: darwin, linux, windows)", e.Platform)
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
