package gantry

import "fmt"

// RecoverableError marks a failure that is expected in normal operation and
// safe to swallow at the call site, such as removing a container that does
// not exist.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("recoverable: %v", e.Err)
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// DaemonError wraps a failed or rejected engine call. Fatal to the run.
type DaemonError struct {
	Err error
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("engine daemon: %v", e.Err)
}

func (e *DaemonError) Unwrap() error {
	return e.Err
}

// StartupError wraps a pre-flight or creation failure before the test body
// had a chance to run.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup: %v", e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// ProcessingError reports an internal invariant violation.
type ProcessingError struct {
	Msg string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing: %s", e.Msg)
}

// TestBodyError reports a fatal condition raised from inside the test body,
// either a failed handle lookup or an explicit Operations.Failure call.
type TestBodyError struct {
	Msg string
}

func (e *TestBodyError) Error() string {
	return fmt.Sprintf("test body: %s", e.Msg)
}

// InspectError wraps a failure to read back container state from the engine.
type InspectError struct {
	Container string
	Err       error
}

func (e *InspectError) Error() string {
	return fmt.Sprintf("inspect %q: %v", e.Container, e.Err)
}

func (e *InspectError) Unwrap() error {
	return e.Err
}

// LogWriteError wraps a failure to capture or forward container logs.
type LogWriteError struct {
	Container string
	Err       error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("log capture %q: %v", e.Container, e.Err)
}

func (e *LogWriteError) Unwrap() error {
	return e.Err
}

func startupErrorf(format string, args ...any) *StartupError {
	return &StartupError{Err: fmt.Errorf(format, args...)}
}
