package claude

import "fmt"

// SDKError is the base error type for all errors produced by this package.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// CLIConnectionError is returned when the CLI process cannot be reached,
// either at connect time or on a later read or write.
type CLIConnectionError struct {
	SDKError
}

// CLINotFoundError is returned when no Claude Code executable can be located.
type CLINotFoundError struct {
	CLIConnectionError
	CLIPath string
}

// ProcessError is returned when the CLI process exits abnormally.
type ProcessError struct {
	SDKError
	ExitCode int
	Stderr   string
}

func NewProcessError(message string, exitCode int, stderr string) *ProcessError {
	msg := message
	if exitCode != 0 {
		msg = fmt.Sprintf("%s (exit code: %d)", msg, exitCode)
	}
	if stderr != "" {
		msg = fmt.Sprintf("%s\nError output: %s", msg, stderr)
	}
	return &ProcessError{
		SDKError: SDKError{Message: msg},
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

// CLIJSONDecodeError is returned when a line from the CLI cannot be decoded
// as JSON, or when a single message exceeds the configured buffer ceiling.
// Line carries the offending payload.
type CLIJSONDecodeError struct {
	SDKError
	Line string
}

// MessageParseError is returned when a decoded JSON value does not match any
// known message shape. Data carries the original payload for diagnostics.
type MessageParseError struct {
	SDKError
	Data map[string]any
}

// ControlProtocolError indicates the control protocol has desynchronized,
// for example a control_response whose request_id matches no outstanding
// request. Fatal for the session.
type ControlProtocolError struct {
	SDKError
	RequestID string
}

func newControlProtocolError(requestID, message string) *ControlProtocolError {
	return &ControlProtocolError{
		SDKError:  SDKError{Message: message},
		RequestID: requestID,
	}
}
