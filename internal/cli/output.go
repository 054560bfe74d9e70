package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jacentio/regtree/hive"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The store refused the operation (missing key, has subkeys, read-only, ...)
	ExitCommandError = 2 // Command error (bad arguments, unknown backend, store cannot be opened)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric   = "E001"
	ErrCodeNotFound  = "E002"
	ErrCodeInvalid   = "E003"
	ErrCodeAccess    = "E004"
	ErrCodeConflict  = "E005"
	ErrCodeBadUsage  = "E006"
	ErrCodeOpenStore = "E007"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written by an OutputFormatter
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode classifies a store error for JSON output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, hive.ErrKeyNotFound), errors.Is(err, hive.ErrValueNotFound):
		return ErrCodeNotFound
	case errors.Is(err, hive.ErrInvalidPath), errors.Is(err, hive.ErrInvalidName),
		errors.Is(err, hive.ErrInvalidOption), errors.Is(err, hive.ErrUnsupportedType):
		return ErrCodeInvalid
	case errors.Is(err, hive.ErrReadOnly), errors.Is(err, hive.ErrAccessDenied):
		return ErrCodeAccess
	case errors.Is(err, hive.ErrHasSubKeys), errors.Is(err, hive.ErrChildMustBeVolatile),
		errors.Is(err, hive.ErrKeyDeleted):
		return ErrCodeConflict
	default:
		return ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for diagnostics and text errors (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// Text output prints data with fmt unless it is nil.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if data != nil {
		fmt.Fprintln(f.Writer, data)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Fail reports a store error and returns it as an ExitFailure.
func (f *OutputFormatter) Fail(err error) error {
	_ = f.Error(errorCode(err), err.Error(), nil)
	exitErr := WrapExitError(ExitFailure, "operation failed", err)
	exitErr.reported = true
	return exitErr
}

// Usage reports a command error and returns it as an ExitCommandError.
func (f *OutputFormatter) Usage(code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	exitErr := WrapExitError(ExitCommandError, "command error", err)
	exitErr.reported = true
	return exitErr
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
