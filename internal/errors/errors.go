// Package errors contains helper functions for wrapping errors with stack traces, stack output, and panic recovery.
package errors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// New creates a new error with a stack trace. The argument may be a string or an existing error.
// An error that already carries a stack trace is returned as is. A nil error yields nil.
func New(val any) error {
	if val == nil {
		return nil
	}

	if err, ok := val.(error); ok && ContainsStackTrace(err) {
		return err
	}

	return goerrors.Wrap(val, 1)
}

// Errorf creates a new error from the format and wraps it in an Error type that contains the stack trace.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...) //nolint:err113

	return goerrors.Wrap(err, 1)
}

// WithPrefix wraps the given error in an Error type that contains the stack trace and prepends
// the formatted message. A nil error yields nil.
func WithPrefix(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return goerrors.WrapPrefix(err, fmt.Sprintf(format, args...), 1)
}

// ErrorWithExitCode is used to specify the exit code of the app.
type ErrorWithExitCode struct {
	Err      error
	ExitCode int
}

func (err ErrorWithExitCode) Error() string {
	return err.Err.Error()
}

func (err ErrorWithExitCode) Unwrap() error {
	return err.Err
}

// ExitCoder is implemented by errors that decide the app exit code themselves.
type ExitCoder interface {
	ExitStatus() int
}

// ExitCode returns the exit code carried by err, or the given default when nothing in the chain specifies one.
func ExitCode(err error, def int) int {
	var withCode ErrorWithExitCode
	if As(err, &withCode) {
		return withCode.ExitCode
	}

	for _, err := range UnwrapErrors(err) {
		if coder, ok := err.(ExitCoder); ok {
			return coder.ExitStatus()
		}
	}

	return def
}
