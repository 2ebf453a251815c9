package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/studyroom/internal/logger"
)

// CodeInternal is reported for any error that carries no code of its own.
const CodeInternal = "internal"

// Error is a domain error with a stable code that is safe to send to a
// client. Sentinels are compared with errors.Is by identity.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// New creates a coded domain error
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the code of the first coded error in err's chain,
// or CodeInternal.
func CodeOf(err error) string {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// PublicMessage returns a message that can be shown to a client. Uncoded
// errors are replaced by a generic message so storage details stay server-side.
func PublicMessage(err error) string {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Message
	}
	return "internal server error"
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
