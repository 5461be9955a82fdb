package errors

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Domain error codes. Handlers map these onto HTTP statuses; services use
// them to tell a precondition failure from a missing row.
const (
	CodeInternal          = 500
	CodeNotFound          = 404
	CodeInvalidRequest    = 400
	CodeIllegalTransition = 409
	CodeDeliveryFailure   = 502
)

// Error is a coded error with a captured stack trace.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	Stack   string `json:"stack,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error { return e.Err }

// WithCode creates a new error with code
func WithCode(code int, message string) *Error {
	return &Error{Code: code, Message: message, Stack: captureStack()}
}

// WithCodef creates a new error with code and formatted message
func WithCodef(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack()}
}

// Wrap wraps an error with message
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeInternal, Message: message, Err: err, Stack: captureStack()}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...), Err: err, Stack: captureStack()}
}

func NotFound(format string, args ...interface{}) *Error {
	return WithCodef(CodeNotFound, format, args...)
}

func InvalidRequest(format string, args ...interface{}) *Error {
	return WithCodef(CodeInvalidRequest, format, args...)
}

func IllegalTransition(format string, args ...interface{}) *Error {
	return WithCodef(CodeIllegalTransition, format, args...)
}

func IsNotFound(err error) bool          { return GetCode(err) == CodeNotFound }
func IsInvalidRequest(err error) bool    { return GetCode(err) == CodeInvalidRequest }
func IsIllegalTransition(err error) bool { return GetCode(err) == CodeIllegalTransition }

// HTTPStatus maps an error to the status a gin handler should answer with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidRequest, CodeIllegalTransition:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetCode returns the error code
func GetCode(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return 0
}

// GetMessage returns the error message
func GetMessage(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Cause returns the underlying error
func Cause(err error) error {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Err != nil {
			err = e.Err
		} else {
			return err
		}
	}
	return err
}

// captureStack captures the current stack trace
func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}
	return strings.TrimSpace(stack)
}

// Format implements fmt.Formatter
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", e.Error())
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
