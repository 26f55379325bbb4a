package jpegcoef

import (
	"errors"
	"fmt"
)

// ErrorCode represents categorized codec error codes
type ErrorCode int

const (
	CodeAssertionFailure     ErrorCode = 1
	CodeShortRead            ErrorCode = 3
	CodeStreamInconsistent   ErrorCode = 7
	CodeSamplingUnsupported  ErrorCode = 10
	CodeOsError              ErrorCode = 33
	CodeUnsupportedJpeg      ErrorCode = 42
	CodeInvalidResetCode     ErrorCode = 44
	CodeArithmeticCoding     ErrorCode = 46
	CodeDCTScaling           ErrorCode = 47
	CodeInvalidScanScript    ErrorCode = 48
	CodeSyntaxError          ErrorCode = 1006
	CodeFileNotFound         ErrorCode = 1007
	CodeVerificationMismatch ErrorCode = 1005
)

func (c ErrorCode) String() string {
	switch c {
	case CodeAssertionFailure:
		return "AssertionFailure"
	case CodeShortRead:
		return "ShortRead"
	case CodeStreamInconsistent:
		return "StreamInconsistent"
	case CodeSamplingUnsupported:
		return "SamplingUnsupported"
	case CodeOsError:
		return "OsError"
	case CodeUnsupportedJpeg:
		return "UnsupportedJpeg"
	case CodeInvalidResetCode:
		return "InvalidResetCode"
	case CodeArithmeticCoding:
		return "ArithmeticCoding"
	case CodeDCTScaling:
		return "DCTScaling"
	case CodeInvalidScanScript:
		return "InvalidScanScript"
	case CodeSyntaxError:
		return "SyntaxError"
	case CodeFileNotFound:
		return "FileNotFound"
	case CodeVerificationMismatch:
		return "VerificationMismatch"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Unsupported reports whether the code describes a well-formed JPEG that
// uses a feature the codec does not handle.
func (c ErrorCode) Unsupported() bool {
	switch c {
	case CodeSamplingUnsupported, CodeUnsupportedJpeg, CodeArithmeticCoding, CodeDCTScaling:
		return true
	}
	return false
}

// Error is a data or I/O error from decoding or encoding
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func errorf(code ErrorCode, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, message string, err error) error {
	return &Error{Code: code, Message: message, Err: err}
}

// AsError checks if an error is a codec Error and returns it
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUnsupported reports whether err was caused by an unsupported JPEG feature.
func IsUnsupported(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Unsupported()
}

// FatalError is the panic value used when a caller breaks the codec's
// contract, such as addressing rows outside a store or touching a released
// store. It is never returned as an ordinary error.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return "jpegcoef: fatal: " + e.Message
}

func fatalf(format string, args ...any) {
	panic(&FatalError{Message: fmt.Sprintf(format, args...)})
}

// ErrShortRead is returned when the stream ends inside the header segments.
var ErrShortRead = &Error{Code: CodeShortRead, Message: "short read"}
