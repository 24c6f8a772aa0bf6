package bootpatch

import (
	"errors"
	"fmt"
)

// Code is the error taxonomy surfaced at the library boundary. It never
// carries format-specific detail itself; that lives in the wrapped Err.
type Code int

const (
	CodeOnlyZipSupported Code = iota
	CodeOnlyBootImageSupported
	CodeArchiveReadOpenError
	CodeArchiveReadHeaderError
	CodeArchiveReadDataError
	CodeArchiveWriteOpenError
	CodeArchiveWriteDataError
	CodeBootImageParseError
	CodeBootImageCreateError
	CodeCpioError
	CodeRamdiskTransformError
	CodeFileOpenError
	CodeFileReadError
	CodeFileWriteError
	CodeCancelled
	CodeInternalError
)

func (c Code) String() string {
	switch c {
	case CodeOnlyZipSupported:
		return "OnlyZipSupported"
	case CodeOnlyBootImageSupported:
		return "OnlyBootImageSupported"
	case CodeArchiveReadOpenError:
		return "ArchiveReadOpenError"
	case CodeArchiveReadHeaderError:
		return "ArchiveReadHeaderError"
	case CodeArchiveReadDataError:
		return "ArchiveReadDataError"
	case CodeArchiveWriteOpenError:
		return "ArchiveWriteOpenError"
	case CodeArchiveWriteDataError:
		return "ArchiveWriteDataError"
	case CodeBootImageParseError:
		return "BootImageParseError"
	case CodeBootImageCreateError:
		return "BootImageCreateError"
	case CodeCpioError:
		return "CpioError"
	case CodeRamdiskTransformError:
		return "RamdiskTransformError"
	case CodeFileOpenError:
		return "FileOpenError"
	case CodeFileReadError:
		return "FileReadError"
	case CodeFileWriteError:
		return "FileWriteError"
	case CodeCancelled:
		return "Cancelled"
	case CodeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Error is the discriminated result every fallible core operation
// returns. It wraps an underlying cause without mutating it.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err (which may be nil) under code with an explanatory
// message. Propagates upward unmutated by callers further up the stack.
func NewError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Cancelled reports whether err is (or wraps) the cancellation sentinel.
func Cancelled(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeCancelled
}
