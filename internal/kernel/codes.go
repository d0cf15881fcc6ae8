package kernel

import "fmt"

// Code identifies a kernel failure. Values are stable and negative,
// matching the return-value convention of the original API (0 = success,
// negative = specific failure).
type Code int

const (
	// CodeWouldBlock is returned by non-blocking operations on a full or
	// empty queue. Recoverable: the caller may retry or back off.
	CodeWouldBlock Code = -1
	// CodeTimeout means a timeout-wait elapsed before the operation
	// completed.
	CodeTimeout Code = -2
	// CodeBadThread means the thread handle is invalid or stale.
	CodeBadThread Code = -3
	// CodeThreadNotStopped means a destroy was attempted on a thread that
	// is not in the stopped state.
	CodeThreadNotStopped Code = -4
	// CodeHostContext means a blocking operation was attempted from a
	// goroutine that is not a registered thread.
	CodeHostContext Code = -5
	// CodeTableFull means the fixed thread table has no free slot.
	CodeTableFull Code = -6
	// CodeBadEvent means the event identifier is out of range.
	CodeBadEvent Code = -7
	// CodeBadArgument means a required argument was missing or malformed.
	CodeBadArgument Code = -8
	// CodeShutdown means the kernel is shutting down.
	CodeShutdown Code = -9
)

// String returns a short description of the code.
func (c Code) String() string {
	switch c {
	case CodeWouldBlock:
		return "would block"
	case CodeTimeout:
		return "timed out"
	case CodeBadThread:
		return "bad thread handle"
	case CodeThreadNotStopped:
		return "thread not stopped"
	case CodeHostContext:
		return "blocking call from host context"
	case CodeTableFull:
		return "thread table full"
	case CodeBadEvent:
		return "bad event id"
	case CodeBadArgument:
		return "bad argument"
	case CodeShutdown:
		return "kernel shut down"
	default:
		return "unknown"
	}
}

// Error is a kernel failure with a stable code.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("kernel: %s (code %d)", e.Code, int(e.Code))
	}
	return fmt.Sprintf("kernel: %s: %s (code %d)", e.Code, e.Message, int(e.Code))
}

// Is reports whether target carries the same code, so sentinel values
// below work with errors.Is regardless of the attached message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinel errors for errors.Is comparisons.
var (
	ErrWouldBlock       = &Error{Code: CodeWouldBlock}
	ErrTimeout          = &Error{Code: CodeTimeout}
	ErrBadThread        = &Error{Code: CodeBadThread}
	ErrNotStopped       = &Error{Code: CodeThreadNotStopped}
	ErrHostContext      = &Error{Code: CodeHostContext}
	ErrTableFull        = &Error{Code: CodeTableFull}
	ErrBadEvent         = &Error{Code: CodeBadEvent}
	ErrBadArgument      = &Error{Code: CodeBadArgument}
	ErrShutdown         = &Error{Code: CodeShutdown}
)

func codeErr(c Code, format string, args ...any) *Error {
	return &Error{Code: c, Message: fmt.Sprintf(format, args...)}
}
