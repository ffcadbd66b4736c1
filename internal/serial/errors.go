package serial

import (
	"fmt"
	"time"
)

// TimeoutError means the controller sent nothing at all within the
// configured window.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no response within %s", e.Timeout)
}

func (e *TimeoutError) Kind() string { return "TimeoutError" }

// IncompleteFrameError means the reply header declared more bytes than the
// port delivered before the timeout.
type IncompleteFrameError struct {
	Expected int
	Received int
}

func (e *IncompleteFrameError) Error() string {
	return fmt.Sprintf("expected %d bytes after frame header, received %d", e.Expected, e.Received)
}

func (e *IncompleteFrameError) Kind() string { return "IncompleteFrameError" }

// PortIOError wraps a read or write fault on the underlying device.
type PortIOError struct {
	Op  string
	Err error
}

func (e *PortIOError) Error() string {
	return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
}

func (e *PortIOError) Kind() string { return "SerialPortIOError" }

func (e *PortIOError) Unwrap() error { return e.Err }
