package frame

import (
	"encoding/hex"
	"fmt"
)

// Protocol errors are typed so callers can match them with errors.As and
// the proxy can report the kind name on its error lines. Kind returns the
// stable wire-facing name; Error carries only the detail.

// WrongResponseHeaderError reports a reply that did not start with the
// block-start marker, or was too short to contain a frame header at all.
// Received holds the offending bytes for diagnostics.
type WrongResponseHeaderError struct {
	Received []byte
}

func (e *WrongResponseHeaderError) Error() string {
	return "Received: " + hex.EncodeToString(e.Received)
}

func (e *WrongResponseHeaderError) Kind() string { return "WrongResponseHeaderError" }

// FrameLengthError reports a mismatch between the declared cmd+payload
// length and the bytes the frame actually carries.
type FrameLengthError struct {
	Declared int
	Actual   int
}

func (e *FrameLengthError) Error() string {
	return fmt.Sprintf("length field declares %d message bytes, frame carries %d", e.Declared, e.Actual)
}

func (e *FrameLengthError) Kind() string { return "FrameLengthError" }

// ChecksumError reports a trailing checksum byte that does not match the
// value computed over the frame.
type ChecksumError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("expected CRC value %02X, received %02X", e.Expected, e.Actual)
}

func (e *ChecksumError) Kind() string { return "ChecksumError" }

// PayloadTooLargeError reports a payload the 16-bit length field cannot
// represent.
type PayloadTooLargeError struct {
	Size int
	Max  int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds maximum of %d", e.Size, e.Max)
}

func (e *PayloadTooLargeError) Kind() string { return "PayloadTooLargeError" }
