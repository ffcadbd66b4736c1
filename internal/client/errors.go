package client

import "fmt"

// WrongCommandInResponseError reports a structurally valid reply whose
// command byte does not echo the request. With the half-duplex pairing
// guarantee this indicates a desynchronized controller.
type WrongCommandInResponseError struct {
	Expected byte
	Actual   byte
}

func (e *WrongCommandInResponseError) Error() string {
	return fmt.Sprintf("expected command %02X, received %02X", e.Expected, e.Actual)
}

func (e *WrongCommandInResponseError) Kind() string { return "WrongCommandInResponseError" }
