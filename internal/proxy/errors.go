package proxy

import (
	"errors"

	"github.com/kstaniek/go-froeling-server/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrConnRead  = errors.New("conn_read")
	ErrConnWrite = errors.New("conn_write")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrConnRead):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrTCPWrite
	case errors.Is(err, ErrAccept), errors.Is(err, ErrListen):
		return metrics.ErrTCPRead
	default:
		return "other"
	}
}

// kinder is implemented by all protocol error types (frame, serial, client
// and this package); Kind names the error on the wire.
type kinder interface {
	error
	Kind() string
}

// errorKind resolves the wire-facing kind name of a command error.
func errorKind(err error) string {
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "Error"
}

// HexDecodeError reports a command line that is not valid hexadecimal
// (odd length or invalid characters). Line-protocol only; the serial side
// never sees the request.
type HexDecodeError struct {
	Err error
}

func (e *HexDecodeError) Error() string { return e.Err.Error() }

func (e *HexDecodeError) Kind() string { return "HexDecodeError" }

func (e *HexDecodeError) Unwrap() error { return e.Err }
