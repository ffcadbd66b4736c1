package serial

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/kstaniek/go-froeling-server/internal/frame"
	"github.com/kstaniek/go-froeling-server/internal/metrics"
)

// readPollInterval bounds the spin rate when the port keeps returning zero
// bytes before its read timeout (tarm/serial does this on some platforms).
const readPollInterval = time.Millisecond

// Channel owns the serial port and runs strictly sequential request/response
// round trips on it. The boiler link is half-duplex with no request
// identifiers, so a reply can only be paired with the immediately preceding
// request; a mutex keeps at most one transaction on the wire system-wide.
type Channel struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
}

// NewChannel wraps an open port. timeout bounds each read phase of a
// transaction (header, then body).
func NewChannel(p Port, timeout time.Duration) *Channel {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Channel{port: p, timeout: timeout}
}

// Transact writes one request frame and reads exactly one reply frame.
// The returned bytes are the raw reply including framing; decoding and
// validation is the caller's business. Concurrent callers are serialized;
// a waiter's bytes never touch the wire before the previous reply (or its
// timeout) completes.
//
// A reply whose header does not carry the block-start marker is returned
// as-is so the codec can report the offending bytes.
func (c *Channel) Transact(ctx context.Context, fr []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Drop stale bytes from an earlier timed-out exchange.
	_ = c.port.Flush()

	if _, err := c.port.Write(fr); err != nil {
		metrics.IncError(metrics.ErrSerialWrite)
		return nil, &PortIOError{Op: "write", Err: err}
	}
	metrics.IncSerialTx()

	header, err := c.readUpTo(ctx, frame.HeaderSize)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		metrics.IncError(metrics.ErrSerialTimeout)
		return nil, &TimeoutError{Timeout: c.timeout}
	}
	bodyLen, err := frame.BodyLen(header)
	if err != nil {
		// Short or mismatched header: hand the bytes back for diagnosis.
		return header, nil
	}

	body, err := c.readUpTo(ctx, bodyLen)
	if err != nil {
		return nil, err
	}
	if len(body) < bodyLen {
		metrics.IncError(metrics.ErrSerialRead)
		return nil, &IncompleteFrameError{Expected: bodyLen, Received: len(body)}
	}
	metrics.IncSerialRx()
	return append(header, body...), nil
}

// readUpTo reads until n bytes arrived or the channel timeout elapsed.
// It returns what it collected; the caller decides whether short is fatal.
func (c *Channel) readUpTo(ctx context.Context, n int) ([]byte, error) {
	collected := make([]byte, 0, n)
	buf := make([]byte, n)
	deadline := time.Now().Add(c.timeout)
	for len(collected) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := c.port.Read(buf[:n-len(collected)])
		if got > 0 {
			collected = append(collected, buf[:got]...)
			continue
		}
		if err != nil && err != io.EOF {
			metrics.IncError(metrics.ErrSerialRead)
			return nil, &PortIOError{Op: "read", Err: err}
		}
		// Zero bytes: port read timeout tick (or EOF-on-timeout quirk).
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(readPollInterval)
	}
	return collected, nil
}
