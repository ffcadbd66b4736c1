// Package client implements the request/response API against the boiler:
// one command byte plus opaque payload out, the reply payload back.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kstaniek/go-froeling-server/internal/frame"
	"github.com/kstaniek/go-froeling-server/internal/logging"
	"github.com/kstaniek/go-froeling-server/internal/metrics"
)

// Transactor runs one raw frame round trip on the serial link.
// *serial.Channel implements it.
type Transactor interface {
	Transact(ctx context.Context, fr []byte) ([]byte, error)
}

// Client encodes commands, drives the serial channel and decodes replies.
// Codec and channel errors propagate untranslated so callers can report
// the precise failure kind.
type Client struct {
	ch          Transactor
	validateCRC bool
	logger      *slog.Logger
}

type Option func(*Client)

// WithChecksumValidation toggles CRC verification of reply frames. Off by
// default: some controllers (S4 Turbo) reproducibly emit a wrong checksum
// on certain replies, e.g. 02fd000330fffe00.
func WithChecksumValidation(on bool) Option {
	return func(c *Client) { c.validateCRC = on }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(ch Transactor, opts ...Option) *Client {
	c := &Client{ch: ch, logger: logging.L()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send transmits one command and returns the reply payload with framing,
// command byte and checksum stripped.
func (c *Client) Send(ctx context.Context, cmd byte, payload []byte) ([]byte, error) {
	fr, err := frame.Encode(cmd, payload)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	raw, err := c.ch.Transact(ctx, fr)
	metrics.ObserveTransact(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	replyCmd, reply, err := frame.Decode(raw, c.validateCRC)
	if err != nil {
		return nil, err
	}
	if replyCmd != cmd {
		return nil, &WrongCommandInResponseError{Expected: cmd, Actual: replyCmd}
	}
	c.logger.Debug("command_ok", "cmd", fmt.Sprintf("0x%02X", cmd), "reply_len", len(reply))
	return reply, nil
}
