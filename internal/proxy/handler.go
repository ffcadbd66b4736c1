package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/go-froeling-server/internal/metrics"
)

// startHandler launches the per-connection read-process-write loop.
// Each line is one command; every protocol error maps to an error line,
// never to the loop terminating. Only a connection-level I/O fault ends
// the handler, and only for its own connection.
func (s *Server) startHandler(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			s.removeConn(conn)
			logger.Info("client_disconnected")
		}()
		reader := bufio.NewReader(conn)
		var pending bytes.Buffer
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			chunk, err := reader.ReadBytes('\n')
			pending.Write(chunk)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
					metrics.IncError(mapErrToMetric(wrap))
					logger.Warn("conn_read_error", "error", err)
				}
				return
			}
			line := string(bytes.Trim(pending.Bytes(), "\r\n"))
			pending.Reset()
			if line == "" {
				continue
			}
			if err := s.handleLine(ctx, conn, line, logger); err != nil {
				wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
				metrics.IncError(mapErrToMetric(wrap))
				logger.Warn("conn_write_error", "error", err)
				return
			}
		}
	}()
}

// handleLine processes one hex command line and writes exactly one response
// line. The returned error is non-nil only for write faults on the
// connection itself.
func (s *Server) handleLine(ctx context.Context, conn net.Conn, line string, logger *slog.Logger) error {
	metrics.IncTCPRx()
	req, err := hex.DecodeString(line)
	if err != nil {
		return s.writeErrorLine(conn, &HexDecodeError{Err: err}, logger)
	}
	if len(req) == 0 {
		return nil
	}
	reply, err := s.sender.Send(ctx, req[0], req[1:])
	if err != nil {
		return s.writeErrorLine(conn, err, logger)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", hex.EncodeToString(reply)); err != nil {
		return err
	}
	metrics.IncTCPTx()
	return nil
}

// writeErrorLine reports a recoverable command failure to the client as
// "!<Kind>: <detail>" and keeps the connection open.
func (s *Server) writeErrorLine(conn net.Conn, cmdErr error, logger *slog.Logger) error {
	kind := errorKind(cmdErr)
	metrics.IncCommandError(kind)
	logger.Debug("command_error", "kind", kind, "error", cmdErr)
	if _, err := fmt.Fprintf(conn, "!%s: %s\n", kind, cmdErr.Error()); err != nil {
		return err
	}
	metrics.IncTCPTx()
	return nil
}
