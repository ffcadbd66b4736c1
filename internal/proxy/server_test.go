package proxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/kstaniek/go-froeling-server/internal/frame"
	"github.com/kstaniek/go-froeling-server/internal/serial"
)

type senderFunc func(ctx context.Context, cmd byte, payload []byte) ([]byte, error)

func (f senderFunc) Send(ctx context.Context, cmd byte, payload []byte) ([]byte, error) {
	return f(ctx, cmd, payload)
}

// boilerStub answers the two well-known queries the way an S4 Turbo does.
func boilerStub(_ context.Context, cmd byte, payload []byte) ([]byte, error) {
	switch cmd {
	case 0x51:
		return append([]byte{0x00, 0x05}, []byte("Winterbetrieb;Feuer Aus")...), nil
	case 0x30:
		if string(payload) == string([]byte{0x00, 0x04}) {
			return []byte{0x00, 0x0b}, nil
		}
	}
	return nil, fmt.Errorf("unexpected command %02X", cmd)
}

func startTestServer(t *testing.T, snd Sender) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(
		WithSender(snd),
		WithReadDeadline(2*time.Second),
	)
	srv.SetListenAddr("127.0.0.1:0")
	go func() {
		if err := srv.Serve(ctx); err != nil {
			t.Logf("Serve returned: %v", err)
		}
	}()
	select {
	case <-srv.Ready():
	case <-time.After(time.Second):
		t.Fatalf("server did not signal readiness")
	}
	t.Cleanup(func() {
		cancel()
		shCtx, shCancel := context.WithTimeout(context.Background(), time.Second)
		defer shCancel()
		_ = srv.Shutdown(shCtx)
	})
	return srv.Addr()
}

func dialTest(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	d := net.Dialer{Timeout: time.Second}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, bufio.NewReader(conn)
}

func exchange(t *testing.T, conn net.Conn, r *bufio.Reader, line string) string {
	t.Helper()
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply to %q: %v", line, err)
	}
	return strings.TrimRight(reply, "\n")
}

func TestEndToEndState(t *testing.T) {
	addr := startTestServer(t, senderFunc(boilerStub))
	conn, r := dialTest(t, addr)
	got := exchange(t, conn, r, "51")
	if want := "000557696e746572626574726965623b466575657220417573"; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
}

func TestEndToEndValue(t *testing.T) {
	addr := startTestServer(t, senderFunc(boilerStub))
	conn, r := dialTest(t, addr)
	if got := exchange(t, conn, r, "300004"); got != "000b" {
		t.Fatalf("reply = %q, want %q", got, "000b")
	}
}

func TestUppercaseHexAccepted(t *testing.T) {
	addr := startTestServer(t, senderFunc(func(_ context.Context, cmd byte, payload []byte) ([]byte, error) {
		if cmd != 0xab || len(payload) != 1 || payload[0] != 0xcd {
			return nil, fmt.Errorf("unexpected request %02X % X", cmd, payload)
		}
		return []byte{0xde, 0xad}, nil
	}))
	conn, r := dialTest(t, addr)
	if got := exchange(t, conn, r, "ABCD"); got != "dead" {
		t.Fatalf("reply = %q, want %q", got, "dead")
	}
}

func TestCRLFAndBlankLines(t *testing.T) {
	addr := startTestServer(t, senderFunc(boilerStub))
	conn, r := dialTest(t, addr)
	// Blank line draws no response; the following command still works.
	if _, err := fmt.Fprint(conn, "\r\n51\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(reply, "0005") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestWrongHeaderErrorLine(t *testing.T) {
	addr := startTestServer(t, senderFunc(func(context.Context, byte, []byte) ([]byte, error) {
		return nil, &frame.WrongResponseHeaderError{Received: []byte{0x02, 0xfd, 0x00}}
	}))
	conn, r := dialTest(t, addr)
	got := exchange(t, conn, r, "51")
	if want := "!WrongResponseHeaderError: Received: 02fd00"; got != want {
		t.Fatalf("error line = %q, want %q", got, want)
	}
	// The connection stays usable.
	if got := exchange(t, conn, r, "51"); !strings.HasPrefix(got, "!WrongResponseHeaderError:") {
		t.Fatalf("second error line = %q", got)
	}
}

func TestTimeoutErrorLine(t *testing.T) {
	addr := startTestServer(t, senderFunc(func(context.Context, byte, []byte) ([]byte, error) {
		return nil, &serial.TimeoutError{Timeout: time.Second}
	}))
	conn, r := dialTest(t, addr)
	if got := exchange(t, conn, r, "51"); got != "!TimeoutError: no response within 1s" {
		t.Fatalf("error line = %q", got)
	}
}

func TestHexErrorIsolation(t *testing.T) {
	addr := startTestServer(t, senderFunc(boilerStub))
	conn1, r1 := dialTest(t, addr)
	conn2, r2 := dialTest(t, addr)

	got := exchange(t, conn1, r1, "xyz")
	if !strings.HasPrefix(got, "!HexDecodeError: ") {
		t.Fatalf("error line = %q", got)
	}
	// Odd-length input is a hex error as well.
	if got := exchange(t, conn1, r1, "300"); !strings.HasPrefix(got, "!HexDecodeError: ") {
		t.Fatalf("odd-length line = %q", got)
	}
	// The offending connection recovers...
	if got := exchange(t, conn1, r1, "300004"); got != "000b" {
		t.Fatalf("recovery reply = %q", got)
	}
	// ...and the other connection never noticed.
	if got := exchange(t, conn2, r2, "51"); !strings.HasPrefix(got, "0005") {
		t.Fatalf("bystander reply = %q", got)
	}
}

func TestMaxClientsRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := NewServer(
		WithSender(senderFunc(boilerStub)),
		WithMaxClients(1),
		WithReadDeadline(2*time.Second),
	)
	srv.SetListenAddr("127.0.0.1:0")
	go func() { _ = srv.Serve(ctx) }()
	select {
	case <-srv.Ready():
	case <-time.After(time.Second):
		t.Fatalf("server did not signal readiness")
	}
	conn1, r1 := dialTest(t, srv.Addr())
	if got := exchange(t, conn1, r1, "51"); !strings.HasPrefix(got, "0005") {
		t.Fatalf("first client reply = %q", got)
	}
	conn2, r2 := dialTest(t, srv.Addr())
	_, _ = fmt.Fprint(conn2, "51\n")
	_ = conn2.SetReadDeadline(time.Now().Add(time.Second))
	if line, err := r2.ReadString('\n'); err == nil {
		t.Fatalf("expected second connection to be closed, got %q", line)
	}
}
