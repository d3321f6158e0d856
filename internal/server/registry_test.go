package server

import (
	"errors"
	"io"
	"net"
	"testing"
)

// fakeAddr satisfies net.Addr with a fixed string.
type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

// fakeConn is a Conn whose reads block until Close and whose writes
// are discarded. Enough for registry bookkeeping tests.
type fakeConn struct {
	addr   string
	closed chan struct{}
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr, closed: make(chan struct{})}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}
func (c *fakeConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *fakeConn) CloseWrite() error           { return nil }
func (c *fakeConn) Reset() error                { return c.Close() }
func (c *fakeConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}
func (c *fakeConn) RemoteAddr() net.Addr { return fakeAddr(c.addr) }

func testServer(t *testing.T) *Server {
	t.Helper()
	return newTestServer(t, "")
}

func TestRegistryAddRemove(t *testing.T) {
	srv := testServer(t)
	s := NewSession(srv, newFakeConn("10.0.0.1:1000"))
	srv.Clients.Add(s)
	if srv.Clients.Len() != 1 {
		t.Fatalf("len: got %d, want 1", srv.Clients.Len())
	}

	got, err := srv.Clients.Remove("10.0.0.1:1000")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got != s {
		t.Error("Remove returned a different session")
	}
	if _, err := srv.Clients.Remove("10.0.0.1:1000"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("second remove: got %v, want ErrNotConnected", err)
	}
}

func TestRegistryDuplicateAddPanics(t *testing.T) {
	srv := testServer(t)
	srv.Clients.Add(NewSession(srv, newFakeConn("10.0.0.1:1000")))
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate Add")
		}
	}()
	srv.Clients.Add(NewSession(srv, newFakeConn("10.0.0.1:1000")))
}

func TestRegistryNickname(t *testing.T) {
	srv := testServer(t)
	s := NewSession(srv, newFakeConn("10.0.0.1:1000"))
	srv.Clients.Add(s)

	nick, err := srv.Clients.Nickname("10.0.0.1:1000")
	if err != nil {
		t.Fatalf("Nickname: %v", err)
	}
	if nick != "" {
		t.Errorf("unauthenticated session: got %q, want empty", nick)
	}
	if _, err := srv.Clients.Nickname("10.0.0.9:9"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestRegistrySnapshot(t *testing.T) {
	srv := testServer(t)
	srv.Clients.Add(NewSession(srv, newFakeConn("10.0.0.1:1000")))
	srv.Clients.Add(NewSession(srv, newFakeConn("10.0.0.2:1000")))

	snap := srv.Clients.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot: got %d entries, want 2", len(snap))
	}
	seen := map[string]bool{}
	for _, info := range snap {
		seen[info.Addr] = true
	}
	if !seen["10.0.0.1:1000"] || !seen["10.0.0.2:1000"] {
		t.Errorf("snapshot addrs: %v", snap)
	}
}
