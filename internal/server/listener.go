package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
)

// Listener accepts TCP connections on one configured address and
// spawns a session per admitted peer.
type Listener struct {
	srv *Server
	ln  *net.TCPListener
}

// Bind opens a TCP listener on addr.
func Bind(srv *Server, addr netip.AddrPort) (*Listener, error) {
	ln, err := net.Listen("tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	slog.Info("listening", "addr", ln.Addr())
	return &Listener{srv: srv, ln: ln.(*net.TCPListener)}, nil
}

// Addr returns the bound address, useful when the configured port
// was zero.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Run accepts connections until ctx is canceled. Accept errors other
// than the listener closing are logged and the loop continues.
func (l *Listener) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()
	for {
		conn, err := l.ln.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			slog.Warn("accept failed", "addr", l.ln.Addr(), "error", err)
			continue
		}
		l.handle(conn)
	}
}

// handle admits or rejects one accepted connection. Rejected peers
// are reset before any session state exists for them.
func (l *Listener) handle(conn *net.TCPConn) {
	peer := conn.RemoteAddr().String()
	ap, err := netip.ParseAddrPort(peer)
	if err != nil || !l.srv.Config.IPAllowed(ap.Addr()) {
		slog.Warn("connection refused by address policy", "peer", peer)
		_ = conn.SetLinger(0)
		_ = conn.Close()
		return
	}
	sess := NewSession(l.srv, NewTCPConn(conn))
	l.srv.Clients.Add(sess)
	l.srv.updateClientGauge()
	go sess.Run()
}
