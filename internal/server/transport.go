package server

import (
	"io"
	"net"
)

// Conn is the byte-stream surface a session owns: reliable, ordered,
// with half-close and abrupt reset. *net.TCPConn is the canonical
// realization.
type Conn interface {
	io.Reader
	io.Writer
	// CloseWrite half-closes the write direction; the peer observes
	// an orderly end of stream.
	CloseWrite() error
	// Reset aborts the transport; the peer observes a hard error
	// rather than an orderly close.
	Reset() error
	Close() error
	RemoteAddr() net.Addr
}

type tcpConn struct {
	*net.TCPConn
}

// NewTCPConn adapts a TCP connection to the Conn surface.
func NewTCPConn(c *net.TCPConn) Conn {
	return tcpConn{TCPConn: c}
}

// Reset closes with linger zero so the peer sees RST, not FIN.
func (c tcpConn) Reset() error {
	_ = c.SetLinger(0)
	return c.TCPConn.Close()
}
