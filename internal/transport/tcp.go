// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	applog "lightshow/internal/log"
)

// TCPTransport writes frames to a persistent TCP connection. The frames
// carry no length prefix, so the receiver splits the stream on headers.
type TCPTransport struct {
	addr         string
	dialTimeout  time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex // Protects conn during Send/Reconnect/Close.
	conn   net.Conn   // nil after a failed write until Reconnect succeeds.
	closed bool
	log    *applog.Logger
}

// DialTCP connects to addr ("host:port").
func DialTCP(ctx context.Context, addr string, dialTimeout, writeTimeout time.Duration) (*TCPTransport, error) {
	t := &TCPTransport{
		addr:         addr,
		dialTimeout:  dialTimeout,
		writeTimeout: writeTimeout,
		log:          applog.New("tcp"),
	}
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	t.log.Infof("Connected to %s", conn.RemoteAddr())
	return t, nil
}

func (t *TCPTransport) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial TCP '%s': %w", t.addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// Frames are tiny and latency matters more than packet count.
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// Send writes one frame. On failure the connection is dropped so that a
// half-written frame never precedes the next one on the same stream.
func (t *TCPTransport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("TCP transport is closed")
	}
	if t.conn == nil {
		return fmt.Errorf("TCP connection to '%s' is down", t.addr)
	}
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			t.dropLocked()
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	if _, err := t.conn.Write(frame); err != nil {
		t.log.Warnf("Write to %s failed, dropping connection: %v", t.addr, err)
		t.dropLocked()
		return fmt.Errorf("failed to write TCP frame: %w", err)
	}
	return nil
}

// Reconnect redials after a failed write. It is a no-op while the
// connection is healthy.
func (t *TCPTransport) Reconnect(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, fmt.Errorf("TCP transport is closed")
	}
	if t.conn != nil {
		return false, nil
	}
	conn, err := t.dial(ctx)
	if err != nil {
		return false, err
	}
	t.conn = conn
	t.log.Infof("Reconnected to %s", conn.RemoteAddr())
	return true, nil
}

func (t *TCPTransport) dropLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

// Close closes the connection. It is idempotent.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	t.log.Infof("Closing connection to %s", t.addr)
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}
	return nil
}

var _ Transport = (*TCPTransport)(nil)
var _ Reconnector = (*TCPTransport)(nil)
