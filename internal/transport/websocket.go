// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	applog "lightshow/internal/log"

	"github.com/gorilla/websocket"
)

// WebSocketTransport sends each frame as one binary WebSocket message, for
// controllers that sit behind an HTTP endpoint. Message boundaries are
// preserved, so the receiver can infer the record count from the length.
type WebSocketTransport struct {
	url          string
	dialer       websocket.Dialer
	writeTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	log    *applog.Logger
}

// DialWebSocket connects to url ("ws://host:port/path").
func DialWebSocket(ctx context.Context, url string, dialTimeout, writeTimeout time.Duration) (*WebSocketTransport, error) {
	t := &WebSocketTransport{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: dialTimeout,
			ReadBufferSize:   256,
			WriteBufferSize:  1024,
		},
		writeTimeout: writeTimeout,
		log:          applog.New("websocket"),
	}
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.conn = conn
	t.log.Infof("Connected to %s", url)
	return t, nil
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial WebSocket '%s': %w", t.url, err)
	}
	// The controller never sends data frames, but control frames (ping,
	// close) are only processed while someone reads.
	go t.drain(conn)
	return conn, nil
}

func (t *WebSocketTransport) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			t.log.Debugf("Reader for %s stopped: %v", t.url, err)
			return
		}
	}
}

// Send writes one frame as a binary message.
func (t *WebSocketTransport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("WebSocket transport is closed")
	}
	if t.conn == nil {
		return fmt.Errorf("WebSocket connection to '%s' is down", t.url)
	}
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.log.Warnf("Write to %s failed, dropping connection: %v", t.url, err)
		_ = t.conn.Close()
		t.conn = nil
		return fmt.Errorf("failed to write WebSocket frame: %w", err)
	}
	return nil
}

// Reconnect redials after a failed write.
func (t *WebSocketTransport) Reconnect(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, fmt.Errorf("WebSocket transport is closed")
	}
	if t.conn != nil {
		return false, nil
	}
	conn, err := t.dial(ctx)
	if err != nil {
		return false, err
	}
	t.conn = conn
	t.log.Infof("Reconnected to %s", t.url)
	return true, nil
}

// Close sends a close message and shuts the connection down.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	t.log.Infof("Closing connection to %s", t.url)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "show ended")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := t.conn.Close()
	t.conn = nil
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
var _ Reconnector = (*WebSocketTransport)(nil)
