// SPDX-License-Identifier: MIT

// Package transport carries encoded fixture frames to the LED controller.
// The pipeline treats a transport as an opaque, ordered byte sink: one Send
// per frame, Close at the end of the session.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrConnectFailure marks a failure to reach the controller at session
	// start. It is fatal: there is no degraded mode.
	ErrConnectFailure = errors.New("transport connect failure")

	// ErrWriteFailure marks a failed frame write. It is recoverable: the
	// session keeps its last confirmed state and retries the delta on the
	// next tick.
	ErrWriteFailure = errors.New("transport write failure")
)

// Transport defines a generic interface for sending encoded frames.
type Transport interface {
	// Send writes one complete frame. It may block up to the transport's
	// write timeout.
	Send(frame []byte) error
	Close() error
}

// Reconnector is implemented by connection-oriented transports that drop
// their connection after a failed write. Reconnect is called at the start of
// a tick; fresh reports that a new connection was opened, in which case the
// peer may have lost its state and the caller must send a full frame.
type Reconnector interface {
	Reconnect(ctx context.Context) (fresh bool, err error)
}
