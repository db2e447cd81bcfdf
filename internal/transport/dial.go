// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"lightshow/internal/transport/udp"
)

// Kinds of transport understood by Dial.
const (
	KindTCP       = "tcp"
	KindUDP       = "udp"
	KindWebSocket = "ws"
	KindLog       = "log"
)

// Options describe the controller endpoint.
type Options struct {
	Kind         string
	Host         string
	Port         int
	Path         string // WebSocket request path.
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns "host:port".
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// URL returns the WebSocket URL for the endpoint.
func (o Options) URL() string {
	path := o.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "ws://" + o.Addr() + path
}

// Dial opens the transport described by opts. Every failure is wrapped in
// ErrConnectFailure.
func Dial(ctx context.Context, opts Options) (Transport, error) {
	var (
		t   Transport
		err error
	)
	switch strings.ToLower(opts.Kind) {
	case KindTCP, "":
		t, err = DialTCP(ctx, opts.Addr(), opts.DialTimeout, opts.WriteTimeout)
	case KindUDP:
		t, err = udp.NewSender(opts.Addr())
	case KindWebSocket, "websocket":
		t, err = DialWebSocket(ctx, opts.URL(), opts.DialTimeout, opts.WriteTimeout)
	case KindLog:
		t = NewLoggingTransport()
	default:
		return nil, fmt.Errorf("%w: unknown transport kind '%s'", ErrConnectFailure, opts.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailure, err)
	}
	return t, nil
}

var _ Transport = (*udp.Sender)(nil)
