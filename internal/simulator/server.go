// SPDX-License-Identifier: MIT
package simulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "lightshow/internal/log"
	"lightshow/internal/protocol"
)

// WebSocketPath is the endpoint senders connect to.
const WebSocketPath = "/leds"

// Server feeds frames from every listener into one Model.
//
// TCP streams are split into records by the stream decoder. UDP datagrams
// and WebSocket messages each carry one frame. The fixture count a sender
// announces in its headers is used to frame its data; records addressed
// past the model's last fixture are ignored.
type Server struct {
	model *Model
	log   *applog.Logger

	tcp      net.Listener
	udp      net.PacketConn
	ws       net.Listener
	http     *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex // Protects conns and clients
	conns   map[net.Conn]struct{}
	clients map[*websocket.Conn]bool
	closed  bool
	wg      sync.WaitGroup
}

// Listen binds TCP and UDP on addr and the WebSocket endpoint on wsAddr.
func Listen(m *Model, addr, wsAddr string) (*Server, error) {
	s := &Server{
		model:   m,
		log:     applog.New("simulator"),
		conns:   make(map[net.Conn]struct{}),
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  protocol.MaxFrameSize,
			WriteBufferSize: 256,
			CheckOrigin: func(r *http.Request) bool {
				return true // Senders are not browsers.
			},
		},
	}

	var err error
	if s.tcp, err = net.Listen("tcp", addr); err != nil {
		return nil, fmt.Errorf("failed to listen on TCP %s: %w", addr, err)
	}
	// Share the TCP port number when addr asked for any port.
	if s.udp, err = net.ListenPacket("udp", s.tcp.Addr().String()); err != nil {
		s.tcp.Close()
		return nil, fmt.Errorf("failed to listen on UDP %s: %w", addr, err)
	}
	if s.ws, err = net.Listen("tcp", wsAddr); err != nil {
		s.tcp.Close()
		s.udp.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", wsAddr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	s.http = &http.Server{Handler: mux}
	return s, nil
}

// TCPAddr returns the bound TCP address.
func (s *Server) TCPAddr() net.Addr { return s.tcp.Addr() }

// UDPAddr returns the bound UDP address.
func (s *Server) UDPAddr() net.Addr { return s.udp.LocalAddr() }

// WebSocketAddr returns the bound WebSocket address.
func (s *Server) WebSocketAddr() net.Addr { return s.ws.Addr() }

// Serve accepts senders until ctx is done, then closes everything.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Infof("Listening for %d fixtures on tcp/udp %s and ws://%s%s",
		s.model.Len(), s.TCPAddr(), s.WebSocketAddr(), WebSocketPath)

	errc := make(chan error, 3)
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		errc <- s.acceptLoop()
	}()
	go func() {
		defer s.wg.Done()
		errc <- s.datagramLoop()
	}()
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(s.ws); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	s.Close()
	s.wg.Wait()
	return err
}

// Close stops every listener and drops every sender. It is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for c := range s.conns {
		c.Close()
		delete(s.conns, c)
	}
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}
	s.mu.Unlock()

	err := errors.Join(s.tcp.Close(), s.udp.Close(), s.http.Close())
	// The HTTP server only owns the listener once Serve has started.
	if wsErr := s.ws.Close(); wsErr != nil && !errors.Is(wsErr, net.ErrClosed) {
		err = errors.Join(err, wsErr)
	}
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.tcp.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("TCP accept failed: %w", err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleStream(conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
			conn.Close()
		}()
	}
}

func (s *Server) handleStream(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	s.log.Infof("Connection from %s", peer)

	r := bufio.NewReader(conn)
	first, err := r.Peek(1)
	if err != nil {
		s.log.Infof("Connection from %s closed before the first frame", peer)
		return
	}
	num := int(first[0])
	if num != s.model.Len() {
		s.log.Warnf("%s sends %d fixtures, simulating %d", peer, num, s.model.Len())
	}

	dec := protocol.NewStreamDecoder(r, num)
	for {
		u, header, err := dec.Next()
		if header {
			s.model.Frame()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || s.isClosed() {
				s.log.Infof("Connection from %s closed", peer)
			} else {
				s.log.Warnf("Dropping %s: %v", peer, err)
			}
			return
		}
		s.model.ApplyUpdate(u)
	}
}

func (s *Server) datagramLoop() error {
	buf := make([]byte, protocol.MaxFrameSize+1)
	for {
		n, from, err := s.udp.ReadFrom(buf)
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("UDP read failed: %w", err)
		}
		s.handleMessage(buf[:n], from.String())
	}
}

// handleMessage applies one self-contained frame.
func (s *Server) handleMessage(msg []byte, from string) {
	if len(msg) == 0 {
		s.log.Warnf("Empty frame from %s", from)
		return
	}
	d, err := protocol.DecodeMessage(msg, int(msg[0]))
	if err != nil {
		s.log.Warnf("Bad frame from %s: %v", from, err)
		return
	}
	s.model.ApplyFrame(d)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[conn] = true
	s.mu.Unlock()

	peer := conn.RemoteAddr().String()
	s.log.Infof("WebSocket connection from %s", peer)
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
			s.log.Infof("WebSocket connection from %s closed", peer)
			return
		}
		if kind != websocket.BinaryMessage {
			s.log.Warnf("Ignoring non-binary message from %s", peer)
			continue
		}
		s.handleMessage(msg, peer)
	}
}
