// SPDX-License-Identifier: MIT

// Package udp sends fixture frames as UDP datagrams. One frame is one
// datagram, so the receiver sees exact message boundaries.
package udp

import (
	"fmt"
	"net"
	"sync"

	applog "lightshow/internal/log"
)

// maxDatagram is the largest frame the protocol can produce: a header byte
// plus 255 four-byte records.
const maxDatagram = 1 + 255*4

// Sender handles sending frames over UDP.
type Sender struct {
	conn   *net.UDPConn
	mu     sync.Mutex // Protects conn during Close
	closed bool
	log    *applog.Logger
}

// NewSender creates a new Sender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:7654".
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	// No local bind needed for sending.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	s := &Sender{
		conn: conn,
		log:  applog.New("udp"),
	}
	s.log.Infof("Sending datagrams to %s", conn.RemoteAddr())
	return s, nil
}

// Send transmits the given frame as a single UDP datagram.
func (s *Sender) Send(frame []byte) error {
	if len(frame) > maxDatagram {
		return fmt.Errorf("frame of %d bytes exceeds the %d byte protocol maximum", len(frame), maxDatagram)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("UDP sender is closed")
	}
	// Keep the lock during the write to prevent concurrent Close/Write issues.
	_, err := s.conn.Write(frame)
	s.mu.Unlock()

	if err != nil {
		s.log.Warnf("Error sending datagram: %v", err)
		return fmt.Errorf("failed to send UDP datagram: %w", err)
	}
	return nil
}

// Close closes the underlying UDP connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.conn == nil {
		return nil
	}
	s.log.Infof("Closing connection to %s", s.conn.RemoteAddr())
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
