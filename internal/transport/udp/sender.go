// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"patchbay/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp sender is closed")

// Sender writes datagrams to one target address.
type Sender struct {
	mu     sync.Mutex // Protects conn during Close.
	conn   *net.UDPConn
	closed bool
}

// NewSender resolves targetAddress ("host:port") and dials it. No local port
// is bound explicitly.
func NewSender(targetAddress string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}
	log.Infof("udp: sending to %s", conn.RemoteAddr())
	return &Sender{conn: conn}, nil
}

// Send transmits data as one datagram. It is safe for concurrent use.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the connection. It is idempotent.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	log.Debugf("udp: closing connection to %s", s.conn.RemoteAddr())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
