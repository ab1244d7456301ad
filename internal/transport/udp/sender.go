package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "ledaudio/internal/log"
)

var log = applog.Named("udp")

// MaxDatagram is the largest payload sent in one packet. It keeps frames
// below a 1500-byte Ethernet MTU so embedded receivers never see fragments.
const MaxDatagram = 1472

// warnEvery limits how often repeated send failures are logged.
const warnEvery = 500

var (
	// ErrSenderClosed is returned by Send after Close.
	ErrSenderClosed = errors.New("udp: sender closed")
	// ErrTooLarge is returned for a payload above MaxDatagram.
	ErrTooLarge = errors.New("udp: packet exceeds datagram limit")
)

// UDPSender writes frame packets to one receiver, usually an LED controller
// on the local network.
type UDPSender struct {
	conn       *net.UDPConn
	targetAddr *net.UDPAddr
	mu         sync.Mutex // Protects conn during Close
	closed     bool

	packets  atomic.Uint64
	bytes    atomic.Uint64
	failures atomic.Uint64
}

// NewUDPSender resolves targetAddress ("host:port") and opens a connected
// socket to it.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	log.Infof("sender: sending frames to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, targetAddr: udpAddr}, nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr { return s.targetAddr }

// Send writes data as one datagram.
func (s *UDPSender) Send(data []byte) error {
	if len(data) > MaxDatagram {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSenderClosed
	}
	_, err := s.conn.Write(data)
	s.mu.Unlock()

	if err != nil {
		// A receiver that is not listening yet shows up as ECONNREFUSED.
		if n := s.failures.Add(1); n%warnEvery == 1 {
			log.Warnf("sender: %d failed sends to %s, last: %v", n, s.targetAddr, err)
		}
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(len(data)))
	return nil
}

// Packets returns the number of datagrams sent.
func (s *UDPSender) Packets() uint64 { return s.packets.Load() }

// Bytes returns the number of payload bytes sent.
func (s *UDPSender) Bytes() uint64 { return s.bytes.Load() }

// Failures returns the number of failed writes.
func (s *UDPSender) Failures() uint64 { return s.failures.Load() }

// Close closes the socket. Further calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	log.Infof("sender: closing %s after %d packets (%d bytes, %d failures)",
		s.targetAddr, s.packets.Load(), s.bytes.Load(), s.failures.Load())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
