// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	"ledaudio/internal/transport"
)

// UDPPublisher periodically fetches the newest feature frame, packs it into
// the binary packet format (see packet.go) and sends it over UDP using a
// UDPSender. It runs in a separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender            // The underlying UDP sender instance.
	source   transport.FrameSource // Where frames are read from.
	interval time.Duration         // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.
	lastSeq     uint64 // Handoff sequence of the last frame sent.

	packet []byte // Reusable packet buffer.
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// It requires a valid UDPSender and FrameSource.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source transport.FrameSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: frame source cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond // Default to ~60Hz if invalid
		log.Warnf("publisher: invalid interval provided, defaulting to %s", interval)
	}

	log.Infof("publisher: initializing (interval: %s, packet: %d bytes)", interval, PacketSize)

	return &UDPPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
		packet:   make([]byte, 0, PacketSize),
	}, nil
}

// Start begins the periodic publishing process.
// It launches a goroutine that ticks at the configured interval, calling
// buildAndSendPacket on each tick until Stop is called.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	// Prevent starting if already running
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("publisher: Start called but already running")
		return
	}

	// Initialize resources for this run
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{} // Reset stopOnce for this run

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("publisher: goroutine started (interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				log.Debugf("publisher: goroutine received stop signal")
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It stops the internal ticker and closes the done channel.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	// Check if already stopped or never started
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	// Use sync.Once to ensure stop logic (closing channel, stopping ticker) runs only once
	p.stopOnce.Do(func() {
		close(p.doneChan) // Signal the goroutine to exit
		p.ticker.Stop()   // Stop the ticker
		p.ticker = nil    // Mark as stopped
	})

	p.mu.Unlock() // Unlock before waiting

	p.wg.Wait()
	log.Infof("publisher: stopped after %d packets", p.sequenceNum)
	return nil
}

// buildAndSendPacket is the core function executed on each ticker interval.
// It performs the following steps:
// 1. Fetches the newest frame; skips the tick if nothing new was published.
// 2. Packs the sequence number and the frame into the reusable buffer.
// 3. Sends the resulting packet using the UDPSender.
// It reports whether a packet was sent.
func (p *UDPPublisher) buildAndSendPacket() bool {
	// --- 1. Fetch Data ---
	frame, seq := p.source.Latest()
	if seq == 0 || seq == p.lastSeq {
		return false
	}
	p.lastSeq = seq

	// --- 2. Pack Data ---
	p.sequenceNum++
	p.packet = AppendFrame(p.packet[:0], p.sequenceNum, &frame)

	// --- 3. Send Data ---
	if err := p.sender.Send(p.packet); err != nil {
		// Error logging is handled within sender.Send.
		return false
	}
	log.Debugf("publisher: sent packet %d for hop %d (%d bytes)", p.sequenceNum, frame.HopIndex, len(p.packet))
	return true
}

// Close implements the io.Closer interface. It stops the publisher
// goroutine and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
