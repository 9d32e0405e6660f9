// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"time"

	applog "pulse/internal/log"
	"pulse/internal/transport"
)

var logger = applog.Named("UDPPublisher")

// Sender transmits one datagram. *UDPSender is the production implementation.
type Sender interface {
	Send(data []byte) error
}

// UDPPublisher periodically fetches the latest magnitude spectrum, packs it
// into the binary packet format and sends it with a Sender. It runs in a
// separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   Sender
	provider transport.SpectrumProvider
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Reused on every tick.
	magBuffer []float64
	f32Buffer []float32
	packet    []byte
}

// NewUDPPublisher creates a publisher for provider. If interval is not
// positive it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender Sender, provider transport.SpectrumProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum provider cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		logger.Warnf("Invalid interval provided, defaulting to %s", interval)
	}

	bins := provider.GetFFTSize()/2 + 1
	if bins > MaxMagnitudes {
		return nil, fmt.Errorf("UDPPublisher: %d bins do not fit in one packet", bins)
	}
	logger.Infof("Initializing (Interval: %s, Bins: %d)", interval, bins)

	return &UDPPublisher{
		sender:    sender,
		provider:  provider,
		interval:  interval,
		now:       time.Now,
		magBuffer: make([]float64, bins),
		f32Buffer: make([]float32, bins),
		packet:    make([]byte, 0, HeaderSize+4*bins),
	}, nil
}

// Start launches the publishing goroutine. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Debugf("Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				if err := p.Publish(); err != nil {
					logger.Debugf("%v", err)
				}
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it. It is
// safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("Publisher stopped after %d packets.", p.sequenceNum)
	return nil
}

// Publish builds and sends one packet from the provider's current spectrum.
// The ticker goroutine calls it; it is exported for one-shot use.
func (p *UDPPublisher) Publish() error {
	if err := p.provider.GetMagnitudesInto(p.magBuffer); err != nil {
		return fmt.Errorf("failed to get magnitudes: %w", err)
	}
	for i, v := range p.magBuffer {
		p.f32Buffer[i] = float32(v)
	}

	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], p.sequenceNum, p.now().UnixNano(), p.f32Buffer)

	if err := p.sender.Send(p.packet); err != nil {
		return fmt.Errorf("failed to send packet %d: %w", p.sequenceNum, err)
	}
	logger.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, len(p.packet))
	return nil
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
