// SPDX-License-Identifier: MIT
package analysis

import (
	applog "pulse/internal/log"
	"pulse/internal/transport"
)

var logger = applog.Named("Analysis")

// BlockProcessor is the standard interface for components that consume
// blocks of filtered samples. The engine calls Process from its consumer
// goroutine, so implementations should avoid blocking.
type BlockProcessor interface {
	Process(block []float64)
}

// ClosableProcessor combines BlockProcessor with a Close method for resource
// cleanup.
type ClosableProcessor interface {
	BlockProcessor
	Close() error
}

// FFTResultProvider exposes the latest magnitude spectrum. Consumers such as
// BandEnergyProcessor and the UDP publisher depend on it rather than on
// FFTProcessor.
type FFTResultProvider interface {
	transport.SpectrumProvider
	GetMagnitudes() []float64                // GetMagnitudes returns a copy of the latest spectrum.
	GetFrequencyForBin(binIndex int) float64 // GetFrequencyForBin returns the bin's centre frequency (Hz).
}

// Chain runs processors in order on every block.
type Chain []BlockProcessor

func (c Chain) Process(block []float64) {
	for _, p := range c {
		p.Process(block)
	}
}

// Close closes every processor that supports it and returns the first error.
func (c Chain) Close() error {
	var first error
	for _, p := range c {
		if cp, ok := p.(ClosableProcessor); ok {
			if err := cp.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

var _ ClosableProcessor = Chain(nil)
