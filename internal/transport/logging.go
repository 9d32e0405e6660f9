// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "pulse/internal/log"
)

var logger = applog.Named("Transport")

// LoggingTransport implements the Transport interface by logging each payload
// at debug level. Useful when no network consumer is attached.
type LoggingTransport struct {
	sent   atomic.Uint64
	closed atomic.Bool
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logger.Infof("Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs a short description of the payload.
func (lt *LoggingTransport) Send(data any) error {
	if lt.closed.Load() {
		return ErrClosed
	}
	n := lt.sent.Add(1)

	switch d := data.(type) {
	case SpectrumFrame:
		logger.Debugf("#%d spectrum seq=%d bins=%d", n, d.Seq, len(d.Magnitudes))
	case BeatEvent:
		logger.Debugf("#%d beat %.1f bpm at %.3fs", n, d.BPM, d.At)
	case BandEnergies:
		logger.Debugf("#%d bands %v", n, d.Energy)
	default:
		logger.Debugf("#%d %T: %+v", n, data, data)
	}
	return nil
}

// Sent returns the number of payloads accepted so far.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.sent.Load()
}

// Close marks the transport closed; later sends fail with ErrClosed.
func (lt *LoggingTransport) Close() error {
	logger.Infof("LoggingTransport closed after %d messages", lt.sent.Load())
	lt.closed.Store(true)
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
