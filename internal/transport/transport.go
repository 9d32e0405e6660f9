// SPDX-License-Identifier: MIT
package transport

import "errors"

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// SpectrumProvider is implemented by processors that expose the latest
// magnitude spectrum. Publishers poll it instead of depending on a concrete
// analysis type.
type SpectrumProvider interface {
	// GetMagnitudesInto copies the latest magnitudes into dst, which must
	// have exactly GetFFTSize()/2+1 elements.
	GetMagnitudesInto(dst []float64) error
	GetFFTSize() int
	GetSampleRate() float64
}

// Message kinds carried in the "type" field of every payload.
const (
	TypeSpectrum = "spectrum"
	TypeBeat     = "beat"
	TypeBands    = "bands"
	TypeSample   = "sample"
)

// SpectrumFrame is one single-sided magnitude spectrum.
type SpectrumFrame struct {
	Type       string    `json:"type"`
	Seq        uint64    `json:"seq"`
	SampleRate float64   `json:"sampleRate"`
	BinWidth   float64   `json:"binWidth"`
	Magnitudes []float64 `json:"magnitudes"`
}

// BeatEvent reports one detected beat and the rate derived from the
// interval since the previous one.
type BeatEvent struct {
	Type string  `json:"type"`
	BPM  float64 `json:"bpm"`
	At   float64 `json:"at"` // seconds since the start of the stream
}

// BandEnergies carries the energy per named frequency band.
type BandEnergies struct {
	Type   string             `json:"type"`
	Energy map[string]float64 `json:"energy"`
}

// Sample is a single filtered value, used by low-rate streams such as the
// pulse monitor.
type Sample struct {
	Type  string  `json:"type"`
	Index int     `json:"index"`
	Value float64 `json:"value"`
}
