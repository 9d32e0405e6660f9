// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"pulse/internal/transport"
)

// FrequencyBand defines the name and frequency range [LowHz, HighHz) of an
// energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// PulseBands splits the range a pulse or ECG trace occupies at 1 kHz.
var PulseBands = []FrequencyBand{
	{Name: "baseline", LowHz: 0, HighHz: 0.5},
	{Name: "heart", LowHz: 0.5, HighHz: 4},
	{Name: "harmonics", LowHz: 4, HighHz: 40},
	{Name: "mains", LowHz: 40, HighHz: 70},
	{Name: "noise", LowHz: 70, HighHz: math.Inf(1)},
}

// BandEnergyProcessor computes the RMS amplitude per band from the latest
// spectrum of an FFTResultProvider.
type BandEnergyProcessor struct {
	transport   transport.Transport
	bands       []FrequencyBand
	fftProvider FFTResultProvider
	mags        []float64
	energy      []float64
}

// NewBandEnergyProcessor creates a processor over bands. Bands must not be
// empty and each must satisfy LowHz < HighHz.
func NewBandEnergyProcessor(t transport.Transport, fftProvider FFTResultProvider, bands []FrequencyBand) (*BandEnergyProcessor, error) {
	if fftProvider == nil {
		return nil, fmt.Errorf("band energy: nil FFTResultProvider")
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("band energy: no bands")
	}
	for _, b := range bands {
		if !(b.LowHz < b.HighHz) {
			return nil, fmt.Errorf("band energy: band %q has empty range [%g, %g)", b.Name, b.LowHz, b.HighHz)
		}
	}

	logger.Infof("Initializing BandEnergyProcessor with %d bands.", len(bands))
	return &BandEnergyProcessor{
		transport:   t,
		bands:       append([]FrequencyBand(nil), bands...),
		fftProvider: fftProvider,
		mags:        make([]float64, fftProvider.GetFFTSize()/2+1),
		energy:      make([]float64, len(bands)),
	}, nil
}

// Update recomputes the band energies from the provider's current spectrum
// and sends them when a transport is attached. It is meant to run after the
// FFTProcessor has seen a block.
func (p *BandEnergyProcessor) Update() error {
	if err := p.fftProvider.GetMagnitudesInto(p.mags); err != nil {
		return err
	}

	clear(p.energy)
	last := len(p.mags) - 1
	for i, m := range p.mags {
		// Single-sided amplitudes: a sinusoid of amplitude A has power A²/2,
		// the DC and Nyquist bins carry their full power.
		pw := m * m
		if i != 0 && i != last {
			pw /= 2
		}
		freq := p.fftProvider.GetFrequencyForBin(i)
		for j, band := range p.bands {
			if freq >= band.LowHz && freq < band.HighHz {
				p.energy[j] += pw
				break
			}
		}
	}
	for j := range p.energy {
		p.energy[j] = math.Sqrt(p.energy[j])
	}

	if p.transport != nil {
		if err := p.transport.Send(transport.BandEnergies{Type: transport.TypeBands, Energy: p.Energies()}); err != nil {
			logger.Debugf("BandEnergyProcessor: error sending band energy data: %v", err)
		}
	}
	return nil
}

// Process ignores the block and calls Update, so the processor can sit in a
// Chain after the FFTProcessor.
func (p *BandEnergyProcessor) Process([]float64) {
	if err := p.Update(); err != nil {
		logger.Warnf("BandEnergyProcessor: %v", err)
	}
}

// Energies returns the RMS per band name from the last Update.
func (p *BandEnergyProcessor) Energies() map[string]float64 {
	out := make(map[string]float64, len(p.bands))
	for j, b := range p.bands {
		out[b.Name] = p.energy[j]
	}
	return out
}

var _ BlockProcessor = (*BandEnergyProcessor)(nil)
