// SPDX-License-Identifier: MIT
package fft

import (
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// Spectrum is N complex bins; bin k sits at k·Fs/N.
type Spectrum []complex128

// Freq returns the frequency of bin k in Hz.
func (s Spectrum) Freq(k int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(len(s))
}

// Magnitudes writes |X[k]| into dst, growing it if needed, and returns it.
func (s Spectrum) Magnitudes(dst []float64) []float64 {
	dst = sized(dst, len(s))
	for i, v := range s {
		dst[i] = cmplx.Abs(v)
	}
	return dst
}

// Phases writes arg X[k] in radians, in (-π, π], into dst and returns it.
func (s Spectrum) Phases(dst []float64) []float64 {
	dst = sized(dst, len(s))
	for i, v := range s {
		dst[i] = cmplx.Phase(v)
	}
	return dst
}

// Energy returns (1/N)·Σ|X[k]|². By Parseval it equals the time-domain
// energy Σ|x[n]|² of the block the spectrum came from.
func (s Spectrum) Energy() float64 {
	if len(s) == 0 {
		return 0
	}
	mags := s.Magnitudes(nil)
	return floats.Dot(mags, mags) / float64(len(s))
}

// SingleSided returns the one-sided amplitude spectrum of a real signal for
// the bins strictly below Fs/2. Bins other than DC are doubled to fold in
// their negative-frequency mirror, so a sine of amplitude A reads A.
func (s Spectrum) SingleSided(sampleRate float64) (freqs, amps []float64) {
	n := len(s)
	for k := 0; k < n; k++ {
		f := s.Freq(k, sampleRate)
		if f >= sampleRate/2 {
			break
		}
		a := cmplx.Abs(s[k]) / float64(n)
		if k > 0 {
			a *= 2
		}
		freqs = append(freqs, f)
		amps = append(amps, a)
	}
	return freqs, amps
}

// PeakBin returns the bin with the largest magnitude in 0..N/2.
func (s Spectrum) PeakBin() int {
	peak, best := 0, -1.0
	for k := 0; k <= len(s)/2 && k < len(s); k++ {
		if m := cmplx.Abs(s[k]); m > best {
			peak, best = k, m
		}
	}
	return peak
}

// SignalEnergy returns Σ|x[n]|² of a real block.
func SignalEnergy(x []float64) float64 {
	return floats.Dot(x, x)
}

func sized(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}
