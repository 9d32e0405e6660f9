// SPDX-License-Identifier: MIT
package filter

import (
	"math"
	"math/cmplx"
)

// Response evaluates H(e^jw) = B(e^jw)/A(e^jw) at freqHz for the given
// sample rate.
func (c Coefficients) Response(freqHz, sampleRate float64) complex128 {
	w := 2 * math.Pi * freqHz / sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	return horner(c.b, z1) / horner(c.a, z1)
}

// horner evaluates p[0] + p[1]·z + p[2]·z² + ...
func horner(p []float64, z complex128) complex128 {
	var acc complex128
	for i := len(p) - 1; i >= 0; i-- {
		acc = acc*z + complex(p[i], 0)
	}
	return acc
}

// MagnitudeDB returns 20·log10|H(f)|.
func (c Coefficients) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return toDB(c.Response(freqHz, sampleRate))
}

// Response evaluates the section transfer function.
func (s *Section) Response(freqHz, sampleRate float64) complex128 {
	return s.coeffs.Response(freqHz, sampleRate)
}

// MagnitudeDB returns the section magnitude response in dB.
func (s *Section) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return s.coeffs.MagnitudeDB(freqHz, sampleRate)
}

// Response computes the cascade response as the gain times the product of
// the section responses.
func (c *Cascade) Response(freqHz, sampleRate float64) complex128 {
	h := complex(c.gain, 0)
	for _, s := range c.sections {
		h *= s.Response(freqHz, sampleRate)
	}
	return h
}

// MagnitudeDB returns the cascade magnitude response in dB.
func (c *Cascade) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return toDB(c.Response(freqHz, sampleRate))
}

func toDB(h complex128) float64 {
	return 20 * math.Log10(cmplx.Abs(h))
}

// ImpulseResponse resets f, feeds it a unit impulse followed by n-1 zeros
// and returns the n outputs. f is left reset on return.
func ImpulseResponse(f Stepper, n int) []float64 {
	if n <= 0 {
		return nil
	}
	f.Reset()
	ir := make([]float64, n)
	ir[0] = f.Step(1)
	for i := 1; i < n; i++ {
		ir[i] = f.Step(0)
	}
	f.Reset()
	return ir
}
