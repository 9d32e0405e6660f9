// SPDX-License-Identifier: MIT
/*
Package fft computes discrete Fourier transforms of complete sample blocks.

Three interchangeable algorithms produce the same spectrum:

	DFT           direct Euler summation, any N, optional subset of bins
	RecursiveFFT  radix-2 decimation in time by even/odd splitting
	IterativeFFT  bit-reversal permutation followed by log2(N) butterfly stages

A fourth backend delegates to gonum's FFTPACK port and serves as a reference.

Bin k of every result corresponds to k·Fs/N for k in 0..N-1. Nothing is
shifted and nothing is normalised on the forward transform.

The FFT variants only accept power-of-two block sizes. RecursiveFFT allocates
on every level; Plan is the allocation-free path for repeated transforms of
one size.
*/
package fft

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"

	"pulse/pkg/bitint"
)

var (
	// ErrNotPowerOfTwo is returned by the radix-2 transforms for other sizes.
	ErrNotPowerOfTwo = errors.New("fft: size is not a power of two")
	// ErrEmptyInput is returned for zero-length blocks.
	ErrEmptyInput = errors.New("fft: empty input")
	// ErrSizeMismatch is returned when a buffer does not match a plan.
	ErrSizeMismatch = errors.New("fft: buffer size does not match plan")
	// ErrUnknownAlgorithm is returned by ParseAlgorithm.
	ErrUnknownAlgorithm = errors.New("fft: unknown algorithm")
)

// Algorithm selects a transform implementation.
type Algorithm int

const (
	Naive Algorithm = iota
	Recursive
	Iterative
	Gonum
)

var algorithmNames = [...]string{
	Naive:     "naive",
	Recursive: "recursive",
	Iterative: "iterative",
	Gonum:     "gonum",
}

func (a Algorithm) String() string {
	if a < 0 || int(a) >= len(algorithmNames) {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return algorithmNames[a]
}

// ParseAlgorithm converts a name such as "iterative" to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	for i, name := range algorithmNames {
		if strings.EqualFold(s, name) {
			return Algorithm(i), nil
		}
	}
	return Naive, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Algorithms lists every available backend.
func Algorithms() []Algorithm {
	return []Algorithm{Naive, Recursive, Iterative, Gonum}
}

// Transform runs the selected algorithm over the whole block.
func Transform(alg Algorithm, x []complex128) (Spectrum, error) {
	switch alg {
	case Naive:
		return DFT(x, nil)
	case Recursive:
		return RecursiveFFT(x)
	case Iterative:
		return IterativeFFT(x)
	case Gonum:
		if len(x) == 0 {
			return nil, ErrEmptyInput
		}
		return fourier.NewCmplxFFT(len(x)).Coefficients(nil, x), nil
	default:
		return nil, fmt.Errorf("transform: %w: %d", ErrUnknownAlgorithm, int(alg))
	}
}

// ToComplex widens real samples to complex128.
func ToComplex(x []float64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(v, 0)
	}
	return out
}

// DFT evaluates X[k] = Σ x[n]·e^{-2πikn/N} by direct summation for each k in
// bins. A nil bins slice means every bin 0..N-1. Bins outside 0..N-1 are
// valid and alias periodically. The result is index-aligned with bins.
func DFT(x []complex128, bins []int) (Spectrum, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyInput
	}

	if bins == nil {
		out := make(Spectrum, n)
		for k := range out {
			out[k] = dftBin(x, k)
		}
		return out, nil
	}

	out := make(Spectrum, len(bins))
	for i, k := range bins {
		out[i] = dftBin(x, k)
	}
	return out, nil
}

func dftBin(x []complex128, k int) complex128 {
	n := len(x)
	k %= n
	if k < 0 {
		k += n
	}

	var acc complex128
	for i, v := range x {
		// Reducing k·i mod N keeps the angle small and the phase exact at
		// multiples of π/2.
		angle := -2 * math.Pi * float64((k*i)%n) / float64(n)
		s, c := math.Sincos(angle)
		acc += v * complex(c, s)
	}
	return acc
}

// RecursiveFFT computes the DFT by splitting x into even and odd halves,
// transforming each and combining them with
//
//	X[k]     = E[k] + W·O[k]
//	X[k+N/2] = E[k] − W·O[k],   W = e^{-2πik/N}
//
// len(x) must be a power of two. x is not modified.
func RecursiveFFT(x []complex128) (Spectrum, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}
	if !bitint.IsPowerOfTwo(len(x)) {
		return nil, fmt.Errorf("recursive fft of %d samples: %w", len(x), ErrNotPowerOfTwo)
	}
	return recursive(x), nil
}

func recursive(x []complex128) Spectrum {
	n := len(x)
	if n == 1 {
		return Spectrum{x[0]}
	}

	half := n / 2
	even := make([]complex128, half)
	odd := make([]complex128, half)
	for i := range half {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}
	e := recursive(even)
	o := recursive(odd)

	out := make(Spectrum, n)
	for k := range half {
		w := cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n))
		out[k] = e[k] + w*o[k]
		out[k+half] = e[k] - w*o[k]
	}
	return out
}

// IterativeFFT computes the DFT with a one-off Plan. Use a Plan directly to
// transform many blocks of the same size without allocating.
func IterativeFFT(x []complex128) (Spectrum, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}
	p, err := NewPlan(len(x))
	if err != nil {
		return nil, err
	}
	out := make(Spectrum, len(x))
	if err := p.Transform(out, x); err != nil {
		return nil, err
	}
	return out, nil
}
