// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"math"
	"math/cmplx"

	"pulse/pkg/bitint"
)

// Plan holds the bit-reversal table and twiddle factors for an iterative
// radix-2 FFT of one size. A Plan is read-only after NewPlan and may be
// shared between goroutines.
type Plan struct {
	n       int
	perm    []int
	twiddle []complex128 // W_N^k = e^{-2πik/N} for k < N/2
}

// NewPlan prepares an n point transform. n must be a power of two.
func NewPlan(n int) (*Plan, error) {
	perm, err := bitint.Permutation(n)
	if err != nil {
		return nil, fmt.Errorf("fft plan of %d: %w", n, ErrNotPowerOfTwo)
	}

	tw := make([]complex128, n/2)
	for k := range tw {
		tw[k] = cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n))
	}
	return &Plan{n: n, perm: perm, twiddle: tw}, nil
}

// Len returns the transform size.
func (p *Plan) Len() int { return p.n }

// Transform writes the DFT of src into dst. Both must have length Len. dst
// may be src itself for an in-place transform; otherwise the two must not
// overlap.
func (p *Plan) Transform(dst, src []complex128) error {
	if len(dst) != p.n || len(src) != p.n {
		return fmt.Errorf("plan of %d, dst %d, src %d: %w", p.n, len(dst), len(src), ErrSizeMismatch)
	}

	p.permute(dst, src)

	// Stage j combines pairs m = 2^j apart in groups of 2m. The twiddle
	// e^{-iπk/m} equals W_N^{k·N/(2m)}.
	for m := 1; m < p.n; m <<= 1 {
		stride := p.n / (2 * m)
		for start := 0; start < p.n; start += 2 * m {
			for k := range m {
				w := p.twiddle[k*stride]
				a := dst[start+k]
				b := w * dst[start+k+m]
				dst[start+k] = a + b
				dst[start+k+m] = a - b
			}
		}
	}
	return nil
}

// Inverse writes the inverse DFT of src into dst, scaled by 1/N so that
// Inverse(Transform(x)) == x.
func (p *Plan) Inverse(dst, src []complex128) error {
	if len(dst) != p.n || len(src) != p.n {
		return fmt.Errorf("plan of %d, dst %d, src %d: %w", p.n, len(dst), len(src), ErrSizeMismatch)
	}

	for i, v := range src {
		dst[i] = cmplx.Conj(v)
	}
	if err := p.Transform(dst, dst); err != nil {
		return err
	}
	scale := 1 / float64(p.n)
	for i, v := range dst {
		dst[i] = complex(real(v)*scale, -imag(v)*scale)
	}
	return nil
}

func (p *Plan) permute(dst, src []complex128) {
	if &dst[0] == &src[0] {
		// The permutation is an involution, so swapping each pair once
		// reorders in place.
		for i, j := range p.perm {
			if i < j {
				dst[i], dst[j] = dst[j], dst[i]
			}
		}
		return
	}
	for i, j := range p.perm {
		dst[i] = src[j]
	}
}
