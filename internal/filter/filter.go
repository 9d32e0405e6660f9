// SPDX-License-Identifier: MIT
/*
Package filter evaluates linear recurrence filters one sample at a time.

Every filter here computes

	y[n] = Σ_{i=0}^{M} b[i]·x[n-i] − Σ_{i=1}^{N} a[i]·y[n-i]

with a[0] normalised to 1. A Section evaluates one recurrence directly from
its coefficient lists. A Cascade chains second-order sections. MovingAverage
and Series cover the remaining shapes used by the pulse pipeline.

All filters own their history. There is no package-level state, so any number
of independent filters may run side by side. None of the types are safe for
concurrent use; one goroutine drives Step for a given filter.

Outputs are never clamped. Sinks that drive fixed-width hardware quantise at
their own boundary.
*/
package filter

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmptyCoefficients is returned when b or a has no elements.
	ErrEmptyCoefficients = errors.New("filter: empty coefficient list")
	// ErrZeroNormalization is returned when a[0] is zero.
	ErrZeroNormalization = errors.New("filter: a[0] must be non-zero")
	// ErrHistoryTooShort is returned when a state cannot hold the history a
	// coefficient set needs.
	ErrHistoryTooShort = errors.New("filter: history shorter than coefficient count")
	// ErrSectionOrder is returned when a cascade stage is above second order.
	ErrSectionOrder = errors.New("filter: cascade sections must be at most second order")
	// ErrTableShape is returned for malformed second-order section tables.
	ErrTableShape = errors.New("filter: malformed section table")
	// ErrUnknownPreset is returned by Lookup for names not in the preset table.
	ErrUnknownPreset = errors.New("filter: unknown preset")
)

// Stepper is a streaming filter. Step consumes exactly one input sample and
// returns one output sample; calling it twice with the same value advances
// the history twice. Reset returns the filter to its initial all-zero state.
type Stepper interface {
	Step(x float64) float64
	Reset()
}

// Coefficients is one recurrence: feed-forward b (M+1 taps) and feedback a
// (N+1 taps) with a[0] == 1. The zero value is not usable; build one with
// NewCoefficients. A Coefficients value is immutable and may be shared by
// any number of filters.
type Coefficients struct {
	b []float64
	a []float64
}

// NewCoefficients copies b and a and normalises both by a[0].
func NewCoefficients(b, a []float64) (Coefficients, error) {
	if len(b) == 0 || len(a) == 0 {
		return Coefficients{}, fmt.Errorf("new coefficients (len(b)=%d, len(a)=%d): %w", len(b), len(a), ErrEmptyCoefficients)
	}
	if a[0] == 0 {
		return Coefficients{}, fmt.Errorf("new coefficients: %w", ErrZeroNormalization)
	}

	c := Coefficients{b: slices.Clone(b), a: slices.Clone(a)}
	if a0 := c.a[0]; a0 != 1 {
		floats.Scale(1/a0, c.b)
		floats.Scale(1/a0, c.a)
		c.a[0] = 1
	}
	return c, nil
}

// MustCoefficients is like NewCoefficients but panics on error.
func MustCoefficients(b, a []float64) Coefficients {
	c, err := NewCoefficients(b, a)
	if err != nil {
		panic(err)
	}
	return c
}

// FIR returns feed-forward only coefficients (a = [1]).
func FIR(b []float64) (Coefficients, error) {
	return NewCoefficients(b, []float64{1})
}

// B returns a copy of the feed-forward taps.
func (c Coefficients) B() []float64 { return slices.Clone(c.b) }

// A returns a copy of the normalised feedback taps, a[0] included.
func (c Coefficients) A() []float64 { return slices.Clone(c.a) }

// Order returns M and N, the feed-forward and feedback orders.
func (c Coefficients) Order() (m, n int) { return len(c.b) - 1, len(c.a) - 1 }

// Scale returns a copy with every feed-forward tap multiplied by g.
func (c Coefficients) Scale(g float64) Coefficients {
	b := slices.Clone(c.b)
	floats.Scale(g, b)
	return Coefficients{b: b, a: slices.Clone(c.a)}
}

func (c Coefficients) valid() bool {
	return len(c.b) > 0 && len(c.a) > 0
}
