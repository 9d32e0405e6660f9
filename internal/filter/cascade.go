// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"
)

// Cascade is an ordered chain of second-order sections. Section 0 sees the
// input first; the output of the last section is the filter output. A scalar
// gain is applied to the input before the first section.
type Cascade struct {
	sections []*Section
	gain     float64
}

type cascadeConfig struct {
	gain float64
}

// CascadeOption configures a Cascade.
type CascadeOption func(*cascadeConfig)

// WithGain sets the overall input gain. Default is 1.
func WithGain(g float64) CascadeOption {
	return func(cfg *cascadeConfig) { cfg.gain = g }
}

// NewCascade builds a cascade from one coefficient set per section. Each
// set must be at most second order on both sides.
func NewCascade(sections []Coefficients, opts ...CascadeOption) (*Cascade, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("new cascade: %w", ErrEmptyCoefficients)
	}

	cfg := cascadeConfig{gain: 1}
	for _, o := range opts {
		o(&cfg)
	}

	c := &Cascade{sections: make([]*Section, len(sections)), gain: cfg.gain}
	for i, coeffs := range sections {
		if m, n := coeffs.Order(); m > 2 || n > 2 {
			return nil, fmt.Errorf("new cascade: section %d has order %d/%d: %w", i, m, n, ErrSectionOrder)
		}
		// Every stage keeps three samples of history regardless of order.
		st, err := NewState(3, 3)
		if err != nil {
			return nil, err
		}
		s, err := NewSectionWithState(coeffs, st)
		if err != nil {
			return nil, fmt.Errorf("new cascade: section %d: %w", i, err)
		}
		c.sections[i] = s
	}
	return c, nil
}

// FromSOSTable builds a cascade from a MATLAB style section table. num and
// den are paired row by row. Rows of length one on both sides are scalar
// gain stages; since scalar gains commute with the sections they are folded
// into a single input gain. Every other row becomes one second-order
// section.
func FromSOSTable(num, den [][]float64) (*Cascade, error) {
	if len(num) != len(den) {
		return nil, fmt.Errorf("sos table: %d numerator rows, %d denominator rows: %w", len(num), len(den), ErrTableShape)
	}

	gain := 1.0
	var sections []Coefficients
	for i := range num {
		b, a := num[i], den[i]
		if len(b) == 1 && len(a) == 1 {
			if a[0] == 0 {
				return nil, fmt.Errorf("sos table: gain row %d: %w", i, ErrZeroNormalization)
			}
			gain *= b[0] / a[0]
			continue
		}
		c, err := NewCoefficients(b, a)
		if err != nil {
			return nil, fmt.Errorf("sos table: row %d: %w", i, err)
		}
		sections = append(sections, c)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("sos table: no sections: %w", ErrTableShape)
	}
	return NewCascade(sections, WithGain(gain))
}

// Step scales x by the input gain and runs it through every section.
func (c *Cascade) Step(x float64) float64 {
	x *= c.gain
	for _, s := range c.sections {
		x = s.Step(x)
	}
	return x
}

// Process filters src into dst and returns dst.
func (c *Cascade) Process(dst, src []float64) []float64 {
	return process(c, dst, src)
}

// Reset clears every section.
func (c *Cascade) Reset() {
	for _, s := range c.sections {
		s.Reset()
	}
}

// Gain returns the input gain.
func (c *Cascade) Gain() float64 { return c.gain }

// Len returns the number of sections.
func (c *Cascade) Len() int { return len(c.sections) }

// Section returns the i-th section.
func (c *Cascade) Section(i int) *Section { return c.sections[i] }

// DirectForm expands the cascade into one equivalent recurrence by
// multiplying the section polynomials. The gain is folded into b.
//
// High-order expansions are numerically fragile; they exist for analysis and
// equivalence checks, not for running narrow-band filters.
func (c *Cascade) DirectForm() Coefficients {
	b := []float64{c.gain}
	a := []float64{1}
	for _, s := range c.sections {
		b = convolve(b, s.coeffs.b)
		a = convolve(a, s.coeffs.a)
	}
	return Coefficients{b: b, a: a}
}

// convolve multiplies two polynomials in z^-1.
func convolve(p, q []float64) []float64 {
	out := make([]float64, len(p)+len(q)-1)
	for i, pi := range p {
		for j, qj := range q {
			out[i+j] += pi * qj
		}
	}
	return out
}
