// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"

	"pulse/internal/ring"
)

// State is the per-section history: past inputs and past outputs. Both
// rings start zero filled, so the first samples see x[n-i] = y[n-i] = 0.
type State struct {
	in  *ring.Buffer[float64]
	out *ring.Buffer[float64]
}

// NewState allocates history for inLen past inputs and outLen past outputs.
func NewState(inLen, outLen int) (*State, error) {
	in, err := ring.New[float64](inLen)
	if err != nil {
		return nil, fmt.Errorf("input history: %w", err)
	}
	out, err := ring.New[float64](outLen)
	if err != nil {
		return nil, fmt.Errorf("output history: %w", err)
	}
	return &State{in: in, out: out}, nil
}

// Reset zeroes both histories.
func (s *State) Reset() {
	s.in.Reset()
	s.out.Reset()
}

// Input returns x[n-k] relative to the most recent input.
func (s *State) Input(k int) float64 { return s.in.AtFront(k) }

// Output returns y[n-k] relative to the most recent output.
func (s *State) Output(k int) float64 { return s.out.AtFront(k) }

func (s *State) fits(c Coefficients) error {
	m, n := c.Order()
	if s.in.Cap() < m+1 || s.out.Cap() < n+1 {
		return fmt.Errorf("state %d/%d for order %d/%d: %w",
			s.in.Cap(), s.out.Cap(), m, n, ErrHistoryTooShort)
	}
	return nil
}

// Section evaluates a single direct-form recurrence.
type Section struct {
	coeffs Coefficients
	state  *State
}

// NewSection creates a section with a freshly sized, zeroed state.
func NewSection(c Coefficients) (*Section, error) {
	if !c.valid() {
		return nil, fmt.Errorf("new section: %w", ErrEmptyCoefficients)
	}
	m, n := c.Order()
	st, err := NewState(m+1, n+1)
	if err != nil {
		return nil, err
	}
	return &Section{coeffs: c, state: st}, nil
}

// NewSectionWithState binds c to an existing state. The state must hold at
// least M+1 inputs and N+1 outputs.
func NewSectionWithState(c Coefficients, st *State) (*Section, error) {
	if !c.valid() {
		return nil, fmt.Errorf("new section: %w", ErrEmptyCoefficients)
	}
	if err := st.fits(c); err != nil {
		return nil, fmt.Errorf("new section: %w", err)
	}
	return &Section{coeffs: c, state: st}, nil
}

// Step pushes x into the input history and returns the next output.
func (s *Section) Step(x float64) float64 {
	st := s.state
	st.in.Enqueue(x)

	var y float64
	for i, bi := range s.coeffs.b {
		y += bi * st.in.AtFront(i)
	}
	// Output history has not seen y[n] yet, so y[n-i] sits at offset i-1.
	for i := 1; i < len(s.coeffs.a); i++ {
		y -= s.coeffs.a[i] * st.out.AtFront(i-1)
	}

	st.out.Enqueue(y)
	return y
}

// Process filters src into dst sample by sample and returns dst. dst may
// alias src. If dst is shorter than src it is grown.
func (s *Section) Process(dst, src []float64) []float64 {
	return process(s, dst, src)
}

// Reset zeroes the section history.
func (s *Section) Reset() { s.state.Reset() }

// Coefficients returns the recurrence evaluated by the section.
func (s *Section) Coefficients() Coefficients { return s.coeffs }

// State exposes the section history for inspection.
func (s *Section) State() *State { return s.state }

func process(f Stepper, dst, src []float64) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, x := range src {
		dst[i] = f.Step(x)
	}
	return dst
}
