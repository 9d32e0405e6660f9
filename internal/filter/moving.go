// SPDX-License-Identifier: MIT
package filter

import (
	"fmt"

	"pulse/internal/ring"
)

// MovingAverage is a boxcar FIR over the last Taps samples. The sum is
// always divided by Taps, so the output ramps up over the first Taps-1
// samples exactly as the equivalent FIR with b[i] = 1/Taps would.
type MovingAverage struct {
	window *ring.Buffer[float64]
	scale  float64
}

// NewMovingAverage creates a moving average over taps samples.
func NewMovingAverage(taps int) (*MovingAverage, error) {
	w, err := ring.New[float64](taps)
	if err != nil {
		return nil, fmt.Errorf("moving average: %w", err)
	}
	return &MovingAverage{window: w, scale: 1 / float64(taps)}, nil
}

// Step pushes x and returns the mean of the window.
func (m *MovingAverage) Step(x float64) float64 {
	m.window.Enqueue(x)
	var sum float64
	for i := range m.window.Len() {
		sum += m.window.AtFront(i)
	}
	return sum * m.scale
}

// Reset empties the window.
func (m *MovingAverage) Reset() { m.window.Reset() }

// Taps returns the window length.
func (m *MovingAverage) Taps() int { return m.window.Cap() }

// Coefficients returns the equivalent FIR coefficients.
func (m *MovingAverage) Coefficients() Coefficients {
	b := make([]float64, m.Taps())
	for i := range b {
		b[i] = m.scale
	}
	return Coefficients{b: b, a: []float64{1}}
}

// Series runs steppers one after another, feeding each output to the next.
// It is how independently designed stages such as a high-pass followed by a
// low-pass are combined.
type Series []Stepper

// Step runs x through every stage in order.
func (s Series) Step(x float64) float64 {
	for _, f := range s {
		x = f.Step(x)
	}
	return x
}

// Reset resets every stage.
func (s Series) Reset() {
	for _, f := range s {
		f.Reset()
	}
}

// Process filters src into dst and returns dst.
func (s Series) Process(dst, src []float64) []float64 {
	return process(s, dst, src)
}
