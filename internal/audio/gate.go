// SPDX-License-Identifier: MIT
package audio

import "math"

// The gate skips spectral analysis for blocks whose peak |x| does not exceed
// the threshold. Recording, sinks and beat detection see every sample.

func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// GateEnabled reports whether the gate is active.
func (e *Engine) GateEnabled() bool {
	return e.gateEnabled.Load()
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed
// for signals within [-1, 1].
func (e *Engine) SetGateThreshold(threshold float64) {
	if threshold < 0.0 || threshold != threshold {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	e.gateThreshold.Store(math.Float64bits(threshold))
}

// GetGateThreshold returns the current noise gate threshold.
func (e *Engine) GetGateThreshold() float64 {
	return math.Float64frombits(e.gateThreshold.Load())
}
