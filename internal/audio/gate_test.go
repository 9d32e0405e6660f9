// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"testing"
)

func TestGateEnable(t *testing.T) {
	engine := &Engine{}

	if engine.GateEnabled() {
		t.Error("Gate should be disabled initially")
	}

	engine.EnableGate()
	if !engine.GateEnabled() {
		t.Error("Gate should be enabled after EnableGate()")
	}

	engine.DisableGate()
	engine.DisableGate() // Multiple calls should be idempotent
	if engine.GateEnabled() {
		t.Error("Gate should remain disabled after multiple DisableGate()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.001, 0.001},
		{0.5, 0.5}, // Middle
		{1.0, 1.0}, // Maximum
		{1.5, 1.0}, // Above max
		{math.NaN(), 0.0},
	}

	engine := &Engine{}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.3f", tt.input), func(t *testing.T) {
			engine.SetGateThreshold(tt.input)
			if got := engine.GetGateThreshold(); got != tt.expected {
				t.Errorf("GetGateThreshold() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGateDetection(t *testing.T) {
	quiet := []float64{0.001, -0.002, 0.0015}
	loud := []float64{0.2, -0.9, 0.5}

	tests := []struct {
		desc        string
		buffer      []float64
		gateEnabled bool
		threshold   float64
		wantOpen    bool
	}{
		{"Gate disabled/Quiet signal", quiet, false, 0.1, true},
		{"Gate disabled/Loud signal", loud, false, 0.1, true},
		{"Gate enabled/Quiet signal/Low threshold", quiet, true, 0.0001, true},
		{"Gate enabled/Quiet signal/Mid threshold", quiet, true, 0.1, false},
		{"Gate enabled/Loud signal/Mid threshold", loud, true, 0.1, true},
		{"Gate enabled/Loud signal/High threshold", loud, true, 0.999, false},
		{"Gate enabled/Peak equals threshold", loud, true, 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			e, _ := newTestEngine(t, testConfig())
			e.SetGateThreshold(tt.threshold)
			if tt.gateEnabled {
				e.EnableGate()
			} else {
				e.DisableGate()
			}

			e.processBlock(tt.buffer)
			open := e.Stats().Gated == 0
			if open != tt.wantOpen {
				t.Errorf("gate open = %v, want %v", open, tt.wantOpen)
			}
			if got := e.Spectrum().Frames() == 1; got != tt.wantOpen {
				t.Errorf("spectrum ran = %v, want %v", got, tt.wantOpen)
			}
		})
	}
}

func TestPeakAbs(t *testing.T) {
	if got := peakAbs([]float64{0.2, -0.7, 0.5}); got != 0.7 {
		t.Errorf("peakAbs = %v, want 0.7", got)
	}
	if got := peakAbs(nil); got != 0 {
		t.Errorf("peakAbs(nil) = %v", got)
	}
}

func BenchmarkGateThresholdConversion(b *testing.B) {
	engine := &Engine{}
	values := []float64{0.0, 0.25, 0.5, 0.75, 1.0}

	for _, v := range values {
		b.Run(fmt.Sprintf("%.2f", v), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				engine.SetGateThreshold(v)
				_ = engine.GetGateThreshold()
			}
		})
	}
}

func BenchmarkPeakAbs(b *testing.B) {
	buffer := make([]float64, 1024)
	for i := range buffer {
		buffer[i] = math.Sin(float64(i))
	}
	b.ReportAllocs()
	for b.Loop() {
		_ = peakAbs(buffer)
	}
}
