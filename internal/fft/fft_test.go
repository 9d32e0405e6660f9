// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	godsp "github.com/mjibson/go-dsp/fft"

	"pulse/internal/testutil"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
	tolerance      = 1e-9
)

// Closed form DFT of the rectangular pulse [1 1 1 1 0 0 0 0].
var rectangularPulse = []complex128{
	4,
	complex(1, -(1 + math.Sqrt2)),
	0,
	complex(1, -(math.Sqrt2 - 1)),
	0,
	complex(1, math.Sqrt2-1),
	0,
	complex(1, 1+math.Sqrt2),
}

func randomComplex(n int, seed uint64) []complex128 {
	r := rand.New(rand.NewPCG(seed, 7))
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(r.Float64()*2-1, r.Float64()*2-1)
	}
	return x
}

func randomReal(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, 11))
	x := make([]float64, n)
	for i := range x {
		x[i] = r.Float64()*2 - 1
	}
	return x
}

func TestRectangularPulse(t *testing.T) {
	x := ToComplex([]float64{1, 1, 1, 1, 0, 0, 0, 0})

	for _, alg := range Algorithms() {
		t.Run(alg.String(), func(t *testing.T) {
			got, err := Transform(alg, x)
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			testutil.RequireComplexNearlyEqual(t, got, rectangularPulse, tolerance)
		})
	}
}

func TestAlgorithmsAgree(t *testing.T) {
	for _, n := range []int{2, 4, 16, 256, 1024} {
		x := randomComplex(n, uint64(n))
		want, err := DFT(x, nil)
		if err != nil {
			t.Fatalf("DFT: %v", err)
		}

		for _, alg := range []Algorithm{Recursive, Iterative, Gonum} {
			got, err := Transform(alg, x)
			if err != nil {
				t.Fatalf("%v N=%d: %v", alg, n, err)
			}
			// Naive summation error grows with N.
			testutil.RequireComplexNearlyEqual(t, got, want, 1e-12*float64(n))
		}
	}
}

func TestMatchesGoDSP(t *testing.T) {
	x := randomComplex(512, 3)
	got, err := IterativeFFT(x)
	if err != nil {
		t.Fatalf("IterativeFFT: %v", err)
	}
	testutil.RequireComplexNearlyEqual(t, got, godsp.FFT(x), tolerance)

	samples := randomReal(256, 5)
	got, err = RecursiveFFT(ToComplex(samples))
	if err != nil {
		t.Fatalf("RecursiveFFT: %v", err)
	}
	testutil.RequireComplexNearlyEqual(t, got, godsp.FFTReal(samples), tolerance)
}

func TestInputNotModified(t *testing.T) {
	x := randomComplex(64, 9)
	orig := append([]complex128(nil), x...)

	for _, alg := range Algorithms() {
		if _, err := Transform(alg, x); err != nil {
			t.Fatalf("%v: %v", alg, err)
		}
		testutil.RequireComplexNearlyEqual(t, x, orig, 0)
	}
}

func TestPreconditions(t *testing.T) {
	six := ToComplex([]float64{1, 2, 3, 4, 5, 6})

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"recursive non power of two", func() error { _, err := RecursiveFFT(six); return err }, ErrNotPowerOfTwo},
		{"iterative non power of two", func() error { _, err := IterativeFFT(six); return err }, ErrNotPowerOfTwo},
		{"plan non power of two", func() error { _, err := NewPlan(12); return err }, ErrNotPowerOfTwo},
		{"plan zero", func() error { _, err := NewPlan(0); return err }, ErrNotPowerOfTwo},
		{"dft empty", func() error { _, err := DFT(nil, nil); return err }, ErrEmptyInput},
		{"recursive empty", func() error { _, err := RecursiveFFT(nil); return err }, ErrEmptyInput},
		{"iterative empty", func() error { _, err := IterativeFFT(nil); return err }, ErrEmptyInput},
		{"gonum empty", func() error { _, err := Transform(Gonum, nil); return err }, ErrEmptyInput},
		{"unknown algorithm", func() error { _, err := Transform(Algorithm(42), six); return err }, ErrUnknownAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDFTAnySize(t *testing.T) {
	x := ToComplex([]float64{1, 2, 3, 4, 5, 6})
	got, err := DFT(x, nil)
	if err != nil {
		t.Fatalf("DFT: %v", err)
	}
	gonum, _ := Transform(Gonum, x)
	testutil.RequireComplexNearlyEqual(t, got, gonum, tolerance)

	// X[0] is the sum, X[3] the alternating sum.
	if cmplx.Abs(got[0]-21) > tolerance || cmplx.Abs(got[3]-(-3)) > tolerance {
		t.Errorf("DFT = %v", got)
	}
}

func TestDFTSelectedBins(t *testing.T) {
	x := ToComplex([]float64{1, 1, 1, 1, 0, 0, 0, 0})
	got, err := DFT(x, []int{1, 3, 9, -1})
	if err != nil {
		t.Fatalf("DFT: %v", err)
	}
	want := []complex128{rectangularPulse[1], rectangularPulse[3], rectangularPulse[1], rectangularPulse[7]}
	testutil.RequireComplexNearlyEqual(t, got, want, tolerance)

	if got, _ := DFT(x, []int{}); len(got) != 0 {
		t.Errorf("DFT with no bins returned %v", got)
	}
}

func TestSingleSample(t *testing.T) {
	x := []complex128{complex(3, -1)}
	for _, alg := range []Algorithm{Naive, Recursive, Iterative} {
		got, err := Transform(alg, x)
		if err != nil {
			t.Fatalf("%v: %v", alg, err)
		}
		if len(got) != 1 || got[0] != x[0] {
			t.Errorf("%v of one sample = %v, want %v", alg, got, x)
		}
	}
}

func TestParseval(t *testing.T) {
	for _, n := range []int{8, 64, testFFTSize} {
		x := randomReal(n, uint64(n)+1)
		want := SignalEnergy(x)

		for _, alg := range Algorithms() {
			s, err := Transform(alg, ToComplex(x))
			if err != nil {
				t.Fatalf("%v: %v", alg, err)
			}
			if got := s.Energy(); math.Abs(got-want) > 1e-9*want {
				t.Errorf("%v N=%d: spectral energy %v, time energy %v", alg, n, got, want)
			}
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"naive", Naive, false},
		{"recursive", Recursive, false},
		{"Iterative", Iterative, false},
		{"GONUM", Gonum, false},
		{"bluestein", Naive, true},
		{"", Naive, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAlgorithm) {
					t.Errorf("ParseAlgorithm(%q) error = %v", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
			if got.String() != algorithmNames[tt.want] {
				t.Errorf("String() = %q", got.String())
			}
		})
	}

	if s := Algorithm(-1).String(); s != "Algorithm(-1)" {
		t.Errorf("invalid algorithm String() = %q", s)
	}
}

func BenchmarkTransform(b *testing.B) {
	x := ToComplex(testutil.GenerateComplexWave(testFFTSize, testSampleRate))

	for _, alg := range []Algorithm{Recursive, Iterative, Gonum} {
		b.Run(alg.String(), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_, _ = Transform(alg, x)
			}
		})
	}
}

func BenchmarkDFT(b *testing.B) {
	x := ToComplex(testutil.GenerateComplexWave(256, testSampleRate))
	b.ReportAllocs()
	for b.Loop() {
		_, _ = DFT(x, nil)
	}
}
