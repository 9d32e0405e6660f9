// SPDX-License-Identifier: MIT
package filter

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"pulse/internal/testutil"
)

// lab-iir4 coefficients, used wherever a realistic 4th order section helps.
var (
	labB = []float64{0.01488697472657, -0.02695899404537, 0.03705935223574, -0.02695899404537, 0.01488697472657}
	labA = []float64{1, -3.338693232847, 4.401916486793, -2.691625646031, 0.6428936122854}
)

func randomSignal(n int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	x := make([]float64, n)
	for i := range x {
		x[i] = r.Float64()*2 - 1
	}
	return x
}

func TestNewCoefficientsErrors(t *testing.T) {
	tests := []struct {
		name string
		b, a []float64
		want error
	}{
		{"empty b", nil, []float64{1}, ErrEmptyCoefficients},
		{"empty a", []float64{1}, nil, ErrEmptyCoefficients},
		{"zero a0", []float64{1, 1}, []float64{0, 0.5}, ErrZeroNormalization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCoefficients(tt.b, tt.a); !errors.Is(err, tt.want) {
				t.Errorf("NewCoefficients error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewCoefficientsNormalises(t *testing.T) {
	c, err := NewCoefficients([]float64{2, 1}, []float64{2, -1})
	if err != nil {
		t.Fatalf("NewCoefficients: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, c.B(), []float64{1, 0.5}, 0)
	testutil.RequireSliceNearlyEqual(t, c.A(), []float64{1, -0.5}, 0)
}

func TestCoefficientsAreCopied(t *testing.T) {
	b := []float64{1, 2}
	a := []float64{1, 0.5}
	c := MustCoefficients(b, a)

	b[0], a[1] = 100, 100
	c.B()[1] = 100

	if !slices.Equal(c.B(), []float64{1, 2}) || !slices.Equal(c.A(), []float64{1, 0.5}) {
		t.Errorf("coefficients changed through aliases: b=%v a=%v", c.B(), c.A())
	}
}

func TestSectionImpulseResponse(t *testing.T) {
	tests := []struct {
		name string
		b, a []float64
		want []float64
	}{
		{
			name: "first order",
			b:    []float64{1, 0.5},
			a:    []float64{1, -0.5},
			want: []float64{1, 1, 0.5, 0.25, 0.125, 0.0625},
		},
		{
			name: "unnormalised first order",
			b:    []float64{2, 1},
			a:    []float64{2, -1},
			want: []float64{1, 1, 0.5, 0.25, 0.125, 0.0625},
		},
		{
			name: "resonator",
			b:    []float64{1},
			a:    []float64{1, 0, 0.25},
			want: []float64{1, 0, -0.25, 0, 0.0625, 0},
		},
		{
			name: "fir",
			b:    []float64{0.25, 0.5, 0.25},
			a:    []float64{1},
			want: []float64{0.25, 0.5, 0.25, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSection(MustCoefficients(tt.b, tt.a))
			if err != nil {
				t.Fatalf("NewSection: %v", err)
			}
			got := ImpulseResponse(s, len(tt.want))
			testutil.RequireSliceNearlyEqual(t, got, tt.want, 1e-15)
		})
	}
}

func TestSectionDegenerateOrders(t *testing.T) {
	scale, _ := NewSection(MustCoefficients([]float64{3}, []float64{1}))
	for _, x := range []float64{1, -2, 0.5} {
		if y := scale.Step(x); y != 3*x {
			t.Errorf("scale.Step(%v) = %v, want %v", x, y, 3*x)
		}
	}

	// b=[1], a=[1,-1] accumulates its input.
	acc, _ := NewSection(MustCoefficients([]float64{1}, []float64{1, -1}))
	for i, want := range []float64{1, 2, 3, 4} {
		if y := acc.Step(1); y != want {
			t.Errorf("step %d: accumulator = %v, want %v", i, y, want)
		}
	}
}

func TestSectionStepIsNotIdempotent(t *testing.T) {
	s, _ := NewSection(MustCoefficients([]float64{1}, []float64{1, -1}))
	first := s.Step(1)
	second := s.Step(1)
	if first == second {
		t.Errorf("two steps with the same input returned the same output %v", first)
	}
}

func TestNewSectionWithState(t *testing.T) {
	c := MustCoefficients(labB, labA) // M = N = 4

	short, err := NewState(4, 5)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if _, err := NewSectionWithState(c, short); !errors.Is(err, ErrHistoryTooShort) {
		t.Errorf("short input history: error = %v, want ErrHistoryTooShort", err)
	}

	short, _ = NewState(5, 4)
	if _, err := NewSectionWithState(c, short); !errors.Is(err, ErrHistoryTooShort) {
		t.Errorf("short output history: error = %v, want ErrHistoryTooShort", err)
	}

	long, _ := NewState(8, 8)
	s, err := NewSectionWithState(c, long)
	if err != nil {
		t.Fatalf("longer history rejected: %v", err)
	}

	ref, _ := NewSection(c)
	x := randomSignal(64, 1)
	testutil.RequireSliceNearlyEqual(t, s.Process(nil, x), ref.Process(nil, x), 1e-15)

	if _, err := NewState(0, 3); err == nil {
		t.Error("NewState(0, 3) succeeded")
	}
}

func TestSectionLinearity(t *testing.T) {
	const (
		alpha = 2.5
		beta  = -0.75
		n     = 512
	)
	x1 := randomSignal(n, 11)
	x2 := randomSignal(n, 29)
	mixed := make([]float64, n)
	for i := range mixed {
		mixed[i] = alpha*x1[i] + beta*x2[i]
	}

	c := MustCoefficients(labB, labA)
	run := func(x []float64) []float64 {
		s, err := NewSection(c)
		if err != nil {
			t.Fatalf("NewSection: %v", err)
		}
		return s.Process(nil, x)
	}

	y1, y2, ym := run(x1), run(x2), run(mixed)
	want := make([]float64, n)
	for i := range want {
		want[i] = alpha*y1[i] + beta*y2[i]
	}
	testutil.RequireSliceNearlyEqual(t, ym, want, 1e-9)
}

func TestSectionResetRestoresInitialState(t *testing.T) {
	s, _ := NewSection(MustCoefficients(labB, labA))
	x := randomSignal(100, 3)

	first := slices.Clone(s.Process(nil, x))
	s.Reset()
	second := s.Process(nil, x)
	testutil.RequireSliceNearlyEqual(t, second, first, 0)

	for k := range 5 {
		if s.State().Input(k) != x[len(x)-1-k] {
			t.Errorf("State().Input(%d) = %v, want %v", k, s.State().Input(k), x[len(x)-1-k])
		}
	}
}

func TestProcessInPlace(t *testing.T) {
	s, _ := NewSection(MustCoefficients([]float64{1}, []float64{1, -1}))
	buf := []float64{1, 1, 1}
	out := s.Process(buf, buf)
	if !slices.Equal(out, []float64{1, 2, 3}) || &out[0] != &buf[0] {
		t.Errorf("Process in place = %v", out)
	}
}

func TestSectionStepDoesNotAllocate(t *testing.T) {
	s, _ := NewSection(MustCoefficients(labB, labA))
	allocs := testing.AllocsPerRun(100, func() {
		s.Step(0.5)
	})
	if allocs > 0 {
		t.Errorf("Section.Step allocated %.1f times per call", allocs)
	}
}

func TestMovingAverage(t *testing.T) {
	m, err := NewMovingAverage(4)
	if err != nil {
		t.Fatalf("NewMovingAverage: %v", err)
	}

	var got []float64
	for range 6 {
		got = append(got, m.Step(1))
	}
	testutil.RequireSliceNearlyEqual(t, got, []float64{0.25, 0.5, 0.75, 1, 1, 1}, 1e-15)

	if _, err := NewMovingAverage(0); err == nil {
		t.Error("NewMovingAverage(0) succeeded")
	}
}

func TestMovingAverageMatchesFIR(t *testing.T) {
	m, _ := NewMovingAverage(32)
	fir, err := NewSection(m.Coefficients())
	if err != nil {
		t.Fatalf("NewSection: %v", err)
	}

	x := randomSignal(300, 5)
	got := make([]float64, len(x))
	for i, v := range x {
		got[i] = m.Step(v)
	}
	testutil.RequireSliceNearlyEqual(t, got, fir.Process(nil, x), 1e-12)
}

func TestSeries(t *testing.T) {
	double, _ := NewSection(MustCoefficients([]float64{2}, []float64{1}))
	acc, _ := NewSection(MustCoefficients([]float64{1}, []float64{1, -1}))
	s := Series{double, acc}

	got := s.Process(nil, []float64{1, 1, 1})
	testutil.RequireSliceNearlyEqual(t, got, []float64{2, 4, 6}, 0)

	s.Reset()
	if y := s.Step(1); y != 2 {
		t.Errorf("after Reset Step(1) = %v, want 2", y)
	}
}

func BenchmarkSectionStep(b *testing.B) {
	s, _ := NewSection(MustCoefficients(labB, labA))
	b.ReportAllocs()
	for b.Loop() {
		s.Step(0.5)
	}
}
