// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"pulse/internal/stream"
)

// ErrUnknownGenerator is returned by ParseGenerator.
var ErrUnknownGenerator = errors.New("unknown generator")

// Generator produces an endless synthetic signal sampled at a fixed rate.
// Combine it with stream.Limit for a finite run.
type Generator struct {
	fn   func(n int) float64
	rate float64
	n    int
}

// NewGenerator samples fn(t) at t = n/rate.
func NewGenerator(rate float64, fn func(t float64) float64) *Generator {
	return &Generator{rate: rate, fn: func(n int) float64 { return fn(float64(n) / rate) }}
}

func (g *Generator) Next() (float64, error) {
	x := g.fn(g.n)
	g.n++
	return x, nil
}

// SampleRate returns the generator's sample rate in Hz.
func (g *Generator) SampleRate() float64 { return g.rate }

// Reset restarts the signal at n = 0.
func (g *Generator) Reset() { g.n = 0 }

// NewSine returns amplitude·sin(2π·freq·t + phase).
func NewSine(freq, amplitude, phase, rate float64) *Generator {
	return NewGenerator(rate, func(t float64) float64 {
		return amplitude * math.Sin(2*math.Pi*freq*t+phase)
	})
}

// ECGRate is the heart rate of the synthetic ECG in Hz (90 bpm).
const ECGRate = 1.5

// ECG evaluates a synthetic ECG-like waveform: a 4·f carrier shaped by a
// sharpened envelope at the heart rate f = ECGRate.
func ECG(t float64) float64 {
	const f = ECGRate
	return math.Sin(2*math.Pi*f*4*t) * math.Pow(0.5*(math.Sin(2*math.Pi*f*t)+1), 5)
}

// NewECG samples ECG at rate.
func NewECG(rate float64) *Generator {
	return NewGenerator(rate, ECG)
}

// NewNoisyECG adds 50 Hz mains hum and a 0.2 Hz baseline wander to the
// synthetic ECG, the test signal the ECG band-pass presets were designed for.
func NewNoisyECG(rate float64) *Generator {
	return NewGenerator(rate, func(t float64) float64 {
		return ECG(t) + 0.1*math.Sin(2*math.Pi*50*t) + 0.1*math.Cos(2*math.Pi*0.2*t)
	})
}

// NewImpulse yields 1 followed by zeros.
func NewImpulse(rate float64) *Generator {
	return &Generator{rate: rate, fn: func(n int) float64 {
		if n == 0 {
			return 1
		}
		return 0
	}}
}

// NewNoise yields uniform noise in [-amplitude, amplitude). The sequence is
// fixed by seed.
func NewNoise(amplitude float64, seed uint64, rate float64) *Generator {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{rate: rate, fn: func(int) float64 {
		return amplitude * (2*r.Float64() - 1)
	}}
}

// Sum adds the samples of several sources. It ends when any of them ends.
func Sum(srcs ...stream.Source) stream.Source {
	return stream.SourceFunc(func() (float64, error) {
		var acc float64
		for _, s := range srcs {
			x, err := s.Next()
			if err != nil {
				return 0, err
			}
			acc += x
		}
		return acc, nil
	})
}

// Slice replays a fixed sample slice.
type Slice struct {
	data []float64
	pos  int
}

// FromSlice returns a Source over data. The slice is not copied.
func FromSlice(data []float64) *Slice {
	return &Slice{data: data}
}

func (s *Slice) Next() (float64, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	s.pos++
	return s.data[s.pos-1], nil
}

// ParseGenerator builds a generator from a short description:
//
//	sine:FREQ[:AMPLITUDE]   ecg   ecg-noisy   impulse   noise[:AMPLITUDE]
func ParseGenerator(desc string, rate float64) (*Generator, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("generator %q: sample rate must be positive, got %g", desc, rate)
	}
	name, args, _ := strings.Cut(strings.ToLower(strings.TrimSpace(desc)), ":")

	var params []float64
	if args != "" {
		for _, a := range strings.Split(args, ":") {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, fmt.Errorf("generator %q: bad parameter %q: %w", desc, a, err)
			}
			params = append(params, v)
		}
	}
	param := func(i int, def float64) float64 {
		if i < len(params) {
			return params[i]
		}
		return def
	}

	switch name {
	case "sine":
		if len(params) == 0 {
			return nil, fmt.Errorf("generator %q: sine needs a frequency, e.g. sine:50", desc)
		}
		return NewSine(params[0], param(1, 1), 0, rate), nil
	case "ecg":
		return NewECG(rate), nil
	case "ecg-noisy":
		return NewNoisyECG(rate), nil
	case "impulse":
		return NewImpulse(rate), nil
	case "noise":
		return NewNoise(param(0, 1), 1, rate), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, desc)
	}
}
