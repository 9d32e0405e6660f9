// SPDX-License-Identifier: MIT

// Package stream connects a sample source, a filter and any number of sinks.
// It is the only place where the fixed-memory core meets I/O: sources and
// sinks may block or fail, the filter never does.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"pulse/internal/filter"
	applog "pulse/internal/log"
)

var logger = applog.Named("Stream")

// Source yields one sample per call and io.EOF once exhausted.
type Source interface {
	Next() (float64, error)
}

// Sink consumes one filtered sample per call. index counts samples from 0.
type Sink interface {
	Write(index int, value float64) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (float64, error)

func (f SourceFunc) Next() (float64, error) { return f() }

// SinkFunc adapts a function to Sink.
type SinkFunc func(index int, value float64) error

func (f SinkFunc) Write(index int, value float64) error { return f(index, value) }

// Identity passes samples through unchanged.
type Identity struct{}

func (Identity) Step(x float64) float64 { return x }
func (Identity) Reset()                 {}

var _ filter.Stepper = Identity{}

// checkEvery is how many samples Run processes between context checks.
const checkEvery = 256

// Run pulls samples from src until it reports io.EOF, filters each one with f
// and writes the result to every sink in order. It returns the number of
// samples processed. A nil f passes samples through.
func Run(ctx context.Context, src Source, f filter.Stepper, sinks ...Sink) (int, error) {
	if f == nil {
		f = Identity{}
	}

	n := 0
	for {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}

		x, err := src.Next()
		if errors.Is(err, io.EOF) {
			logger.Debugf("Source exhausted after %d samples", n)
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read sample %d: %w", n, err)
		}

		y := f.Step(x)
		for _, s := range sinks {
			if err := s.Write(n, y); err != nil {
				return n, fmt.Errorf("failed to write sample %d: %w", n, err)
			}
		}
		n++
	}
}

// ReadBlock reads up to len(dst) samples into dst and returns how many were
// read. io.EOF is returned only when no sample could be read.
func ReadBlock(src Source, dst []float64) (int, error) {
	for i := range dst {
		x, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) && i > 0 {
				return i, nil
			}
			return i, err
		}
		dst[i] = x
	}
	return len(dst), nil
}

// Limit stops src after n samples.
func Limit(src Source, n int) Source {
	return SourceFunc(func() (float64, error) {
		if n <= 0 {
			return 0, io.EOF
		}
		n--
		return src.Next()
	})
}

// Paced delivers one sample per period, the way a hardware timer interrupt
// would. The wait is skipped once ctx is done, so Run can observe the
// cancellation.
func Paced(ctx context.Context, src Source, period time.Duration) Source {
	ticker := time.NewTicker(period)
	return SourceFunc(func() (float64, error) {
		if err := ctx.Err(); err != nil {
			ticker.Stop()
			return 0, err
		}
		select {
		case <-ctx.Done():
			ticker.Stop()
			return 0, ctx.Err()
		case <-ticker.C:
		}
		return src.Next()
	})
}

// Collector is a Sink that keeps every sample in memory.
type Collector struct {
	Values []float64
}

func (c *Collector) Write(_ int, v float64) error {
	c.Values = append(c.Values, v)
	return nil
}
