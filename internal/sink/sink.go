// SPDX-License-Identifier: MIT

// Package sink writes filtered samples to files, serial ports, speakers and
// transports. Clamping and quantisation to a hardware range happen here and
// nowhere else.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	applog "pulse/internal/log"
	"pulse/internal/stream"
	"pulse/internal/transport"
)

var logger = applog.Named("Sink")

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

// Sink is a stream.Sink that owns a resource.
type Sink interface {
	stream.Sink
	io.Closer
}

// Quantizer maps [Min, Max] linearly onto the integer codes 0..Levels-1,
// rounding to the nearest code and clamping everything outside the range.
type Quantizer struct {
	Min, Max float64
	Levels   int
}

// DAC8 drives an 8-bit DAC from samples already scaled to 0..255, the range
// a 12-bit ADC reading divided by 16 produces.
var DAC8 = Quantizer{Min: 0, Max: 255, Levels: 256}

// Unit8 maps [-1, 1] audio onto 8-bit codes.
var Unit8 = Quantizer{Min: -1, Max: 1, Levels: 256}

// Quantize returns the code for x. NaN maps to the lowest code.
func (q Quantizer) Quantize(x float64) int {
	top := q.Levels - 1
	if top <= 0 || q.Max <= q.Min {
		return 0
	}
	v := math.Round((x - q.Min) / (q.Max - q.Min) * float64(top))
	switch {
	case !(v > 0):
		return 0
	case v > float64(top):
		return top
	}
	return int(v)
}

// Clamp limits x to [-1, 1]. NaN becomes 0.
func Clamp(x float64) float64 {
	switch {
	case x != x:
		return 0
	case x > 1:
		return 1
	case x < -1:
		return -1
	}
	return x
}

// NoOp discards every sample.
type NoOp struct{}

func (NoOp) Write(int, float64) error { return nil }
func (NoOp) Close() error             { return nil }

// Multi fans every sample out to several sinks. Close closes all of them and
// returns the first error.
type Multi []Sink

func (m Multi) Write(index int, value float64) error {
	for _, s := range m {
		if err := s.Write(index, value); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CSV writes "index,value" records, the offline analysis format.
type CSV struct {
	w      *bufio.Writer
	closer io.Closer
	buf    []byte
	closed bool
}

// CreateCSV creates path and writes a header line.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV output: %w", err)
	}
	c := NewCSV(f)
	c.closer = f
	if _, err := c.w.WriteString("index,value\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return c, nil
}

// NewCSV writes records to w without a header. The caller keeps ownership
// of w: Close flushes but never closes it.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: bufio.NewWriter(w), buf: make([]byte, 0, 48)}
}

func (c *CSV) Write(index int, value float64) error {
	if c.closed {
		return ErrClosed
	}
	c.buf = strconv.AppendInt(c.buf[:0], int64(index), 10)
	c.buf = append(c.buf, ',')
	c.buf = strconv.AppendFloat(c.buf, value, 'g', -1, 64)
	c.buf = append(c.buf, '\n')
	_, err := c.w.Write(c.buf)
	return err
}

// Close flushes buffered records.
func (c *CSV) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.w.Flush()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Transport forwards each sample as a transport.Sample message.
type Transport struct {
	t transport.Transport
}

// NewTransport wraps t. Closing the sink closes t.
func NewTransport(t transport.Transport) *Transport {
	return &Transport{t: t}
}

func (s *Transport) Write(index int, value float64) error {
	return s.t.Send(transport.Sample{Type: transport.TypeSample, Index: index, Value: value})
}

func (s *Transport) Close() error { return s.t.Close() }

var (
	_ Sink = NoOp{}
	_ Sink = Multi(nil)
	_ Sink = (*CSV)(nil)
	_ Sink = (*Transport)(nil)
)
