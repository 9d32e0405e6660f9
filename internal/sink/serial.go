// SPDX-License-Identifier: MIT
package sink

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tarm/serial"
)

// SerialMode selects what a Serial sink puts on the wire.
type SerialMode int

const (
	// SerialBinary writes one quantised byte per sample, the 8-bit DAC
	// stream a microcontroller can replay directly.
	SerialBinary SerialMode = iota
	// SerialText writes "index,value" lines for a serial plotter.
	SerialText
)

// SerialConfig describes a serial output port.
type SerialConfig struct {
	Port      string
	Baud      int
	Mode      SerialMode
	Quantizer Quantizer
}

// DefaultBaud is used when SerialConfig.Baud is zero.
const DefaultBaud = 115200

// Serial streams samples to a serial port.
type Serial struct {
	conn   io.WriteCloser
	mode   SerialMode
	q      Quantizer
	buf    []byte
	closed bool
}

// OpenSerial opens cfg.Port.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:         cfg.Port,
		Baud:         cfg.Baud,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	logger.Infof("Serial output on %s at %d baud", cfg.Port, cfg.Baud)
	return NewSerial(port, cfg.Mode, cfg.Quantizer), nil
}

// NewSerial writes to an already open connection. A zero Quantizer means
// Unit8.
func NewSerial(conn io.WriteCloser, mode SerialMode, q Quantizer) *Serial {
	if q.Levels == 0 {
		q = Unit8
	}
	return &Serial{conn: conn, mode: mode, q: q, buf: make([]byte, 0, 48)}
}

func (s *Serial) Write(index int, value float64) error {
	if s.closed {
		return ErrClosed
	}
	s.buf = s.buf[:0]
	switch s.mode {
	case SerialText:
		s.buf = strconv.AppendInt(s.buf, int64(index), 10)
		s.buf = append(s.buf, ',')
		s.buf = strconv.AppendFloat(s.buf, value, 'f', 4, 64)
		s.buf = append(s.buf, '\n')
	default:
		s.buf = append(s.buf, byte(s.q.Quantize(value)))
	}
	_, err := s.conn.Write(s.buf)
	return err
}

func (s *Serial) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
