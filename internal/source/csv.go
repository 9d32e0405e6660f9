// SPDX-License-Identifier: MIT
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// csvDecoder reads one sample per record from the last column, so both the
// "index,value" export format and bare value-per-line traces work. A first
// record that does not parse is treated as a header.
type csvDecoder struct {
	r    *csv.Reader
	line int
	out  []float64
}

func newCSVDecoder(r io.Reader) *csvDecoder {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	cr.ReuseRecord = true
	return &csvDecoder{r: cr, out: make([]float64, 0, 1)}
}

func (d *csvDecoder) read() ([]float64, error) {
	for {
		rec, err := d.r.Read()
		if err != nil {
			return nil, err
		}
		d.line++

		field := strings.TrimSpace(rec[len(rec)-1])
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			if d.line == 1 {
				continue
			}
			line, _ := d.r.FieldPos(len(rec) - 1)
			return nil, fmt.Errorf("csv line %d: %w", line, errors.Unwrap(err))
		}
		d.out = append(d.out[:0], v)
		return d.out, nil
	}
}

func (d *csvDecoder) sampleRate() float64 { return 0 }
func (d *csvDecoder) channels() int       { return 1 }

// NewCSV reads a CSV trace from r.
func NewCSV(r io.Reader) *File {
	return &File{dec: newCSVDecoder(r), format: "csv"}
}
