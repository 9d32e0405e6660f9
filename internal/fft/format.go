// SPDX-License-Identifier: MIT
package fft

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"pulse/pkg/bitint"
)

// FormatComplex renders c as "re + imi" or "re - imi" with two decimals.
func FormatComplex(c complex128) string {
	sign := '+'
	if imag(c) < 0 {
		sign = '-'
	}
	return fmt.Sprintf("%.2f %c %.2fi", real(c), sign, math.Abs(imag(c)))
}

func fixed2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// WriteText writes one aligned line per bin: index, frequency, value,
// magnitude and phase.
func WriteText(w io.Writer, s Spectrum, sampleRate float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%5s  %10s  %-22s  %10s  %8s\n", "bin", "freq (Hz)", "value", "magnitude", "phase")
	for k, v := range s {
		fmt.Fprintf(bw, "%5d  %10.2f  %-22s  %10.4f  %8.4f\n",
			k, s.Freq(k, sampleRate), FormatComplex(v), math.Hypot(real(v), imag(v)), math.Atan2(imag(v), real(v)))
	}
	return bw.Flush()
}

// WriteCSV writes a "complex,magnitude,phase (radian)" table, one row per
// bin, with two decimals.
func WriteCSV(w io.Writer, s Spectrum) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"complex", "magnitude", "phase (radian)"}); err != nil {
		return err
	}
	mags := s.Magnitudes(nil)
	phases := s.Phases(nil)
	for k, v := range s {
		if err := cw.Write([]string{FormatComplex(v), fixed2(mags[k]), fixed2(phases[k])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the bins as an indented JSON array of FormatComplex
// strings.
func WriteJSON(w io.Writer, s Spectrum) error {
	strs := make([]string, len(s))
	for k, v := range s {
		strs[k] = FormatComplex(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(strs)
}

// WriteSingleSidedCSV writes "frequency,amplitude" rows for the one-sided
// amplitude spectrum.
func WriteSingleSidedCSV(w io.Writer, s Spectrum, sampleRate float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"frequency", "amplitude"}); err != nil {
		return err
	}
	freqs, amps := s.SingleSided(sampleRate)
	for i := range freqs {
		row := []string{strconv.FormatFloat(freqs[i], 'g', -1, 64), strconv.FormatFloat(amps[i], 'g', 8, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReversalTable writes "index    reversed" lines for an n point
// bit-reversal permutation.
func WriteReversalTable(w io.Writer, n int) error {
	perm, err := bitint.Permutation(n)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for i, r := range perm {
		fmt.Fprintf(bw, "%d    %d\n", i, r)
	}
	return bw.Flush()
}
