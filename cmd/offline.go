// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"pulse/internal/analysis"
	"pulse/internal/fft"
	"pulse/internal/filter"
	"pulse/internal/sink"
	"pulse/internal/source"
	"pulse/internal/stream"
)

// defaultGeneratorRate is used for generators when neither --rate nor the
// preset names a rate.
const defaultGeneratorRate = 1000

// defaultGeneratorSamples bounds a generator when --samples is unset.
const defaultGeneratorSamples = 5000

var errNoInput = errors.New("exactly one of --input or --generator is required")

// inputFlags select the signal for the offline commands.
type inputFlags struct {
	input     string
	generator string
	rate      float64
	samples   int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "",
		"Input file (.wav, .flac, .mp3, .ogg, .csv)")
	cmd.Flags().StringVarP(&f.generator, "generator", "g", "",
		"Synthetic input: sine:FREQ[:AMP], ecg, ecg-noisy, impulse or noise[:AMP]")
	cmd.Flags().Float64Var(&f.rate, "rate", 0,
		"Sample rate in Hz for generators and CSV input. Defaults to the preset's rate")
	cmd.Flags().IntVarP(&f.samples, "samples", "n", 0,
		"Number of samples to read. Zero reads a file to the end and a generator for 5000 samples")
}

// open returns the selected source, its sample rate and a close function.
// fallbackRate applies when --rate is unset and the input has no rate.
func (f *inputFlags) open(fallbackRate float64) (stream.Source, float64, func() error, error) {
	noop := func() error { return nil }
	if (f.input == "") == (f.generator == "") {
		return nil, 0, noop, errNoInput
	}

	rate := f.rate
	if rate <= 0 {
		rate = fallbackRate
	}

	var (
		src     stream.Source
		closeFn = noop
	)
	if f.input != "" {
		file, err := source.Open(f.input)
		if err != nil {
			return nil, 0, noop, err
		}
		src, closeFn = file, file.Close
		// CSV carries no rate of its own.
		if fr := file.SampleRate(); fr > 0 {
			rate = fr
		}
		if f.samples > 0 {
			src = stream.Limit(src, f.samples)
		}
	} else {
		gen, err := source.ParseGenerator(f.generator, rate)
		if err != nil {
			return nil, 0, noop, err
		}
		if f.samples < 0 {
			return nil, 0, noop, fmt.Errorf("--samples must not be negative for a generator")
		}
		n := f.samples
		if n == 0 {
			n = defaultGeneratorSamples
		}
		src = stream.Limit(gen, n)
	}
	return src, rate, closeFn, nil
}

func newFilterCommand(opts *options) *cobra.Command {
	var (
		in         inputFlags
		csvPath    string
		wavPath    string
		serialPort string
		serialBaud int
		serialMode string
		play       bool
		volume     float64
		realtime   bool
	)

	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter a file or generated signal offline",
		Long: "Runs every sample through the selected preset and writes the result to\n" +
			"CSV, WAV, a serial port or the speakers. Without an output flag the\n" +
			"samples are printed as CSV.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			presets, err := cfg.Presets()
			if err != nil {
				return err
			}

			var (
				f          filter.Stepper = stream.Identity{}
				presetRate float64
			)
			if name := cfg.Filter.Preset; name != "" {
				p, err := presets.Lookup(name)
				if err != nil {
					return err
				}
				if f, err = presets.Build(name); err != nil {
					return err
				}
				presetRate = p.SampleRate
			}

			fallbackRate := presetRate
			if fallbackRate <= 0 {
				fallbackRate = defaultGeneratorRate
			}
			src, rate, closeSrc, err := in.open(fallbackRate)
			if err != nil {
				return err
			}
			defer closeSrc()
			if rateMismatch(presetRate, rate) {
				logger.Warnf("Preset %s is designed for %.0f Hz, input runs at %.0f Hz",
					cfg.Filter.Preset, presetRate, rate)
			}

			var outputs sink.Multi
			defer func() {
				if cerr := outputs.Close(); cerr != nil {
					logger.Errorf("Error closing outputs: %v", cerr)
				}
			}()

			if csvPath == "-" || (csvPath == "" && wavPath == "" && serialPort == "" && !play) {
				outputs = append(outputs, sink.NewCSV(cmd.OutOrStdout()))
			} else if csvPath != "" {
				s, err := sink.CreateCSV(csvPath)
				if err != nil {
					return err
				}
				outputs = append(outputs, s)
			}
			if wavPath != "" {
				s, err := sink.CreateWAV(wavPath, int(math.Round(rate)))
				if err != nil {
					return err
				}
				outputs = append(outputs, s)
			}
			if serialPort != "" {
				mode, err := parseSerialMode(serialMode)
				if err != nil {
					return err
				}
				s, err := sink.OpenSerial(sink.SerialConfig{Port: serialPort, Baud: serialBaud, Mode: mode})
				if err != nil {
					return err
				}
				outputs = append(outputs, s)
			}
			if play {
				s, err := sink.NewPlayback(int(math.Round(rate)), volume)
				if err != nil {
					return err
				}
				outputs = append(outputs, s)
			}

			if realtime {
				src = stream.Paced(cmd.Context(), src, time.Duration(float64(time.Second)/rate))
			}

			start := time.Now()
			n, err := stream.Run(cmd.Context(), src, f, outputs)
			if err != nil {
				return err
			}
			logger.Infof("Filtered %d samples at %.0f Hz in %v", n, rate, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	in.register(filterCmd)
	filterCmd.Flags().StringVar(&csvPath, "csv", "", "Write index,value CSV to this file, '-' for stdout")
	filterCmd.Flags().StringVar(&wavPath, "wav", "", "Write a 16-bit WAV file")
	filterCmd.Flags().StringVar(&serialPort, "serial", "", "Stream to a serial port, e.g. /dev/ttyUSB0")
	filterCmd.Flags().IntVar(&serialBaud, "baud", sink.DefaultBaud, "Serial baud rate")
	filterCmd.Flags().StringVar(&serialMode, "serial-mode", "binary", "Serial format: binary (8-bit DAC codes) or text")
	filterCmd.Flags().BoolVar(&play, "play", false, "Play the filtered signal on the default output")
	filterCmd.Flags().Float64Var(&volume, "volume", 0.5, "Playback volume in [0, 1]")
	filterCmd.Flags().BoolVar(&realtime, "realtime", false, "Deliver samples at the signal's sample rate")
	return filterCmd
}

// rateMismatch reports whether a preset designed for presetRate is run at
// rate. Presets without a rate fit any input.
func rateMismatch(presetRate, rate float64) bool {
	return presetRate > 0 && rate != presetRate
}

func parseSerialMode(s string) (sink.SerialMode, error) {
	switch strings.ToLower(s) {
	case "binary", "":
		return sink.SerialBinary, nil
	case "text":
		return sink.SerialText, nil
	}
	return 0, fmt.Errorf("unknown serial mode %q: want binary or text", s)
}

func newSpectrumCommand() *cobra.Command {
	var (
		in          inputFlags
		algorithm   string
		size        int
		windowName  string
		format      string
		singleSided bool
	)

	spectrumCmd := &cobra.Command{
		Use:   "spectrum",
		Short: "Print the DFT of one block of a file or generated signal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := fft.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			win, err := analysis.ParseWindowFunc(windowName)
			if err != nil {
				return err
			}
			if size <= 0 {
				return fmt.Errorf("--size must be positive, got %d", size)
			}
			write, err := spectrumWriter(format, singleSided)
			if err != nil {
				return err
			}

			in.samples = size
			src, rate, closeSrc, err := in.open(defaultGeneratorRate)
			if err != nil {
				return err
			}
			defer closeSrc()

			block := make([]float64, size)
			n, err := stream.ReadBlock(src, block)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if n < size {
				logger.Infof("Read %d samples, zero-padding to %d", n, size)
			}
			for i, w := range analysis.Window(win, size) {
				block[i] *= w
			}

			spectrum, err := fft.Transform(alg, fft.ToComplex(block))
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), spectrum, rate)
		},
	}

	in.register(spectrumCmd)
	spectrumCmd.Flags().MarkHidden("samples")
	spectrumCmd.Flags().StringVarP(&algorithm, "algorithm", "a", "iterative",
		"Transform: naive, recursive, iterative or gonum")
	spectrumCmd.Flags().IntVar(&size, "size", 64, "Block length. The FFTs need a power of two")
	spectrumCmd.Flags().StringVarP(&windowName, "window", "w", "rectangular", "Analysis window")
	spectrumCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, csv or json")
	spectrumCmd.Flags().BoolVar(&singleSided, "single-sided", false,
		"Print the one-sided amplitude spectrum as frequency,amplitude CSV")
	return spectrumCmd
}

type spectrumWriteFunc func(w io.Writer, s fft.Spectrum, sampleRate float64) error

func spectrumWriter(format string, singleSided bool) (spectrumWriteFunc, error) {
	if singleSided {
		return fft.WriteSingleSidedCSV, nil
	}
	switch strings.ToLower(format) {
	case "text":
		return fft.WriteText, nil
	case "csv":
		return func(w io.Writer, s fft.Spectrum, _ float64) error { return fft.WriteCSV(w, s) }, nil
	case "json":
		return func(w io.Writer, s fft.Spectrum, _ float64) error { return fft.WriteJSON(w, s) }, nil
	}
	return nil, fmt.Errorf("unknown format %q: want text, csv or json", format)
}

func newRbitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rbit <size>",
		Short: "Print the bit-reversal permutation for a power-of-two size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[0], err)
			}
			return fft.WriteReversalTable(cmd.OutOrStdout(), n)
		},
	}
}

func newPresetsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the filter presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			presets, err := cfg.Presets()
			if err != nil {
				return err
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("NAME", "KIND", "ORDER", "RATE", "DESCRIPTION")
			for _, name := range presets.Names() {
				p, err := presets.Lookup(name)
				if err != nil {
					return err
				}
				rate := "any"
				if p.SampleRate > 0 {
					rate = strconv.FormatFloat(p.SampleRate, 'f', -1, 64) + " Hz"
				}
				t.Row(p.Name, string(p.Kind), p.Order(), rate, p.Description)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
}
