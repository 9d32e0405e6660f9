// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"pulse/internal/fft"
	"pulse/internal/transport"
	"pulse/pkg/bitint"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

var windowNames = [...]string{
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
	return windowNames[w]
}

// ErrMagnitudeLength is returned by GetMagnitudesInto for a wrongly sized
// destination.
var ErrMagnitudeLength = errors.New("destination length does not match spectrum")

// FFTConfig configures an FFTProcessor.
type FFTConfig struct {
	Size       int           // points per transform, power of two
	SampleRate float64       // Hz
	Window     WindowFunc    // analysis window
	Algorithm  fft.Algorithm // transform backend
	// Smoothing in [0, 1) blends each new spectrum with the previous one:
	// m = s·previous + (1-s)·current. Zero disables it.
	Smoothing float64
	// Transport, when set, receives a SpectrumFrame after every block.
	Transport transport.Transport
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed input signal.
	complex   []complex128 // Full-length complex buffer for the radix-2 backends.
	realOut   []complex128 // Half spectrum from the gonum real FFT.
	bins      []int        // Bins evaluated by the naive DFT.
	magnitude []float64    // Latest single-sided amplitude spectrum.
	window    []float64    // Pre-calculated window coefficients.
	mu        sync.RWMutex // Protects magnitude.
}

// FFTProcessor windows each block, transforms it with the configured backend
// and keeps the single-sided amplitude spectrum of the most recent block.
// Readers use the FFTResultProvider methods from other goroutines.
type FFTProcessor struct {
	cfg       FFTConfig
	plan      *fft.Plan
	realFFT   *fourier.FFT
	scale     float64 // 1/Σw, so a full-scale sinusoid reads as its amplitude
	seq       uint64
	workspace fftWorkspace
}

// Compile-time checks for interface implementations.
var (
	_ BlockProcessor    = (*FFTProcessor)(nil)
	_ FFTResultProvider = (*FFTProcessor)(nil)
	_ ClosableProcessor = (*FFTProcessor)(nil)
)

// NewFFTProcessor validates cfg and pre-allocates every buffer the chosen
// backend needs.
func NewFFTProcessor(cfg FFTConfig) (*FFTProcessor, error) {
	if !bitint.IsPowerOfTwo(cfg.Size) {
		return nil, fmt.Errorf("%w: fft size %d", fft.ErrNotPowerOfTwo, cfg.Size)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", cfg.SampleRate)
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		return nil, fmt.Errorf("smoothing must be in [0, 1), got %g", cfg.Smoothing)
	}

	half := cfg.Size/2 + 1
	p := &FFTProcessor{
		cfg: cfg,
		workspace: fftWorkspace{
			input:     make([]float64, cfg.Size),
			magnitude: make([]float64, half),
			window:    make([]float64, cfg.Size),
		},
	}
	applyWindow(p.workspace.window, cfg.Window)
	p.scale = 1 / floats.Sum(p.workspace.window)

	switch cfg.Algorithm {
	case fft.Gonum:
		p.realFFT = fourier.NewFFT(cfg.Size)
		p.workspace.realOut = make([]complex128, half)
	case fft.Iterative:
		plan, err := fft.NewPlan(cfg.Size)
		if err != nil {
			return nil, err
		}
		p.plan = plan
		p.workspace.complex = make([]complex128, cfg.Size)
	case fft.Recursive:
		p.workspace.complex = make([]complex128, cfg.Size)
	case fft.Naive:
		p.workspace.complex = make([]complex128, cfg.Size)
		p.workspace.bins = make([]int, half)
		for i := range p.workspace.bins {
			p.workspace.bins[i] = i
		}
	default:
		return nil, fmt.Errorf("%w: %d", fft.ErrUnknownAlgorithm, int(cfg.Algorithm))
	}

	logger.Infof("Initializing FFTProcessor (Size: %d, SampleRate: %.1f Hz, Window: %v, Algorithm: %v)",
		cfg.Size, cfg.SampleRate, cfg.Window, cfg.Algorithm)
	return p, nil
}

// Process windows block (zero-padded or truncated to the FFT size),
// transforms it and publishes the new spectrum. With the iterative and gonum
// backends it does not allocate unless a transport is attached.
func (p *FFTProcessor) Process(block []float64) {
	ws := &p.workspace
	n := p.cfg.Size

	for i := range n {
		if i < len(block) {
			ws.input[i] = block[i] * ws.window[i]
		} else {
			ws.input[i] = 0
		}
	}

	var half []complex128
	switch p.cfg.Algorithm {
	case fft.Gonum:
		half = p.realFFT.Coefficients(ws.realOut, ws.input)
	case fft.Iterative:
		p.fillComplex()
		if err := p.plan.Transform(ws.complex, ws.complex); err != nil {
			logger.Errorf("Iterative FFT failed: %v", err)
			return
		}
		half = ws.complex[:n/2+1]
	case fft.Recursive:
		p.fillComplex()
		s, err := fft.RecursiveFFT(ws.complex)
		if err != nil {
			logger.Errorf("Recursive FFT failed: %v", err)
			return
		}
		half = s[:n/2+1]
	case fft.Naive:
		p.fillComplex()
		s, err := fft.DFT(ws.complex, ws.bins)
		if err != nil {
			logger.Errorf("DFT failed: %v", err)
			return
		}
		half = s
	}

	smooth := p.cfg.Smoothing
	if p.seq == 0 {
		smooth = 0
	}

	ws.mu.Lock()
	for i, c := range half {
		amp := cmplx.Abs(c) * p.scale
		if i != 0 && i != n/2 {
			amp *= 2
		}
		ws.magnitude[i] = smooth*ws.magnitude[i] + (1-smooth)*amp
	}
	p.seq++
	ws.mu.Unlock()

	if p.cfg.Transport != nil {
		frame := transport.SpectrumFrame{
			Type:       transport.TypeSpectrum,
			Seq:        p.seq,
			SampleRate: p.cfg.SampleRate,
			BinWidth:   p.cfg.SampleRate / float64(n),
			Magnitudes: p.GetMagnitudes(),
		}
		if err := p.cfg.Transport.Send(frame); err != nil {
			logger.Debugf("Error sending spectrum: %v", err)
		}
	}
}

func (p *FFTProcessor) fillComplex() {
	for i, v := range p.workspace.input {
		p.workspace.complex[i] = complex(v, 0)
	}
}

// GetMagnitudes returns a copy of the latest amplitude spectrum (N/2+1 bins).
// It allocates; use GetMagnitudesInto on hot paths.
func (p *FFTProcessor) GetMagnitudes() []float64 {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	magCopy := make([]float64, len(p.workspace.magnitude))
	copy(magCopy, p.workspace.magnitude)
	return magCopy
}

// GetMagnitudesInto copies the latest spectrum into dest, which must have
// exactly N/2+1 elements.
func (p *FFTProcessor) GetMagnitudesInto(dest []float64) error {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	if len(dest) != len(p.workspace.magnitude) {
		return fmt.Errorf("%w: got %d, need %d", ErrMagnitudeLength, len(dest), len(p.workspace.magnitude))
	}
	copy(dest, p.workspace.magnitude)
	return nil
}

// Frames returns how many blocks have been processed.
func (p *FFTProcessor) Frames() uint64 {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()
	return p.seq
}

// GetFrequencyForBin returns the centre frequency (Hz) of binIndex, or 0 for
// bins outside the single-sided spectrum.
func (p *FFTProcessor) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.magnitude) {
		return 0.0
	}
	return float64(binIndex) * (p.cfg.SampleRate / float64(p.cfg.Size))
}

// GetFFTSize returns the configured FFT size (number of points).
func (p *FFTProcessor) GetFFTSize() int {
	return p.cfg.Size
}

// GetSampleRate returns the configured sample rate (Hz).
func (p *FFTProcessor) GetSampleRate() float64 {
	return p.cfg.SampleRate
}

// Close releases nothing; the transport belongs to the caller.
func (p *FFTProcessor) Close() error {
	logger.Debugf("Closing FFTProcessor after %d frames", p.Frames())
	return nil
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// It returns Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "rect", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window functions scale in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
	default:
		logger.Warnf("Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}

// Window returns n coefficients of w.
func Window(w WindowFunc, n int) []float64 {
	coeffs := make([]float64, n)
	applyWindow(coeffs, w)
	return coeffs
}
