// SPDX-License-Identifier: MIT
/*
Package audio runs the live engine: a PortAudio duplex stream filters every
input sample, optionally plays the result back, and hands it to a consumer
goroutine through a fixed ring buffer.

Thread Safety:
  - The PortAudio callback is the only producer and the consumer goroutine the
    only reader of the sample ring; the engine mutex guards the ring.
  - The callback uses pre-allocated buffers only.
  - Gate and recording state are atomic so control calls never block audio.
*/
package audio

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"pulse/internal/analysis"
	"pulse/internal/config"
	"pulse/internal/fft"
	"pulse/internal/filter"
	applog "pulse/internal/log"
	"pulse/internal/ring"
	"pulse/internal/sink"
	"pulse/internal/stream"
	"pulse/internal/transport"
	"pulse/internal/transport/udp"
)

var logger = applog.Named("Engine")

// ErrRunning is returned by Start when the stream is already open.
var ErrRunning = errors.New("engine already running")

// ringBlocks is the sample ring's capacity in analysis blocks.
const ringBlocks = 4

// Stats is a snapshot of the engine counters.
type Stats struct {
	Samples uint64  // samples consumed
	Dropped uint64  // samples overwritten before the consumer read them
	Blocks  uint64  // complete analysis blocks
	Gated   uint64  // blocks skipped by the noise gate
	Peak    float64 // peak |x| of the last block
	BPM     float64
	Beats   int
}

// Option customises an Engine.
type Option func(*Engine)

// WithTransport publishes spectra, bands and beats on t instead of the
// transport selected by the configuration. The engine closes t.
func WithTransport(t transport.Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithSinks adds sinks that receive every filtered sample. The engine closes
// them.
func WithSinks(sinks ...sink.Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

type Engine struct {
	config *config.Config

	// Audio devices and stream.
	inputDevice   *portaudio.DeviceInfo
	outputDevice  *portaudio.DeviceInfo
	inputLatency  time.Duration
	outputLatency time.Duration
	stream        *portaudio.Stream
	inChannels    int
	outChannels   int

	// Producer side, touched only by the callback.
	filter   filter.Stepper
	filtered []float64

	// Shared ring between callback and consumer.
	mu      sync.Mutex
	samples *ring.Buffer[float64]
	ready   chan struct{}
	dropped atomic.Uint64

	// Consumer side.
	pending   []float64
	block     []float64
	blockFill int
	index     int
	spectrum  analysis.Chain
	beat      *analysis.BeatDetector
	sinks     []sink.Sink
	done      chan struct{}
	wg        sync.WaitGroup
	running   bool

	// Outputs.
	transport transport.Transport
	fft       *analysis.FFTProcessor
	udp       *udp.UDPPublisher
	udpSender *udp.UDPSender

	// Noise gate.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint64 // math.Float64bits of the threshold

	// Recording.
	isRecording atomic.Bool
	recMu       sync.Mutex
	recorder    *sink.WAV

	statsMu sync.Mutex
	stats   Stats
}

// NewEngine resolves the configured devices and builds the processing
// pipeline. PortAudio must be initialised.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	e, err := newEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}

	e.inputDevice, err = InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		e.Close()
		return nil, err
	}
	if cfg.Audio.LowLatency {
		e.inputLatency = e.inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = e.inputDevice.DefaultHighInputLatency
	}

	if cfg.Audio.Passthrough {
		e.outputDevice, err = OutputDevice(cfg.Audio.OutputDevice)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.outChannels = min(2, e.outputDevice.MaxOutputChannels)
		if cfg.Audio.LowLatency {
			e.outputLatency = e.outputDevice.DefaultLowOutputLatency
		} else {
			e.outputLatency = e.outputDevice.DefaultHighOutputLatency
		}
	}

	logger.Infof("Input %q, %d channel(s) at %.0f Hz, %d frames per buffer",
		e.inputDevice.Name, e.inChannels, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	return e, nil
}

// newEngine builds everything except the PortAudio devices.
func newEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		config:     cfg,
		inChannels: cfg.Audio.InputChannels,
		filtered:   make([]float64, cfg.Audio.FramesPerBuffer),
		ready:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(e)
	}

	e.gateEnabled.Store(cfg.Audio.GateThreshold > 0)
	e.SetGateThreshold(cfg.Audio.GateThreshold)

	if err := e.buildFilter(); err != nil {
		return nil, err
	}

	if e.transport == nil {
		if cfg.Transport.WebSocketEnabled {
			e.transport = transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr)
		} else {
			e.transport = transport.NewLoggingTransport()
		}
	}

	blockSize := cfg.Audio.FramesPerBuffer
	if cfg.Spectrum.Enabled {
		blockSize = cfg.Spectrum.Size
		if err := e.buildSpectrum(); err != nil {
			e.Close()
			return nil, err
		}
	}
	e.block = make([]float64, blockSize)

	capacity := ringBlocks * max(blockSize, cfg.Audio.FramesPerBuffer)
	e.samples = ring.MustNew[float64](capacity)
	e.pending = make([]float64, 0, capacity)

	if cfg.Beat.Enabled {
		e.beat = analysis.NewBeatDetector(cfg.Beat.Threshold, cfg.Audio.SampleRate,
			analysis.WithRefractory(cfg.Beat.Refractory),
			analysis.WithTransport(e.transport))
	}

	if cfg.Serial.Port != "" {
		mode := sink.SerialBinary
		if cfg.Serial.Mode == "text" {
			mode = sink.SerialText
		}
		s, err := sink.OpenSerial(sink.SerialConfig{Port: cfg.Serial.Port, Baud: cfg.Serial.Baud, Mode: mode})
		if err != nil {
			e.Close()
			return nil, err
		}
		e.sinks = append(e.sinks, s)
	}

	return e, nil
}

func (e *Engine) buildFilter() error {
	name := e.config.Filter.Preset
	if name == "" {
		e.filter = stream.Identity{}
		return nil
	}

	presets, err := e.config.Presets()
	if err != nil {
		return err
	}
	p, err := presets.Lookup(name)
	if err != nil {
		return err
	}
	if p.SampleRate > 0 && p.SampleRate != e.config.Audio.SampleRate {
		logger.Warnf("Preset %q was designed for %.0f Hz, stream runs at %.0f Hz", name, p.SampleRate, e.config.Audio.SampleRate)
	}
	e.filter, err = presets.Build(name)
	if err != nil {
		return err
	}
	logger.Infof("Filter preset %q (%s)", name, p.Order())
	return nil
}

func (e *Engine) buildSpectrum() error {
	sc := e.config.Spectrum
	alg, err := fft.ParseAlgorithm(sc.Algorithm)
	if err != nil {
		return err
	}
	window, err := analysis.ParseWindowFunc(sc.Window)
	if err != nil {
		return err
	}

	interval := e.config.Transport.WebSocketInterval
	e.fft, err = analysis.NewFFTProcessor(analysis.FFTConfig{
		Size:       sc.Size,
		SampleRate: e.config.Audio.SampleRate,
		Window:     window,
		Algorithm:  alg,
		Smoothing:  sc.Smoothing,
		Transport:  transport.NewThrottled(e.transport, interval),
	})
	if err != nil {
		return err
	}
	e.spectrum = analysis.Chain{e.fft}

	if sc.Bands {
		bands, err := analysis.NewBandEnergyProcessor(transport.NewThrottled(e.transport, interval), e.fft, analysis.PulseBands)
		if err != nil {
			return err
		}
		e.spectrum = append(e.spectrum, bands)
	}

	if tc := e.config.Transport; tc.UDPEnabled {
		e.udpSender, err = udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		e.udp, err = udp.NewUDPPublisher(tc.UDPSendInterval, e.udpSender, e.fft)
		if err != nil {
			return err
		}
	}
	return nil
}

// Start opens the PortAudio stream and the consumer goroutine.
func (e *Engine) Start() error {
	if e.running {
		return ErrRunning
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.inChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: e.outChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	var (
		s   *portaudio.Stream
		err error
	)
	if e.outChannels > 0 {
		s, err = portaudio.OpenStream(params, e.processCallback)
	} else {
		s, err = portaudio.OpenStream(params, func(in []float32) { e.processCallback(in, nil) })
	}
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	e.startConsumer()
	if err := s.Start(); err != nil {
		s.Close()
		e.stopConsumer()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	e.stream = s

	if e.config.Recording.Enabled {
		if err := e.StartRecording(e.recordingPath()); err != nil {
			logger.Errorf("Recording disabled: %v", err)
		}
	}
	logger.Infof("Stream started")
	return nil
}

func (e *Engine) startConsumer() {
	e.done = make(chan struct{})
	e.running = true
	e.wg.Add(1)
	go e.consume()
	if e.udp != nil {
		e.udp.Start()
	}
}

func (e *Engine) stopConsumer() {
	if !e.running {
		return
	}
	if e.udp != nil {
		e.udp.Stop()
	}
	close(e.done)
	e.wg.Wait()
	e.running = false
}

// Stop closes the stream and waits for the consumer to drain the ring.
func (e *Engine) Stop() error {
	var err error
	if e.stream != nil {
		if serr := e.stream.Stop(); serr != nil {
			err = fmt.Errorf("failed to stop stream: %w", serr)
		}
		if cerr := e.stream.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close stream: %w", cerr)
		}
		e.stream = nil
	}
	e.stopConsumer()
	return err
}

// processCallback is the PortAudio hot path. It mixes each input frame to
// mono, filters it, writes it to the output when passthrough is on and
// enqueues it for the consumer. No allocations happen here.
func (e *Engine) processCallback(in, out []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ch := e.inChannels
	frames := min(len(in)/ch, len(e.filtered))
	y := e.filtered[:frames]

	inv := 1 / float64(ch)
	for i := range y {
		var acc float64
		for _, s := range in[i*ch : (i+1)*ch] {
			acc += float64(s)
		}
		y[i] = e.filter.Step(acc * inv)
	}

	if out != nil {
		oc := e.outChannels
		for i := range len(out) / oc {
			var v float32
			if i < frames {
				v = float32(sink.Clamp(y[i]))
			}
			for c := range oc {
				out[i*oc+c] = v
			}
		}
	}

	e.mu.Lock()
	for _, v := range y {
		if e.samples.Full() {
			e.dropped.Add(1)
		}
		e.samples.Enqueue(v)
	}
	e.mu.Unlock()

	select {
	case e.ready <- struct{}{}:
	default:
	}
}

func (e *Engine) consume() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			e.drain()
			return
		case <-e.ready:
			e.drain()
		}
	}
}

// drain moves everything queued so far out of the ring and through the
// sinks and analysis.
func (e *Engine) drain() {
	e.mu.Lock()
	e.pending = e.pending[:0]
	for {
		v, ok := e.samples.Dequeue()
		if !ok {
			break
		}
		e.pending = append(e.pending, v)
	}
	e.mu.Unlock()

	if len(e.pending) == 0 {
		return
	}

	e.recMu.Lock()
	for _, v := range e.pending {
		e.consumeSample(v)
	}
	e.recMu.Unlock()

	e.statsMu.Lock()
	e.stats.Samples += uint64(len(e.pending))
	e.stats.Dropped = e.dropped.Load()
	if e.beat != nil {
		e.stats.BPM = e.beat.BPM()
		e.stats.Beats = e.beat.Beats()
	}
	e.statsMu.Unlock()
}

// consumeSample runs with recMu held.
func (e *Engine) consumeSample(v float64) {
	idx := e.index
	e.index++

	if e.recorder != nil {
		if err := e.recorder.Write(idx, v); err != nil {
			logger.Errorf("Error writing to WAV file: %v", err)
		}
	}
	for _, s := range e.sinks {
		if err := s.Write(idx, v); err != nil {
			logger.Errorf("Sink write failed at sample %d: %v", idx, err)
		}
	}
	if e.beat != nil {
		e.beat.Step(v)
	}

	e.block[e.blockFill] = v
	e.blockFill++
	if e.blockFill < len(e.block) {
		return
	}
	e.blockFill = 0
	e.processBlock(e.block)
}

func (e *Engine) processBlock(block []float64) {
	peak := peakAbs(block)
	open := !e.gateEnabled.Load() || peak > e.GetGateThreshold()
	if open && e.spectrum != nil {
		e.spectrum.Process(block)
	}

	e.statsMu.Lock()
	e.stats.Blocks++
	if !open {
		e.stats.Gated++
	}
	e.stats.Peak = peak
	e.statsMu.Unlock()
}

func peakAbs(block []float64) float64 {
	var peak float64
	for _, v := range block {
		peak = max(peak, math.Abs(v))
	}
	return peak
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Spectrum returns the FFT processor, or nil when analysis is disabled.
func (e *Engine) Spectrum() *analysis.FFTProcessor { return e.fft }

// SampleRate returns the stream's sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.config.Audio.SampleRate }
