// SPDX-License-Identifier: MIT
package analysis

import (
	"time"

	"pulse/internal/transport"
)

// DefaultRefractory is the shortest accepted gap between two beats
// (240 bpm).
const DefaultRefractory = 250 * time.Millisecond

// BeatDetector finds beats in a pulse waveform by rising threshold
// crossings: a beat is a sample above the threshold whose predecessor was
// below it. The rate is derived from the sample count between beats, so it
// only depends on the nominal sample rate, never on wall time.
type BeatDetector struct {
	threshold  float64
	sampleRate float64
	refractory int // samples
	transport  transport.Transport

	prev      float64
	primed    bool
	n         int // samples seen
	lastBeat  int // sample index of the previous beat, -1 before the first
	bpm       float64
	beatCount int
}

// BeatOption configures a BeatDetector.
type BeatOption func(*BeatDetector)

// WithRefractory sets the minimum time between beats.
func WithRefractory(d time.Duration) BeatOption {
	return func(b *BeatDetector) {
		b.refractory = int(d.Seconds() * b.sampleRate)
	}
}

// WithTransport sends a BeatEvent for every detected beat.
func WithTransport(t transport.Transport) BeatOption {
	return func(b *BeatDetector) { b.transport = t }
}

// NewBeatDetector creates a detector for samples arriving at sampleRate.
func NewBeatDetector(threshold, sampleRate float64, opts ...BeatOption) *BeatDetector {
	b := &BeatDetector{
		threshold:  threshold,
		sampleRate: sampleRate,
		lastBeat:   -1,
	}
	b.refractory = int(DefaultRefractory.Seconds() * sampleRate)
	for _, o := range opts {
		o(b)
	}
	logger.Infof("Initializing BeatDetector (Threshold: %.2f, SampleRate: %.1f Hz)", threshold, sampleRate)
	return b
}

// Step consumes one sample. It reports whether the sample is a beat and the
// rate implied by the gap to the previous beat; the first beat has no rate
// and reports 0.
func (b *BeatDetector) Step(x float64) (bpm float64, beat bool) {
	idx := b.n
	b.n++

	crossed := b.primed && b.prev < b.threshold && x > b.threshold
	b.prev = x
	b.primed = true
	if !crossed {
		return 0, false
	}

	if b.lastBeat >= 0 {
		gap := idx - b.lastBeat
		if gap < b.refractory {
			return 0, false
		}
		b.bpm = 60 * b.sampleRate / float64(gap)
	}
	b.lastBeat = idx
	b.beatCount++

	if b.transport != nil {
		ev := transport.BeatEvent{Type: transport.TypeBeat, BPM: b.bpm, At: float64(idx) / b.sampleRate}
		if err := b.transport.Send(ev); err != nil {
			logger.Warnf("BeatDetector: error sending beat event: %v", err)
		}
	}
	return b.bpm, true
}

// Process runs Step over a block.
func (b *BeatDetector) Process(block []float64) {
	for _, x := range block {
		b.Step(x)
	}
}

// BPM returns the most recent rate, 0 until two beats have been seen.
func (b *BeatDetector) BPM() float64 { return b.bpm }

// Beats returns the number of detected beats.
func (b *BeatDetector) Beats() int { return b.beatCount }

// Reset forgets all history.
func (b *BeatDetector) Reset() {
	b.prev, b.primed = 0, false
	b.n, b.lastBeat = 0, -1
	b.bpm, b.beatCount = 0, 0
}

var _ BlockProcessor = (*BeatDetector)(nil)
