// SPDX-License-Identifier: MIT
package sink

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth    = 16
	wavAudioFormat = 1 // integer PCM
	wavFlushFrames = 4096
)

// WAV records mono 16-bit PCM. Samples are clamped to [-1, 1] before
// conversion.
type WAV struct {
	closer  io.Closer
	encoder *wav.Encoder
	buffer  *audio.IntBuffer
	frames  int
	closed  bool
}

// CreateWAV creates path for a recording at sampleRate.
func CreateWAV(path string, sampleRate int) (*WAV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV output: %w", err)
	}
	w, err := NewWAV(f, sampleRate)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	logger.Infof("Recording %d Hz mono to %s", sampleRate, path)
	return w, nil
}

// NewWAV encodes into out. The header is finalised on Close, which is why out
// must be seekable.
func NewWAV(out io.WriteSeeker, sampleRate int) (*WAV, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid WAV sample rate %d", sampleRate)
	}
	return &WAV{
		encoder: wav.NewEncoder(out, sampleRate, wavBitDepth, 1, wavAudioFormat),
		buffer: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, 0, wavFlushFrames),
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

func (w *WAV) Write(_ int, value float64) error {
	if w.closed {
		return ErrClosed
	}
	w.buffer.Data = append(w.buffer.Data, int(Clamp(value)*32767))
	if len(w.buffer.Data) == cap(w.buffer.Data) {
		return w.flush()
	}
	return nil
}

// WriteBlock appends a block of samples.
func (w *WAV) WriteBlock(samples []float64) error {
	for _, v := range samples {
		if err := w.Write(0, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *WAV) flush() error {
	if len(w.buffer.Data) == 0 {
		return nil
	}
	if err := w.encoder.Write(w.buffer); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	w.frames += len(w.buffer.Data)
	w.buffer.Data = w.buffer.Data[:0]
	return nil
}

// Frames returns how many samples have been handed to the encoder.
func (w *WAV) Frames() int { return w.frames + len(w.buffer.Data) }

// Close flushes pending samples and writes the final header.
func (w *WAV) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.flush()
	if cerr := w.encoder.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to finalise WAV: %w", cerr)
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	logger.Debugf("WAV closed after %d frames", w.frames)
	return err
}
