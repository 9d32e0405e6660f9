// SPDX-License-Identifier: MIT
package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Only one oto context may exist per process.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoRate    int
	otoErr     error
)

func initOto(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoContext, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
		})
		if otoErr == nil {
			<-ready
			otoRate = sampleRate
		}
	})
	if otoErr != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", otoErr)
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("audio output already running at %d Hz, cannot play %d Hz", otoRate, sampleRate)
	}
	return otoContext, nil
}

// pcmWriter packs clamped samples into float32 little-endian frames and
// hands them to w in fixed-size chunks.
type pcmWriter struct {
	w   io.Writer
	buf []byte
}

func newPCMWriter(w io.Writer, frames int) *pcmWriter {
	return &pcmWriter{w: w, buf: make([]byte, 0, 4*frames)}
}

func (p *pcmWriter) put(x float64) error {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, math.Float32bits(float32(Clamp(x))))
	if len(p.buf) == cap(p.buf) {
		return p.flush()
	}
	return nil
}

func (p *pcmWriter) flush() error {
	if len(p.buf) == 0 {
		return nil
	}
	_, err := p.w.Write(p.buf)
	p.buf = p.buf[:0]
	return err
}

// Playback plays samples on the default output device. Write blocks once
// the device buffer is full, so an offline run plays back in real time.
type Playback struct {
	player *oto.Player
	pw     *io.PipeWriter
	pcm    *pcmWriter
	closed bool
}

// playbackChunk is the number of frames handed to the device per write.
const playbackChunk = 512

// NewPlayback starts a mono player at sampleRate.
func NewPlayback(sampleRate int, volume float64) (*Playback, error) {
	ctx, err := initOto(sampleRate)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	player.SetVolume(volume)
	player.Play()

	logger.Infof("Playing back at %d Hz", sampleRate)
	return &Playback{player: player, pw: pw, pcm: newPCMWriter(pw, playbackChunk)}, nil
}

func (p *Playback) Write(_ int, value float64) error {
	if p.closed {
		return ErrClosed
	}
	return p.pcm.put(value)
}

// Close flushes the last chunk, waits for the device to drain and releases
// the player.
func (p *Playback) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.pcm.flush()
	p.pw.Close()
	for p.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	if cerr := p.player.Close(); err == nil {
		err = cerr
	}
	return err
}

var (
	_ Sink = (*WAV)(nil)
	_ Sink = (*Serial)(nil)
	_ Sink = (*Playback)(nil)
)
