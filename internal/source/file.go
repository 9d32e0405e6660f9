// SPDX-License-Identifier: MIT

// Package source turns audio files, CSV traces and synthetic signals into
// mono sample streams for the filter pipeline.
package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	applog "pulse/internal/log"
)

var logger = applog.Named("Source")

var (
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrInvalidWAV is returned when a .wav file has no valid RIFF header.
	ErrInvalidWAV = errors.New("invalid WAV file")
)

// chunkFrames is how many frames each decoder produces per read.
const chunkFrames = 4096

// decoder yields successive chunks of mono samples in [-1, 1] and io.EOF at
// the end of the stream.
type decoder interface {
	read() ([]float64, error)
	sampleRate() float64
	channels() int
}

// File is a decoded audio file read one mono sample at a time. Multichannel
// audio is mixed down by averaging the channels.
type File struct {
	dec    decoder
	closer io.Closer
	chunk  []float64
	pos    int
	format string
}

// Open detects the format by file extension (.wav, .flac, .mp3, .ogg, .csv,
// .txt) and returns a File positioned at the first sample.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	file, err := NewFile(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.closer = f
	logger.Infof("Opened %s (%s, %.0f Hz, %d channels)", path, file.format, file.SampleRate(), file.Channels())
	return file, nil
}

// NewFile decodes r according to ext (with or without the leading dot). The
// caller keeps ownership of r.
func NewFile(r io.ReadSeeker, ext string) (*File, error) {
	format := strings.TrimPrefix(strings.ToLower(ext), ".")

	var (
		dec decoder
		err error
	)
	switch format {
	case "wav":
		dec, err = newWAVDecoder(r)
	case "flac":
		dec, err = newFLACDecoder(r)
	case "mp3":
		dec, err = newMP3Decoder(r)
	case "ogg":
		dec, err = newOGGDecoder(r)
	case "csv", "txt":
		dec = newCSVDecoder(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return &File{dec: dec, format: format}, nil
}

// Next returns the next mono sample, or io.EOF.
func (f *File) Next() (float64, error) {
	for f.pos >= len(f.chunk) {
		chunk, err := f.dec.read()
		if len(chunk) == 0 {
			if err == nil {
				continue
			}
			return 0, err
		}
		f.chunk, f.pos = chunk, 0
	}
	x := f.chunk[f.pos]
	f.pos++
	return x, nil
}

// SampleRate returns the file's sample rate in Hz, or 0 when the format does
// not carry one (CSV).
func (f *File) SampleRate() float64 { return f.dec.sampleRate() }

// Channels returns the channel count before mixdown.
func (f *File) Channels() int { return f.dec.channels() }

// Format returns the lower-case format name, e.g. "flac".
func (f *File) Format() string { return f.format }

// Close closes the underlying file when File owns it.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// mixdown averages interleaved frames into dst.
func mixdown(dst []float64, interleaved []float64, channels int) []float64 {
	dst = dst[:0]
	if channels <= 1 {
		return append(dst, interleaved...)
	}
	inv := 1 / float64(channels)
	for i := 0; i+channels <= len(interleaved); i += channels {
		var acc float64
		for _, v := range interleaved[i : i+channels] {
			acc += v
		}
		dst = append(dst, acc*inv)
	}
	return dst
}

// --- WAV ---

type wavDecoder struct {
	dec   *wav.Decoder
	buf   *audio.IntBuffer
	scale float64
	bias  int
	raw   []float64
	out   []float64
	rate  float64
	nch   int
}

func newWAVDecoder(r io.ReadSeeker) (*wavDecoder, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: WAV audio format %d, only integer PCM is supported", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	nch := int(dec.NumChans)
	d := &wavDecoder{
		dec:  dec,
		rate: float64(dec.SampleRate),
		nch:  nch,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: nch, SampleRate: int(dec.SampleRate)},
			Data:   make([]int, chunkFrames*nch),
		},
		scale: 1 / float64(int(1)<<(dec.BitDepth-1)),
	}
	// 8-bit WAV is unsigned.
	if dec.BitDepth == 8 {
		d.bias = 128
	}
	return d, nil
}

func (d *wavDecoder) read() ([]float64, error) {
	d.buf.Data = d.buf.Data[:cap(d.buf.Data)]
	n, err := d.dec.PCMBuffer(d.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	d.raw = d.raw[:0]
	for _, v := range d.buf.Data[:n] {
		d.raw = append(d.raw, float64(v-d.bias)*d.scale)
	}
	d.out = mixdown(d.out, d.raw, d.nch)
	return d.out, nil
}

func (d *wavDecoder) sampleRate() float64 { return d.rate }
func (d *wavDecoder) channels() int       { return d.nch }

// --- FLAC ---

type flacDecoder struct {
	stream *flac.Stream
	scale  float64
	raw    []float64
	out    []float64
}

func newFLACDecoder(r io.Reader) (*flacDecoder, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	return &flacDecoder{
		stream: stream,
		scale:  1 / float64(int64(1)<<(stream.Info.BitsPerSample-1)),
	}, nil
}

func (d *flacDecoder) read() ([]float64, error) {
	frame, err := d.stream.ParseNext()
	if err != nil {
		return nil, err
	}

	nch := len(frame.Subframes)
	nSamples := int(frame.Subframes[0].NSamples)
	d.raw = d.raw[:0]
	for i := range nSamples {
		for ch := range nch {
			d.raw = append(d.raw, float64(frame.Subframes[ch].Samples[i])*d.scale)
		}
	}
	d.out = mixdown(d.out, d.raw, nch)
	return d.out, nil
}

func (d *flacDecoder) sampleRate() float64 { return float64(d.stream.Info.SampleRate) }
func (d *flacDecoder) channels() int       { return int(d.stream.Info.NChannels) }

// --- MP3 ---

// go-mp3 always decodes to 16-bit little-endian stereo.
const mp3Channels = 2

type mp3Decoder struct {
	dec   *mp3.Decoder
	bytes []byte
	raw   []float64
	out   []float64
}

func newMP3Decoder(r io.Reader) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{dec: dec, bytes: make([]byte, chunkFrames*mp3Channels*2)}, nil
}

func (d *mp3Decoder) read() ([]float64, error) {
	n, err := io.ReadFull(d.dec, d.bytes)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	d.raw = d.raw[:0]
	for i := 0; i+1 < n; i += 2 {
		s := int16(binary.LittleEndian.Uint16(d.bytes[i:]))
		d.raw = append(d.raw, float64(s)/32768)
	}
	d.out = mixdown(d.out, d.raw, mp3Channels)
	return d.out, err
}

func (d *mp3Decoder) sampleRate() float64 { return float64(d.dec.SampleRate()) }
func (d *mp3Decoder) channels() int       { return mp3Channels }

// --- Ogg Vorbis ---

type oggDecoder struct {
	reader  *oggvorbis.Reader
	samples []float32
	raw     []float64
	out     []float64
}

func newOGGDecoder(r io.Reader) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &oggDecoder{reader: reader, samples: make([]float32, chunkFrames*reader.Channels())}, nil
}

func (d *oggDecoder) read() ([]float64, error) {
	n, err := d.reader.Read(d.samples)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	d.raw = d.raw[:0]
	for _, s := range d.samples[:n] {
		d.raw = append(d.raw, float64(s))
	}
	d.out = mixdown(d.out, d.raw, d.reader.Channels())
	// The samples are valid; report EOF on the next call.
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return d.out, err
}

func (d *oggDecoder) sampleRate() float64 { return float64(d.reader.SampleRate()) }
func (d *oggDecoder) channels() int       { return d.reader.Channels() }
