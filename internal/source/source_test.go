// SPDX-License-Identifier: MIT
package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pulse/internal/stream"
	"pulse/internal/testutil"
)

func collect(t *testing.T, src stream.Source, n int) []float64 {
	t.Helper()
	var c stream.Collector
	if _, err := stream.Run(context.Background(), stream.Limit(src, n), nil, &c); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return c.Values
}

func TestSine(t *testing.T) {
	got := collect(t, NewSine(250, 2, 0, 1000), 5)
	testutil.RequireSliceNearlyEqual(t, got, []float64{0, 2, 0, -2, 0}, 1e-12)
}

func TestECG(t *testing.T) {
	g := NewECG(1000)
	xs := collect(t, g, 2000)
	testutil.RequireFinite(t, xs)

	// The envelope peaks once per heartbeat and vanishes half a period later.
	for _, x := range xs {
		if math.Abs(x) > 1 {
			t.Fatalf("sample %v outside [-1, 1]", x)
		}
	}
	if math.Abs(ECG(0.75/ECGRate)) > 1e-12 {
		t.Errorf("envelope does not vanish at the trough: %v", ECG(0.75/ECGRate))
	}
	if g.SampleRate() != 1000 {
		t.Errorf("SampleRate() = %v", g.SampleRate())
	}

	g.Reset()
	if x, _ := g.Next(); x != xs[0] {
		t.Errorf("Reset did not restart: %v vs %v", x, xs[0])
	}
}

func TestImpulseAndSum(t *testing.T) {
	src := Sum(NewImpulse(1000), FromSlice([]float64{1, 1, 1}))
	got := collect(t, src, 10)
	testutil.RequireSliceNearlyEqual(t, got, []float64{2, 1, 1}, 0)
}

func TestNoiseIsSeeded(t *testing.T) {
	a := collect(t, NewNoise(0.5, 3, 100), 50)
	b := collect(t, NewNoise(0.5, 3, 100), 50)
	testutil.RequireSliceNearlyEqual(t, a, b, 0)
	for _, x := range a {
		if x < -0.5 || x >= 0.5 {
			t.Fatalf("noise sample %v out of range", x)
		}
	}
}

func TestParseGenerator(t *testing.T) {
	tests := []struct {
		desc  string
		first []float64
		ok    bool
	}{
		{"sine:250", []float64{0, 1, 0}, true},
		{"SINE:250:3", []float64{0, 3, 0}, true},
		{"impulse", []float64{1, 0, 0}, true},
		{"ecg", []float64{0}, true},
		{"ecg-noisy", []float64{0.1}, true},
		{"noise:0", []float64{0, 0}, true},
		{"sine", nil, false},
		{"sine:abc", nil, false},
		{"square:10", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			g, err := ParseGenerator(tt.desc, 1000)
			if !tt.ok {
				if err == nil {
					t.Fatalf("ParseGenerator(%q) succeeded", tt.desc)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGenerator(%q): %v", tt.desc, err)
			}
			got := collect(t, g, len(tt.first))
			testutil.RequireSliceNearlyEqual(t, got, tt.first, 1e-12)
		})
	}

	if _, err := ParseGenerator("square", 1000); !errors.Is(err, ErrUnknownGenerator) {
		t.Errorf("unknown generator error = %v", err)
	}
	if _, err := ParseGenerator("ecg", 0); err == nil {
		t.Error("zero sample rate accepted")
	}
}

func TestCSV(t *testing.T) {
	in := "index,value\n0,1.5\n1, -2\n# comment\n2,3e-1\n"
	got := collect(t, NewCSV(strings.NewReader(in)), 10)
	testutil.RequireSliceNearlyEqual(t, got, []float64{1.5, -2, 0.3}, 0)

	bare := collect(t, NewCSV(strings.NewReader("4\n5\n")), 10)
	testutil.RequireSliceNearlyEqual(t, bare, []float64{4, 5}, 0)
}

func TestCSVBadValue(t *testing.T) {
	f := NewCSV(strings.NewReader("0,1\n1,oops\n"))
	if _, err := f.Next(); err != nil {
		t.Fatalf("first sample: %v", err)
	}
	_, err := f.Next()
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v", err)
	}
}

func writeTestWAV(t *testing.T, path string, channels int, frames [][]int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: 8000}, SourceBitDepth: 16}
	for _, fr := range frames {
		buf.Data = append(buf.Data, fr...)
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("encoder Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenWAVStereoMixdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeTestWAV(t, path, 2, [][]int{{16384, 16384}, {-32768, 0}, {8192, -8192}})

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.SampleRate() != 8000 || f.Channels() != 2 || f.Format() != "wav" {
		t.Errorf("rate/channels/format = %v/%d/%s", f.SampleRate(), f.Channels(), f.Format())
	}
	got := collect(t, f, 10)
	testutil.RequireSliceNearlyEqual(t, got, []float64{0.5, -0.5, 0}, 0)

	if _, err := f.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after end = %v", err)
	}
}

func TestOpenWAVLongerThanOneChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	frames := make([][]int, chunkFrames+100)
	for i := range frames {
		frames[i] = []int{i % 1000}
	}
	writeTestWAV(t, path, 1, frames)

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got := collect(t, f, 2*chunkFrames)
	if len(got) != len(frames) {
		t.Fatalf("read %d samples, want %d", len(got), len(frames))
	}
	if want := float64(chunkFrames%1000) / 32768; got[chunkFrames] != want {
		t.Errorf("sample %d = %v, want %v", chunkFrames, got[chunkFrames], want)
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := bytes.Repeat([]byte("not audio "), 64)

	for _, ext := range []string{".wav", ".flac", ".mp3", ".ogg"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "bad"+ext)
			if err := os.WriteFile(path, garbage, 0o644); err != nil {
				t.Fatal(err)
			}
			if f, err := Open(path); err == nil {
				f.Close()
				t.Errorf("Open(%s) accepted garbage", ext)
			}
		})
	}

	if _, err := NewFile(bytes.NewReader(garbage), ".aac"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unsupported extension error = %v", err)
	}
	if _, err := Open(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("Open of a missing file succeeded")
	}
}

func TestMixdown(t *testing.T) {
	got := mixdown(nil, []float64{1, 3, -2, 2, 5}, 2)
	// The trailing half frame is dropped.
	testutil.RequireSliceNearlyEqual(t, got, []float64{2, 0}, 0)
}
