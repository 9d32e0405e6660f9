package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLevel(GetLevel())

	SetLevel(LevelWarn)
	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Error("shown", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level were logged:\n%s", out)
	}
	if !strings.Contains(out, "[WARN]  shown 3") || !strings.Contains(out, "[ERROR] shown4") {
		t.Errorf("expected warn and error lines, got:\n%s", out)
	}
}

func TestNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLevel(GetLevel())

	SetLevel(LevelDebug)
	l := Named("Engine")
	l.Debugf("callback %d frames", 512)
	l.Errorf("stream failed")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] Engine: callback 512 frames") {
		t.Errorf("missing debug line:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] Engine: stream failed") {
		t.Errorf("missing error line:\n%s", out)
	}
}

func TestLevelString(t *testing.T) {
	if LogLevel(99).String() != "UNKNOWN" {
		t.Errorf("LogLevel(99).String() = %q", LogLevel(99).String())
	}
}
