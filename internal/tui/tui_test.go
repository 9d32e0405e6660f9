// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pulse/internal/audio"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 44100},
	{ID: 1, Name: "Chest Strap Bridge", MaxInputChannels: 1, DefaultSampleRate: 1000},
}

func press(m tea.Model, msgs ...tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

var (
	keyDownMsg  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnterMsg = tea.KeyMsg{Type: tea.KeyEnter}
	keyEscMsg   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func loadedPicker(t *testing.T) tea.Model {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })
	msg := m.Init()()
	model, _ := press(m, tea.WindowSizeMsg{Width: 80, Height: 30}, msg)
	return model
}

func TestDeviceListRendersDevices(t *testing.T) {
	m := loadedPicker(t)
	view := m.View()
	for _, want := range []string{"Audio Device List", "[0] Built-in Microphone (Input)", "Chest Strap Bridge"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDeviceListSelection(t *testing.T) {
	m := loadedPicker(t)

	// Second device, config screen starts at its default 1000 Hz, move to 5000.
	m, cmd := press(m, keyDownMsg, keyEnterMsg)
	if cmd != nil && isQuit(cmd) {
		t.Fatal("picker quit before a rate was chosen")
	}
	if !strings.Contains(m.View(), "Configure Device: Chest Strap Bridge") {
		t.Fatalf("expected config screen:\n%s", m.View())
	}
	m, cmd = press(m, keyDownMsg, keyEnterMsg)
	if !isQuit(cmd) {
		t.Fatal("confirming a rate should quit")
	}

	sel, ok := m.(DeviceListModel).Selected()
	if !ok {
		t.Fatal("no selection recorded")
	}
	if sel.Device.ID != 1 || sel.SampleRate != 5000 {
		t.Errorf("selection = %+v", sel)
	}
}

func TestDeviceListBackAndQuit(t *testing.T) {
	m := loadedPicker(t)
	m, _ = press(m, keyEnterMsg, keyEscMsg)
	if !strings.Contains(m.View(), "Audio Device List") {
		t.Error("esc should return to the list")
	}
	m, cmd := press(m, runeKey('q'))
	if !isQuit(cmd) {
		t.Error("q should quit")
	}
	if _, ok := m.(DeviceListModel).Selected(); ok {
		t.Error("quitting must not select a device")
	}
}

func TestDeviceListFetchError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host api") })
	model, _ := press(m, m.Init()())
	if !strings.Contains(model.View(), "no host api") {
		t.Errorf("view = %q", model.View())
	}
}

func TestClosestRate(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{0, 0},
		{1000, 0},
		{44100, 3},
		{47000, 4},
		{192000, 5},
	}
	for _, tt := range tests {
		if got := closestRate(tt.rate); got != tt.want {
			t.Errorf("closestRate(%v) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

type fakeEngine struct {
	stats     audio.Stats
	gate      bool
	recording bool
	recErr    error
}

func (f *fakeEngine) Stats() audio.Stats { return f.stats }
func (f *fakeEngine) GateEnabled() bool  { return f.gate }
func (f *fakeEngine) EnableGate()        { f.gate = true }
func (f *fakeEngine) DisableGate()       { f.gate = false }
func (f *fakeEngine) IsRecording() bool  { return f.recording }

func (f *fakeEngine) ToggleRecording() (bool, error) {
	if f.recErr != nil {
		return false, f.recErr
	}
	f.recording = !f.recording
	return f.recording, nil
}

type fakeSpectrum struct{ mags []float64 }

func (f fakeSpectrum) GetMagnitudesInto(dst []float64) error {
	copy(dst, f.mags)
	return nil
}
func (f fakeSpectrum) GetFFTSize() int         { return 2 * (len(f.mags) - 1) }
func (f fakeSpectrum) GetSampleRate() float64 { return 1000 }

func tick(m tea.Model, n int) tea.Model {
	for range n {
		m, _ = m.Update(tickMsg(time.Now()))
	}
	return m
}

func TestMonitorTracksStats(t *testing.T) {
	eng := &fakeEngine{stats: audio.Stats{Samples: 4096, Blocks: 4, Gated: 1, Peak: 0.5, BPM: 72, Beats: 9}}
	provider := fakeSpectrum{mags: []float64{0, 0, 1, 0, 0, 0, 0, 0, 0}}
	m := tea.Model(NewMonitorModel(eng, provider))

	if _, cmd := m.Update(tickMsg(time.Now())); cmd == nil {
		t.Fatal("tick should schedule the next tick")
	}
	m = tick(m, 120)

	mm := m.(MonitorModel)
	if math.Abs(mm.level-0.5) > 0.01 || math.Abs(mm.bpm-72) > 0.5 {
		t.Errorf("springs settled at level %v, bpm %v", mm.level, mm.bpm)
	}
	if mm.history.Len() != historyLen {
		t.Errorf("history length = %d, want %d", mm.history.Len(), historyLen)
	}

	view := m.View()
	for _, want := range []string{"72.0 bpm", "beats 9", "gated 1/4", "0.500", "spectrum", "g: Gate (off)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "falling behind") {
		t.Error("no drops, no warning")
	}
}

func TestMonitorDropWarning(t *testing.T) {
	m := tick(NewMonitorModel(&fakeEngine{stats: audio.Stats{Dropped: 12}}, nil), 1)
	view := m.View()
	if !strings.Contains(view, "falling behind") {
		t.Errorf("expected a drop warning:\n%s", view)
	}
	if strings.Contains(view, "spectrum") {
		t.Error("spectrum row drawn without a provider")
	}
}

func TestMonitorKeys(t *testing.T) {
	eng := &fakeEngine{}
	m := tea.Model(NewMonitorModel(eng, nil))

	m, _ = press(m, runeKey('g'))
	if !eng.gate {
		t.Error("g should enable the gate")
	}
	m, _ = press(m, runeKey('r'))
	if !eng.recording || !strings.Contains(m.View(), "r: Record (on)") {
		t.Error("r should start recording")
	}

	eng.recErr = errors.New("disk full")
	m, _ = press(m, runeKey('r'))
	if !strings.Contains(m.View(), "disk full") {
		t.Error("recording error not shown")
	}

	if _, cmd := press(m, runeKey('q')); !isQuit(cmd) {
		t.Error("q should quit")
	}
}

type statsOnly struct{}

func (statsOnly) Stats() audio.Stats { return audio.Stats{} }

func TestMonitorWithoutControls(t *testing.T) {
	m := tea.Model(NewMonitorModel(statsOnly{}, nil))
	m, _ = press(m, runeKey('g'), runeKey('r'))
	if strings.Contains(m.View(), "g: Gate") {
		t.Error("gate binding shown for a probe without controls")
	}
}

func TestLevelBar(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1, "████"},
		{2, "████"},
		{-1, "░░░░"},
	}
	for _, tt := range tests {
		if got := levelBar(tt.v, 4); got != tt.want {
			t.Errorf("levelBar(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{0, 0.5, 1}, 0, 1); got != " ▄█" {
		t.Errorf("sparkline = %q", got)
	}
	if got := sparkline([]float64{3, 3}, 3, 3); got != "  " {
		t.Errorf("flat sparkline = %q", got)
	}
	if got := sparkline([]float64{-1, 2}, 0, 1); got != " █" {
		t.Errorf("clamped sparkline = %q", got)
	}
}

func TestDecimate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		n      int
		want   []float64
	}{
		{"fewer than columns", []float64{1, 2}, 4, []float64{1, 2}},
		{"even groups", []float64{1, 5, 2, 3, 9, 0}, 3, []float64{5, 3, 9}},
		{"ragged tail", []float64{1, 2, 3, 4, 5}, 2, []float64{3, 5}},
		{"no columns", []float64{1}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decimate(tt.values, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("decimate = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("decimate = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}
