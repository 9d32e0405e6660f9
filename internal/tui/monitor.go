// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"pulse/internal/audio"
	"pulse/internal/ring"
	"pulse/internal/transport"
)

const (
	monitorFPS     = 30
	historyLen     = 64
	spectrumBars   = 48
	levelBarWidth  = 40
	springFreq     = 6.0
	springDampness = 0.7
)

var barChars = []rune(" ▁▂▃▄▅▆▇█")

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	levelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0524F")).Bold(true)
)

// Probe supplies live engine statistics.
type Probe interface {
	Stats() audio.Stats
}

// Controls are the engine switches the monitor can flip. *audio.Engine
// implements it.
type Controls interface {
	GateEnabled() bool
	EnableGate()
	DisableGate()
	IsRecording() bool
	ToggleRecording() (bool, error)
}

type tickMsg time.Time

// MonitorModel polls a Probe and draws level, peak history, heart rate and
// the latest spectrum.
type MonitorModel struct {
	probe    Probe
	spectrum transport.SpectrumProvider
	controls Controls
	interval time.Duration

	stats   audio.Stats
	history *ring.Buffer[float64]
	mags    []float64

	spring        harmonica.Spring
	level, levelV float64
	bpm, bpmV     float64
	err           error
	width         int
}

// NewMonitorModel builds a monitor. spectrum may be nil. When probe also
// implements Controls the gate and record keys are enabled.
func NewMonitorModel(probe Probe, spectrum transport.SpectrumProvider) MonitorModel {
	m := MonitorModel{
		probe:    probe,
		spectrum: spectrum,
		interval: time.Second / monitorFPS,
		history:  ring.MustNew[float64](historyLen),
		spring:   harmonica.NewSpring(harmonica.FPS(monitorFPS), springFreq, springDampness),
		width:    levelBarWidth,
	}
	if c, ok := probe.(Controls); ok {
		m.controls = c
	}
	if spectrum != nil {
		m.mags = make([]float64, spectrum.GetFFTSize()/2+1)
	}
	return m
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.sample()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = max(10, min(levelBarWidth, msg.Width-12))

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		case key.Matches(msg, keyGate) && m.controls != nil:
			if m.controls.GateEnabled() {
				m.controls.DisableGate()
			} else {
				m.controls.EnableGate()
			}
		case key.Matches(msg, keyRecord) && m.controls != nil:
			_, m.err = m.controls.ToggleRecording()
		}
	}
	return m, nil
}

// sample reads one snapshot and advances the springs toward it.
func (m *MonitorModel) sample() {
	m.stats = m.probe.Stats()
	m.history.Enqueue(m.stats.Peak)
	m.level, m.levelV = m.spring.Update(m.level, m.levelV, math.Min(m.stats.Peak, 1))
	m.bpm, m.bpmV = m.spring.Update(m.bpm, m.bpmV, m.stats.BPM)
	if m.spectrum != nil {
		if err := m.spectrum.GetMagnitudesInto(m.mags); err != nil {
			m.err = err
		}
	}
}

func (m MonitorModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Pulse Monitor"))
	sb.WriteString("\n\n")

	st := m.stats
	fmt.Fprintf(&sb, "%s %6.1f bpm  %s %d\n",
		labelStyle.Render("Heart rate"), m.bpm, labelStyle.Render("beats"), st.Beats)
	fmt.Fprintf(&sb, "%s %d  %s %d  %s %d/%d\n",
		labelStyle.Render("samples"), st.Samples,
		labelStyle.Render("dropped"), st.Dropped,
		labelStyle.Render("gated"), st.Gated, st.Blocks)
	if st.Dropped > 0 {
		sb.WriteString(alertStyle.Render("consumer is falling behind"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "%s %s %.3f\n", labelStyle.Render("level  "),
		levelStyle.Render(levelBar(m.level, m.width)), st.Peak)

	lo, hi, _ := ring.MinMax(m.history)
	hist := make([]float64, 0, m.history.Len())
	for v := range m.history.All() {
		hist = append(hist, v)
	}
	fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("history"), sparkline(hist, lo, hi))

	if m.spectrum != nil {
		bars := decimate(m.mags, spectrumBars)
		var top float64
		for _, v := range bars {
			top = max(top, v)
		}
		fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("spectrum"), sparkline(bars, 0, top))
	}

	if m.err != nil {
		sb.WriteString(alertStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n")
	}

	status := []string{"q: Quit"}
	if m.controls != nil {
		gate, rec := "off", "off"
		if m.controls.GateEnabled() {
			gate = "on"
		}
		if m.controls.IsRecording() {
			rec = "on"
		}
		status = append(status, "g: Gate ("+gate+")", "r: Record ("+rec+")")
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(strings.Join(status, " • ")))
	return sb.String()
}

// levelBar draws v in [0,1] as a bar of the given width.
func levelBar(v float64, width int) string {
	v = math.Max(0, math.Min(1, v))
	filled := int(math.Round(v * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// sparkline maps each value into one of the bar glyphs, scaled to
// [lo, hi]. A flat range renders at the bottom.
func sparkline(values []float64, lo, hi float64) string {
	top := len(barChars) - 1
	out := make([]rune, len(values))
	span := hi - lo
	for i, v := range values {
		level := 0
		if span > 0 {
			level = int(math.Round((v - lo) / span * float64(top)))
			level = max(0, min(top, level))
		}
		out[i] = barChars[level]
	}
	return string(out)
}

// decimate reduces values to at most n columns, keeping the largest value
// in each group.
func decimate(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if len(values) <= n {
		return append([]float64(nil), values...)
	}
	stride := (len(values) + n - 1) / n
	out := make([]float64, 0, n)
	for start := 0; start < len(values); start += stride {
		end := min(start+stride, len(values))
		peak := values[start]
		for _, v := range values[start+1 : end] {
			peak = max(peak, v)
		}
		out = append(out, peak)
	}
	return out
}

// StartMonitorUI runs the monitor until the user quits.
func StartMonitorUI(probe Probe, spectrum transport.SpectrumProvider) error {
	_, err := tea.NewProgram(NewMonitorModel(probe, spectrum), tea.WithAltScreen()).Run()
	return err
}
