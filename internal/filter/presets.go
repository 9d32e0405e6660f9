// SPDX-License-Identifier: MIT
package filter

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinPresets []byte

// Kind selects how a preset is turned into a Stepper.
type Kind string

const (
	KindDirect        Kind = "direct"
	KindSOS           Kind = "sos"
	KindSeries        Kind = "series"
	KindMovingAverage Kind = "moving-average"
)

// maxSeriesDepth bounds nested series presets so a cycle fails instead of
// recursing forever.
const maxSeriesDepth = 8

// Preset is a named coefficient set as stored in YAML.
type Preset struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	SampleRate  float64     `yaml:"sample_rate"`
	Kind        Kind        `yaml:"kind"`
	B           []float64   `yaml:"b,omitempty"`
	A           []float64   `yaml:"a,omitempty"`
	Num         [][]float64 `yaml:"num,omitempty"`
	Den         [][]float64 `yaml:"den,omitempty"`
	Stages      []string    `yaml:"stages,omitempty"`
	Taps        int         `yaml:"taps,omitempty"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// PresetTable is a set of presets addressable by name.
type PresetTable struct {
	byName map[string]Preset
}

var defaultPresets = sync.OnceValues(func() (*PresetTable, error) {
	return LoadPresets(bytes.NewReader(builtinPresets))
})

// DefaultPresets returns the built-in preset table.
func DefaultPresets() (*PresetTable, error) {
	return defaultPresets()
}

// LoadPresets parses a preset document.
func LoadPresets(r io.Reader) (*PresetTable, error) {
	var f presetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	t := &PresetTable{byName: make(map[string]Preset, len(f.Presets))}
	for i, p := range f.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if _, dup := t.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		t.byName[p.Name] = p
	}
	return t, nil
}

// LoadPresetFile reads presets from a YAML file.
func LoadPresetFile(path string) (*PresetTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}
	return LoadPresets(bytes.NewReader(data))
}

// Extend returns a table holding t's presets overridden by other's.
func (t *PresetTable) Extend(other *PresetTable) *PresetTable {
	out := &PresetTable{byName: make(map[string]Preset, len(t.byName)+len(other.byName))}
	for k, v := range t.byName {
		out.byName[k] = v
	}
	for k, v := range other.byName {
		out.byName[k] = v
	}
	return out
}

// Names returns the preset names in sorted order.
func (t *PresetTable) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the preset called name.
func (t *PresetTable) Lookup(name string) (Preset, error) {
	p, ok := t.byName[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p.Clone(), nil
}

// Build constructs a fresh filter for the named preset. Every call returns
// an independent filter with its own history.
func (t *PresetTable) Build(name string) (Stepper, error) {
	return t.build(name, 0)
}

func (t *PresetTable) build(name string, depth int) (Stepper, error) {
	if depth > maxSeriesDepth {
		return nil, fmt.Errorf("preset %q: series nested too deeply", name)
	}
	p, err := t.Lookup(name)
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case KindDirect:
		c, err := NewCoefficients(p.B, p.A)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		s, err := NewSection(c)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		return s, nil
	case KindSOS:
		c, err := FromSOSTable(p.Num, p.Den)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		return c, nil
	case KindSeries:
		if len(p.Stages) == 0 {
			return nil, fmt.Errorf("preset %q: series without stages", name)
		}
		s := make(Series, 0, len(p.Stages))
		for _, stage := range p.Stages {
			f, err := t.build(stage, depth+1)
			if err != nil {
				return nil, fmt.Errorf("preset %q: %w", name, err)
			}
			s = append(s, f)
		}
		return s, nil
	case KindMovingAverage:
		m, err := NewMovingAverage(p.Taps)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("preset %q: unknown kind %q", name, p.Kind)
	}
}

// Order returns a short human readable order description used by the
// presets listing.
func (p Preset) Order() string {
	switch p.Kind {
	case KindDirect:
		return fmt.Sprintf("M=%d N=%d", len(p.B)-1, len(p.A)-1)
	case KindSOS:
		n := 0
		for _, row := range p.Num {
			if len(row) > 1 {
				n++
			}
		}
		return fmt.Sprintf("%d sections", n)
	case KindSeries:
		return fmt.Sprintf("%d stages", len(p.Stages))
	case KindMovingAverage:
		return fmt.Sprintf("%d taps", p.Taps)
	}
	return "?"
}

// Clone returns a deep copy of p.
func (p Preset) Clone() Preset {
	p.B = slices.Clone(p.B)
	p.A = slices.Clone(p.A)
	p.Stages = slices.Clone(p.Stages)
	num := make([][]float64, len(p.Num))
	for i, r := range p.Num {
		num[i] = slices.Clone(r)
	}
	den := make([][]float64, len(p.Den))
	for i, r := range p.Den {
		den[i] = slices.Clone(r)
	}
	p.Num, p.Den = num, den
	return p
}
