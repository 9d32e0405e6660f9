// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pulse/internal/analysis"
	"pulse/internal/fft"
	"pulse/internal/filter"
	applog "pulse/internal/log"
	"pulse/pkg/bitint"
)

var logger = applog.Named("Config")

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPaths are searched in order when LoadConfig is given no path.
var DefaultPaths = []string{"pulse.yaml", "config.yaml"}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty it searches DefaultPaths and falls back to the built-in defaults.
// Environment overrides are applied after the file, then the result is
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range DefaultPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("Loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and names. It returns an error wrapping ErrInvalid
// for the first problem found.
func (c *Config) Validate() error {
	invalid := func(format string, v ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, v...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	a := c.Audio
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %g outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside [1, %d]", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		return invalid("audio.input_channels %d outside [1, %d]", a.InputChannels, MaxChannels)
	}
	if a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID {
		return invalid("device ids must be >= %d", MinDeviceID)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return invalid("audio.gate_threshold %g outside [0, 1]", a.GateThreshold)
	}

	if c.Filter.Preset != "" {
		presets, err := c.Presets()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if _, err := presets.Lookup(c.Filter.Preset); err != nil {
			return fmt.Errorf("%w: filter.preset: %w", ErrInvalid, err)
		}
	}

	if s := c.Spectrum; s.Enabled {
		if !bitint.IsPowerOfTwo(s.Size) || s.Size < MinSpectrumSize || s.Size > MaxSpectrumSize {
			return invalid("spectrum.size %d must be a power of two in [%d, %d]", s.Size, MinSpectrumSize, MaxSpectrumSize)
		}
		if _, err := fft.ParseAlgorithm(s.Algorithm); err != nil {
			return fmt.Errorf("%w: spectrum.algorithm: %w", ErrInvalid, err)
		}
		if _, err := analysis.ParseWindowFunc(s.Window); err != nil {
			return fmt.Errorf("%w: spectrum.window: %w", ErrInvalid, err)
		}
		if s.Smoothing < 0 || s.Smoothing >= 1 {
			return invalid("spectrum.smoothing %g outside [0, 1)", s.Smoothing)
		}
	}

	if c.Beat.Refractory < 0 {
		return invalid("beat.refractory must not be negative")
	}

	t := c.Transport
	if t.WebSocketEnabled && t.WebSocketAddr == "" {
		return invalid("transport.websocket_addr must be set when the websocket is enabled")
	}
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return invalid("transport.udp_target_address %q: %v", t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	if c.Serial.Port != "" {
		if c.Serial.Baud <= 0 {
			return invalid("serial.baud must be positive")
		}
		if m := strings.ToLower(c.Serial.Mode); m != "binary" && m != "text" {
			return invalid("serial.mode %q is not binary or text", c.Serial.Mode)
		}
	}

	return nil
}

// Level returns the effective log level. Debug wins over LogLevel.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// Presets returns the built-in filter presets, extended with
// Filter.PresetFile when set.
func (c *Config) Presets() (*filter.PresetTable, error) {
	table, err := filter.DefaultPresets()
	if err != nil {
		return nil, err
	}
	if c.Filter.PresetFile == "" {
		return table, nil
	}
	extra, err := filter.LoadPresetFile(c.Filter.PresetFile)
	if err != nil {
		return nil, err
	}
	return table.Extend(extra), nil
}

// applyEnvOverrides applies ENV_* variables on top of the loaded file.
// Values that fail to parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.
	envBool("ENV_DEBUG", &c.Debug)
	envString("ENV_LOG_LEVEL", &c.LogLevel)
	envString("ENV_FILTER_PRESET", &c.Filter.Preset)
	envInt("ENV_SPECTRUM_SIZE", &c.Spectrum.Size)

	// ENV_UDP_{...}
	// These are specific to the transport layer.
	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)

	envString("ENV_SERIAL_PORT", &c.Serial.Port)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		logger.Infof("Overriding from %s: %s", key, val)
	}
}

func envBool(key string, dst *bool) {
	envParse(key, dst, strconv.ParseBool)
}

func envInt(key string, dst *int) {
	envParse(key, dst, strconv.Atoi)
}

func envDuration(key string, dst *time.Duration) {
	envParse(key, dst, time.ParseDuration)
}

func envParse[T any](key string, dst *T, parse func(string) (T, error)) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := parse(val)
	if err != nil {
		logger.Warnf("Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = v
	logger.Infof("Overriding from %s: %v", key, v)
}
