// SPDX-License-Identifier: MIT

// Package config holds the runtime configuration of the pulse engine: audio
// devices, the filter preset, spectrum analysis, beat detection, recording
// and outputs. It is loaded from YAML and overridden from ENV_* variables.
package config

import "time"

// Boundaries and defaults for the engine configuration.
const (
	DefaultDeviceID        = MinDeviceID // system default device
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 512
	DefaultInputChannels   = 1
	DefaultGateThreshold   = 0.001 // ~-60 dBFS

	DefaultSpectrumSize      = 1024
	DefaultSpectrumAlgorithm = "iterative"
	DefaultSpectrumWindow    = "hann"

	DefaultBeatThreshold = 0.5
	DefaultRefractory    = 250 * time.Millisecond

	DefaultWebSocketAddr     = ":8080"
	DefaultWebSocketInterval = 33 * time.Millisecond // ~30 Hz
	DefaultUDPTargetAddress  = "127.0.0.1:9090"
	DefaultUDPSendInterval   = 16 * time.Millisecond // ~60 Hz

	DefaultSerialBaud = 115200
	DefaultSerialMode = "binary"

	// Hardware and processing limits.
	MinDeviceID     = -1 // -1 represents the system default device
	MinSampleRate   = 1000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MinSpectrumSize = 16
	MaxSpectrumSize = 1 << 16
	MaxChannels     = 32
)

// Config is the complete engine configuration.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig     `yaml:"audio"`
	Filter    FilterConfig    `yaml:"filter"`
	Spectrum  SpectrumConfig  `yaml:"spectrum"`
	Beat      BeatConfig      `yaml:"beat"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Serial    SerialConfig    `yaml:"serial"`
}

// AudioConfig selects the PortAudio devices and stream format.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`  // PortAudio device index (-1 for default).
	OutputDevice    int     `yaml:"output_device"` // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	LowLatency      bool    `yaml:"low_latency"`
	InputChannels   int     `yaml:"input_channels"` // Channels are averaged to mono.
	// Passthrough writes the filtered signal to the output device.
	Passthrough bool `yaml:"passthrough"`
	// GateThreshold in [0, 1]: blocks whose peak stays at or below it are not
	// analysed. Zero disables the gate.
	GateThreshold float64 `yaml:"gate_threshold"`
}

// FilterConfig names the filter applied to every input sample.
type FilterConfig struct {
	Preset     string `yaml:"preset"`      // Empty passes samples through.
	PresetFile string `yaml:"preset_file"` // Extra presets merged over the built-in ones.
}

// SpectrumConfig configures block analysis.
type SpectrumConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Size      int     `yaml:"size"`      // Power of two.
	Algorithm string  `yaml:"algorithm"` // naive, recursive, iterative or gonum.
	Window    string  `yaml:"window"`
	Smoothing float64 `yaml:"smoothing"` // In [0, 1).
	Bands     bool    `yaml:"bands"`     // Publish band energies.
}

// BeatConfig configures threshold-crossing beat detection.
type BeatConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Threshold  float64       `yaml:"threshold"`
	Refractory time.Duration `yaml:"refractory"`
}

// RecordingConfig controls WAV recording of the filtered signal.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file"` // Generated from the start time when empty.
}

// TransportConfig controls spectrum publishing over the network.
type TransportConfig struct {
	WebSocketEnabled  bool          `yaml:"websocket_enabled"`
	WebSocketAddr     string        `yaml:"websocket_addr"`
	WebSocketInterval time.Duration `yaml:"websocket_interval"` // Minimum gap between frames.
	UDPEnabled        bool          `yaml:"udp_enabled"`
	UDPTargetAddress  string        `yaml:"udp_target_address"`
	UDPSendInterval   time.Duration `yaml:"udp_send_interval"`
}

// SerialConfig streams filtered samples to a serial port.
type SerialConfig struct {
	Port string `yaml:"port"` // Empty disables serial output.
	Baud int    `yaml:"baud"`
	Mode string `yaml:"mode"` // "binary" (8-bit DAC codes) or "text".
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultInputChannels,
			GateThreshold:   DefaultGateThreshold,
		},
		Spectrum: SpectrumConfig{
			Enabled:   true,
			Size:      DefaultSpectrumSize,
			Algorithm: DefaultSpectrumAlgorithm,
			Window:    DefaultSpectrumWindow,
			Bands:     true,
		},
		Beat: BeatConfig{
			Threshold:  DefaultBeatThreshold,
			Refractory: DefaultRefractory,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
		Transport: TransportConfig{
			WebSocketEnabled:  true,
			WebSocketAddr:     DefaultWebSocketAddr,
			WebSocketInterval: DefaultWebSocketInterval,
			UDPTargetAddress:  DefaultUDPTargetAddress,
			UDPSendInterval:   DefaultUDPSendInterval,
		},
		Serial: SerialConfig{
			Baud: DefaultSerialBaud,
			Mode: DefaultSerialMode,
		},
	}
}
