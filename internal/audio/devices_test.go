// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

var fakeDevices = []*portaudio.DeviceInfo{
	{
		Name:                    "Built-in Microphone",
		HostApi:                 &portaudio.HostApiInfo{Name: "Core Audio"},
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultHighInputLatency: 20 * time.Millisecond,
	},
	{
		Name:              "Speakers",
		MaxOutputChannels: 2,
		DefaultSampleRate: 44100,
	},
	{
		Name:              "USB Interface",
		MaxInputChannels:  4,
		MaxOutputChannels: 4,
		DefaultSampleRate: 96000,
	},
}

// withFakePortAudio swaps the PortAudio entry points for the duration of a
// test.
func withFakePortAudio(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	origDevices := paLibDevicesFunc
	origIn := paLibDefaultInputDeviceFunc
	origOut := paLibDefaultOutputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc = origDevices
		paLibDefaultInputDeviceFunc = origIn
		paLibDefaultOutputDeviceFunc = origOut
	})

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, err }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if err != nil {
			return nil, err
		}
		return devices[0], nil
	}
	paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if err != nil {
			return nil, err
		}
		return devices[1], nil
	}
}

func TestHostDevices(t *testing.T) {
	withFakePortAudio(t, fakeDevices, nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeDevices) {
		t.Fatalf("got %d devices, want %d", len(devices), len(fakeDevices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name != fakeDevices[i].Name {
			t.Errorf("Device %d name = %q", i, d.Name)
		}
	}
	if devices[0].HostAPI != "Core Audio" || devices[1].HostAPI != "" {
		t.Errorf("host APIs = %q, %q", devices[0].HostAPI, devices[1].HostAPI)
	}
	if devices[0].HighInputLatency != 20*time.Millisecond {
		t.Errorf("latency = %v", devices[0].HighInputLatency)
	}

	wantTypes := []string{"Input", "Output", "Input/Output"}
	for i, want := range wantTypes {
		if got := devices[i].Type(); got != want {
			t.Errorf("device %d Type() = %q, want %q", i, got, want)
		}
	}
	if (Device{}).Type() != "None" {
		t.Error("a device without channels should report None")
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	withFakePortAudio(t, nil, fmt.Errorf("mock error"))

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	withFakePortAudio(t, fakeDevices, nil)

	if dev, err := InputDevice(-1); err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("default input = %v, %v", dev, err)
	}
	if dev, err := InputDevice(2); err != nil || dev.Name != "USB Interface" {
		t.Errorf("InputDevice(2) = %v, %v", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeDevices) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Fatalf("Expected error for ID %d", tt.id)
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestOutputDevice(t *testing.T) {
	withFakePortAudio(t, fakeDevices, nil)

	if dev, err := OutputDevice(-1); err != nil || dev.Name != "Speakers" {
		t.Errorf("default output = %v, %v", dev, err)
	}
	if _, err := OutputDevice(0); err == nil || !strings.Contains(err.Error(), "does not support output") {
		t.Errorf("OutputDevice(0) = %v", err)
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakePortAudio(t, nil, fmt.Errorf("mock default input error"))

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	withFakePortAudio(t, fakeDevices, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[2] USB Interface (Input/Output)",
		"Default sample rate: 96000 Hz",
		"Latency: Low=5.00ms, High=20.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	withFakePortAudio(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
	if len(devices) != 0 {
		t.Errorf("expected length 0, got %d", len(devices))
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	withFakePortAudio(t, nil, fmt.Errorf("PortAudio not initialized"))

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}
