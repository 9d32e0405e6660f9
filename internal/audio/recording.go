// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pulse/internal/sink"
)

// ErrAlreadyRecording is returned by StartRecording during a recording.
var ErrAlreadyRecording = errors.New("already recording")

// StartRecording writes the filtered mono signal to a 16-bit WAV file.
func (e *Engine) StartRecording(filename string) error {
	if e.isRecording.Load() {
		return ErrAlreadyRecording
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	w, err := sink.CreateWAV(filename, int(e.config.Audio.SampleRate))
	if err != nil {
		return err
	}

	e.recMu.Lock()
	e.recorder = w
	e.recMu.Unlock()
	e.isRecording.Store(true)
	return nil
}

// StopRecording finalises the WAV file. It is a no-op when not recording.
func (e *Engine) StopRecording() error {
	if !e.isRecording.Load() {
		return nil
	}

	e.recMu.Lock()
	w := e.recorder
	e.recorder = nil
	e.recMu.Unlock()
	e.isRecording.Store(false)

	if w == nil {
		return nil
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalise recording: %w", err)
	}
	logger.Infof("Recording stopped after %d samples", w.Frames())
	return nil
}

// IsRecording reports whether a recording is in progress.
func (e *Engine) IsRecording() bool {
	return e.isRecording.Load()
}

// recordingPath returns Recording.OutputFile, or a timestamped name in
// Recording.OutputDir.
func (e *Engine) recordingPath() string {
	rc := e.config.Recording
	if rc.OutputFile != "" {
		return rc.OutputFile
	}
	return filepath.Join(rc.OutputDir, "pulse-"+time.Now().Format("20060102-150405")+".wav")
}

// Close stops the stream and recording and releases every output. It is
// safe to call on a partly built engine.
func (e *Engine) Close() error {
	errs := []error{e.StopRecording(), e.Stop()}

	if e.spectrum != nil {
		errs = append(errs, e.spectrum.Close())
	}
	if e.udp != nil {
		errs = append(errs, e.udp.Close())
	}
	if e.udpSender != nil {
		errs = append(errs, e.udpSender.Close())
	}
	for _, s := range e.sinks {
		errs = append(errs, s.Close())
	}
	e.sinks = nil
	if e.transport != nil {
		errs = append(errs, e.transport.Close())
		e.transport = nil
	}
	return errors.Join(errs...)
}

// ToggleRecording starts a recording at the configured path, or stops the
// current one. It reports whether a recording is running afterwards.
func (e *Engine) ToggleRecording() (bool, error) {
	if e.isRecording.Load() {
		return false, e.StopRecording()
	}
	path := e.recordingPath()
	if err := e.StartRecording(path); err != nil {
		return false, err
	}
	logger.Infof("Recording to %s", path)
	return true, nil
}
