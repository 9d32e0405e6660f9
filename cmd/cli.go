// SPDX-License-Identifier: MIT

// Package cmd wires the command line: the live engine on the root command
// and the offline filter, spectrum and table tools as subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pulse/internal/audio"
	"pulse/internal/config"
	applog "pulse/internal/log"
	"pulse/internal/transport"
	"pulse/internal/tui"
	"pulse/pkg/build"
)

var logger = applog.Named("CLI")

// options collects the flags shared by the live and offline commands.
type options struct {
	configPath      string
	device          int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	preset          string
	record          bool
	output          string
	verbose         bool
	monitor         bool
}

// Execute runs the command line with args, excluding the program name.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				applog.SetLevel(applog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, opts)
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"YAML configuration file. Defaults to pulse.yaml or config.yaml when present")
	rootCmd.PersistentFlags().StringVarP(&opts.preset, "preset", "p", "",
		"Filter preset applied to every sample. See the 'presets' command")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio Device Configuration
	rootCmd.Flags().IntVarP(&opts.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'devices' command to see available devices")
	rootCmd.Flags().IntVar(&opts.outputDevice, "output-device", config.DefaultDeviceID,
		"Output device ID. Setting it plays the filtered signal back")
	rootCmd.Flags().Float64VarP(&opts.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.Flags().IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")

	// Recording Configuration
	rootCmd.Flags().BoolVarP(&opts.record, "record", "r", false,
		"Record the filtered signal to a WAV file")
	rootCmd.Flags().StringVarP(&opts.output, "output", "o", "",
		"Recording file name. Default is recordings/pulse-YYYYMMDD-HHMMSS.wav")

	rootCmd.Flags().BoolVarP(&opts.monitor, "monitor", "m", false,
		"Show the live terminal monitor")

	rootCmd.AddCommand(
		newDevicesCommand(),
		newFilterCommand(opts),
		newSpectrumCommand(),
		newRbitCommand(),
		newPresetsCommand(opts),
	)
	return rootCmd
}

// loadConfig reads the configuration file and applies the flags the user
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.InputDevice = opts.device
	}
	if flags.Changed("output-device") {
		cfg.Audio.OutputDevice = opts.outputDevice
		cfg.Audio.Passthrough = true
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if flags.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = opts.framesPerBuffer
	}
	if flags.Changed("preset") {
		cfg.Filter.Preset = opts.preset
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = opts.record
	}
	if flags.Changed("output") {
		cfg.Recording.OutputFile = opts.output
	}
	if opts.verbose {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applog.SetLevel(cfg.Level())
	return cfg, nil
}

// runLive streams from the input device until interrupted.
func runLive(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			logger.Errorf("Error closing audio engine: %v", cerr)
		}
	}()

	if err := engine.Start(); err != nil {
		return err
	}

	if opts.monitor {
		var spectrum transport.SpectrumProvider
		if p := engine.Spectrum(); p != nil {
			spectrum = p
		}
		// The monitor owns the terminal until it exits.
		applog.SetOutput(io.Discard)
		defer applog.SetOutput(os.Stderr)
		return tui.StartMonitorUI(engine, spectrum)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Streaming at %.0f Hz, press Ctrl+C to stop. '%s --help' for usage information.\n",
		engine.SampleRate(), cmd.Root().Name())
	<-ctx.Done()

	if engine.IsRecording() {
		if err := engine.StopRecording(); err != nil {
			logger.Errorf("Error stopping recording: %v", err)
		}
	}
	st := engine.Stats()
	logger.Infof("Processed %d samples in %d blocks, %d dropped", st.Samples, st.Blocks, st.Dropped)
	return nil
}
