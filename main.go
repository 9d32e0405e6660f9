// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"runtime"

	"pulse/cmd"
	applog "pulse/internal/log"
	"pulse/pkg/build"
)

// main is the entry point for the pulse signal processor.
//
// 1. Startup (cold path): resolve build information, configure the runtime
// and parse the command line.
//
// 2. Processing (hot path): the selected command runs. The root command
// starts the PortAudio stream, whose callback filters every sample and hands
// it to the analysis goroutine through a fixed-size ring.
//
// 3. Shutdown (cold path): on SIGINT or SIGTERM the stream stops, recordings
// are finalised and every output is closed.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("%v", err)
	}

	// One thread for the audio callback, one for analysis, UI and I/O.
	runtime.GOMAXPROCS(2)

	if err := cmd.Execute(context.Background(), os.Args[1:]); err != nil {
		applog.Fatalf("%v", err)
	}
}
