package main

import (
	"os"
	"runtime"

	"ledaudio/cmd"
	applog "ledaudio/internal/log"
	"ledaudio/pkg/build"
)

// main is the entry point of ledaudio.
//
// 1. Startup (cold path): build information, runtime settings, CLI parsing
// and configuration.
//
// 2. Capture (hot path): the PortAudio callback runs one front-end hop per
// 128 samples and publishes the frame; transports and the monitor read the
// newest frame on their own goroutines.
//
// 3. Shutdown (cold path): on a signal or when the monitor exits, the stream
// stops, the recording is finalised and the transports close.
func main() {
	// Development builds have no ldflags; the defaults stay in place.
	if err := build.Initialize(); err != nil {
		applog.Debugf("build info: %v", err)
	}

	// One thread for the audio callback, one for I/O and the UI.
	runtime.GOMAXPROCS(2)

	if err := cmd.Execute(os.Args[1:]); err != nil {
		applog.Fatalf("%v", err)
	}
}
