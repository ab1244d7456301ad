package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture engine and the analysis pipeline.
const (
	// Default values for the audio engine configuration
	DefaultChannels      = 1           // Mono capture; wider inputs are downmixed
	DefaultDeviceID      = MinDeviceID // Default to system default device
	DefaultFormat        = "wav"       // WAV file format for recordings
	DefaultLowLatency    = false       // Standard latency mode
	DefaultClipThreshold = 0.99        // Peak ratio of full scale flagged as clipping
	DefaultOutputDir     = "./recordings"
	DefaultLogLevel      = "info"

	// Default values for the pipeline
	DefaultWindow           = "hamming"
	DefaultHarmonyTickDiv   = 2    // Harmony chain on every second hop
	DefaultSilenceThreshold = 0.01 // RhythmEnergy below this is silence
	DefaultBudgetFraction   = 1.0  // Fraction of the hop period a hop may take

	// Default values for the transports
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 16 * time.Millisecond // ~60 Hz, every second hop
	DefaultWebSocketAddress = "127.0.0.1:8080"

	// Hardware and processing limits
	MinDeviceID    = -1 // -1 represents system default device
	MaxChannels    = 8  // Widest input the downmix accepts
	MaxTickDiv     = 16 // Slowest Harmony cadence (every 128 ms)
	MinSendPeriod  = time.Millisecond
	MaxRecordHours = 24

	// Error handling configuration
	DefaultMaxConsecutiveWriteFailures = 5 // Max failures before stopping
)
