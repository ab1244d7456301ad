// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ledaudio/internal/analysis"
	applog "ledaudio/internal/log"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces the debug log level).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Capture settings.
	Pipeline  PipelineConfig  `yaml:"pipeline"`  // Feature-extraction settings.
	Recording RecordingConfig `yaml:"recording"` // Capture recording settings.
	Transport TransportConfig `yaml:"transport"` // Frame transport settings.
}

// AudioConfig holds settings related to audio capture. The sample rate and
// buffer size are fixed by the pipeline (16 kHz, 128-sample hops).
type AudioConfig struct {
	InputDevice    int     `yaml:"input_device"`    // PortAudio device index for audio input (-1 for default).
	InputChannels  int     `yaml:"input_channels"`  // Channels to capture; more than one is downmixed to mono.
	LowLatency     bool    `yaml:"low_latency"`     // Request low latency settings from PortAudio device.
	ClipThreshold  float64 `yaml:"clip_threshold"`  // Peak/full-scale ratio at or above which a hop is flagged clipping.
	BudgetFraction float64 `yaml:"budget_fraction"` // A hop taking longer than this fraction of 8 ms counts as an overrun.
}

// PipelineConfig mirrors the tunable parts of frontend.Config.
type PipelineConfig struct {
	Window               string      `yaml:"window"`                  // Analysis window ("hamming", "hann", "blackman", ...).
	HarmonyTickDiv       int         `yaml:"harmony_tick_div"`        // Run the Harmony chain every n-th hop.
	NoiseFloorDecay      float64     `yaml:"noise_floor_decay"`       // Per-update upward drift of the noise floor.
	NoiseFloorMargin     float64     `yaml:"noise_floor_margin"`      // Multiplier applied to the floor before subtraction.
	NoveltyCompress      bool        `yaml:"novelty_compress"`        // Square-root compress the novelty curve.
	SilenceThreshold     float64     `yaml:"silence_threshold"`       // RhythmEnergy below which a frame is silent.
	StabilityDepth       int         `yaml:"stability_depth"`         // Chroma history length.
	SkipHarmonyOnOverrun bool        `yaml:"skip_harmony_on_overrun"` // Drop the next Harmony tick after a budget overrun.
	Tempo                TempoConfig `yaml:"tempo"`
}

// TempoConfig holds the tempo tracker settings exposed to users.
type TempoConfig struct {
	MinBPM        float64 `yaml:"min_bpm"`
	SpacingBPM    float64 `yaml:"spacing_bpm"`
	Bins          int     `yaml:"bins"`
	BlendVU       bool    `yaml:"blend_vu"`
	LockThreshold float64 `yaml:"lock_threshold"`
}

// RecordingConfig holds settings related to capture recording.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Enable recording of the captured input.
	OutputDir   string `yaml:"output_dir"`           // Directory to save recorded audio files.
	Format      string `yaml:"format"`               // File format for recordings (only "wav").
	MaxDuration int    `yaml:"max_duration_seconds"` // Maximum duration of a recording in seconds (0 for unlimited).
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve frames as JSON over a websocket.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address of the websocket server.
}

// Default returns the built-in configuration. It matches the canonical
// pipeline of frontend.DefaultConfig.
func Default() *Config {
	tempo := analysis.DefaultTempoConfig()
	return &Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:    DefaultDeviceID,
			InputChannels:  DefaultChannels,
			LowLatency:     DefaultLowLatency,
			ClipThreshold:  DefaultClipThreshold,
			BudgetFraction: DefaultBudgetFraction,
		},
		Pipeline: PipelineConfig{
			Window:           DefaultWindow,
			HarmonyTickDiv:   DefaultHarmonyTickDiv,
			NoiseFloorDecay:  analysis.DefaultNoiseFloorDecay,
			NoiseFloorMargin: analysis.DefaultNoiseFloorMargin,
			NoveltyCompress:  true,
			SilenceThreshold: DefaultSilenceThreshold,
			StabilityDepth:   analysis.DefaultStabilityDepth,
			Tempo: TempoConfig{
				MinBPM:        tempo.MinBPM,
				SpacingBPM:    tempo.SpacingBPM,
				Bins:          tempo.Bins,
				BlendVU:       tempo.BlendVU,
				LockThreshold: tempo.LockThreshold,
			},
		},
		Recording: RecordingConfig{
			Enabled:     false,
			OutputDir:   DefaultOutputDir,
			Format:      DefaultFormat,
			MaxDuration: 0, // 0 for unlimited.
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml", "ledaudio.yaml"}
		for _, candidate := range candidates {
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
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the sections that frontend.Config.Validate does not see.
// Pipeline values are checked again when the front end is built.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}

	// Audio Validation
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("%w: audio.input_device %d", ErrInvalid, c.Audio.InputDevice)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxChannels {
		return fmt.Errorf("%w: audio.input_channels %d not in [1, %d]", ErrInvalid, c.Audio.InputChannels, MaxChannels)
	}
	if c.Audio.ClipThreshold <= 0 || c.Audio.ClipThreshold > 1 {
		return fmt.Errorf("%w: audio.clip_threshold %v not in (0, 1]", ErrInvalid, c.Audio.ClipThreshold)
	}
	if c.Audio.BudgetFraction <= 0 {
		return fmt.Errorf("%w: audio.budget_fraction must be positive", ErrInvalid)
	}

	// Pipeline Validation
	if _, err := analysis.ParseWindowFunc(c.Pipeline.Window); err != nil {
		return fmt.Errorf("%w: pipeline.window: %v", ErrInvalid, err)
	}
	if c.Pipeline.HarmonyTickDiv < 1 || c.Pipeline.HarmonyTickDiv > MaxTickDiv {
		return fmt.Errorf("%w: pipeline.harmony_tick_div %d not in [1, %d]", ErrInvalid, c.Pipeline.HarmonyTickDiv, MaxTickDiv)
	}

	// Recording Validation
	if c.Recording.Enabled {
		if !strings.EqualFold(c.Recording.Format, DefaultFormat) {
			return fmt.Errorf("%w: recording.format %q (only wav is supported)", ErrInvalid, c.Recording.Format)
		}
		if c.Recording.OutputDir == "" {
			return fmt.Errorf("%w: recording.output_dir must be set when recording is enabled", ErrInvalid)
		}
	}
	if c.Recording.MaxDuration < 0 || c.Recording.MaxDuration > MaxRecordHours*3600 {
		return fmt.Errorf("%w: recording.max_duration_seconds %d", ErrInvalid, c.Recording.MaxDuration)
	}

	// Transport Validation
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("%w: transport.udp_target_address must be set when UDP is enabled", ErrInvalid)
		}
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("%w: transport.udp_target_address '%s' appears invalid (missing port?)", ErrInvalid, c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval < MinSendPeriod {
			return fmt.Errorf("%w: transport.udp_send_interval must be at least %v", ErrInvalid, MinSendPeriod)
		}
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		return fmt.Errorf("%w: transport.websocket_address must be set when the websocket is enabled", ErrInvalid)
	}

	return nil
}

// applyEnvOverrides applies the ENV_* variables on top of the file values.
// Unparsable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("configuration: overriding log_level from env: %s", val)
	}
	// ENV_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
			applog.Infof("configuration: overriding audio.input_device from env: %d", iVal)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}

	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = val
		applog.Infof("configuration: overriding transport.websocket_address from env: %s", val)
	}
}
