package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"ledaudio/internal/audio"
	"ledaudio/internal/config"
	applog "ledaudio/internal/log"
	"ledaudio/internal/tui"
	"ledaudio/pkg/build"
)

var log = applog.Named("cli")

// options holds the command line flags. They override the configuration
// file only when set explicitly.
type options struct {
	configPath string
	deviceID   int
	channels   int
	lowLatency bool
	logLevel   string
	verbose    bool
	record     bool
	output     string
	udpTarget  string
	wsAddress  string
	monitor    bool

	// analyze
	jsonLines bool
	every     int

	// list
	listTUI bool
}

// Execute parses the command line and runs the selected command.
func Execute(args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	info := build.Get()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           info.ProgramName(),
		Short:         build.Description,
		Version:       info.String(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			return runLive(cfg, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}
	listCmd.Flags().BoolVar(&opts.listTUI, "tui", false,
		"Pick a device interactively and print its configuration")
	rootCmd.AddCommand(listCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Replay a 16 kHz WAV file through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], opts)
		},
	}
	analyzeCmd.Flags().BoolVar(&opts.jsonLines, "json", false,
		"Print every frame as a JSON line instead of a summary")
	analyzeCmd.Flags().IntVar(&opts.every, "every", 1,
		"With --json, print only every n-th frame")
	rootCmd.AddCommand(analyzeCmd)

	// Configuration
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./ledaudio.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	// Audio Device Configuration
	rootCmd.Flags().IntVarP(&opts.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.Flags().IntVarP(&opts.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture; more than one is downmixed to mono")
	rootCmd.Flags().BoolVarP(&opts.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Recording Configuration
	rootCmd.Flags().BoolVarP(&opts.record, "record", "r", false,
		"Record audio from the specified input device")
	rootCmd.Flags().StringVarP(&opts.output, "output", "o", "",
		"Recording file name. Default is <output_dir>/capture-YYYYMMDD-HHMMSS.wav")

	// Outputs
	rootCmd.Flags().StringVar(&opts.udpTarget, "udp", "",
		"Send binary frames to this UDP address (e.g. 192.168.1.50:9090)")
	rootCmd.Flags().StringVar(&opts.wsAddress, "ws", "",
		"Serve frames as JSON over a websocket on this address")
	rootCmd.Flags().BoolVarP(&opts.monitor, "monitor", "m", false,
		"Show the live feature monitor")

	return rootCmd
}

// loadConfig reads the configuration file and applies explicit flags.
func loadConfig(flags *pflag.FlagSet, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, flags, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applog.SetLevel(cfg.Level())
	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *pflag.FlagSet, opts *options) {
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("verbose") {
		cfg.Debug = opts.verbose
	}
	if flags.Changed("device") {
		cfg.Audio.InputDevice = opts.deviceID
	}
	if flags.Changed("channels") {
		cfg.Audio.InputChannels = opts.channels
	}
	if flags.Changed("low-latency") {
		cfg.Audio.LowLatency = opts.lowLatency
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = opts.record
	}
	if opts.udpTarget != "" {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = opts.udpTarget
	}
	if opts.wsAddress != "" {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = opts.wsAddress
	}
}

// deviceSnippet is the configuration printed after an interactive pick.
type deviceSnippet struct {
	Audio struct {
		InputDevice   int `yaml:"input_device"`
		InputChannels int `yaml:"input_channels"`
	} `yaml:"audio"`
}

func runList(cmd *cobra.Command, opts *options) error {
	if opts.listTUI {
		sel, err := tui.StartDeviceListUI()
		if err != nil {
			return err
		}
		if !sel.Chosen {
			return nil
		}
		var snippet deviceSnippet
		snippet.Audio.InputDevice = sel.DeviceID
		snippet.Audio.InputChannels = sel.Channels
		out, err := yaml.Marshal(&snippet)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# add to config.yaml\n%s", out)
		return nil
	}

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			log.Warnf("%v", err)
		}
	}()
	return audio.ListDevices(cmd.OutOrStdout())
}
