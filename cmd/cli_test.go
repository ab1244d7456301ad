package cmd

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"ledaudio/internal/config"
	"ledaudio/internal/frontend"
	applog "ledaudio/internal/log"
)

func TestApplyFlags(t *testing.T) {
	opts := &options{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.IntVar(&opts.deviceID, "device", config.DefaultDeviceID, "")
	fs.IntVar(&opts.channels, "channels", config.DefaultChannels, "")
	fs.BoolVar(&opts.record, "record", false, "")
	fs.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "")
	if err := fs.Parse([]string{"--device", "3", "--record", "--log-level", "warn"}); err != nil {
		t.Fatal(err)
	}
	opts.udpTarget = "10.0.0.2:7777"

	cfg := config.Default()
	cfg.Audio.InputChannels = 2 // From a file; --channels was not given.
	applyFlags(cfg, fs, opts)

	if cfg.Audio.InputDevice != 3 {
		t.Errorf("InputDevice = %d, expected 3", cfg.Audio.InputDevice)
	}
	if cfg.Audio.InputChannels != 2 {
		t.Errorf("InputChannels = %d, expected the file value 2", cfg.Audio.InputChannels)
	}
	if !cfg.Recording.Enabled || cfg.LogLevel != "warn" {
		t.Errorf("record/log-level not applied: %+v, %q", cfg.Recording, cfg.LogLevel)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7777" {
		t.Errorf("udp not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.WebSocketEnabled {
		t.Error("websocket enabled without --ws")
	}
}

func TestStartOutputs(t *testing.T) {
	prev := applog.GetLevel()
	applog.SetLevel(applog.LevelDebug)
	t.Cleanup(func() { applog.SetLevel(prev) })

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	cfg := config.Default()
	cfg.Transport.UDPEnabled = true
	cfg.Transport.UDPTargetAddress = conn.LocalAddr().String()
	cfg.Transport.UDPSendInterval = time.Millisecond
	cfg.Transport.WebSocketEnabled = true
	cfg.Transport.WebSocketAddress = "127.0.0.1:0"

	h := frontend.NewHandoff()
	out, err := startOutputs(cfg, h)
	if err != nil {
		t.Fatalf("startOutputs: %v", err)
	}
	if out.udp == nil || out.websocket == nil || out.forwarder == nil {
		t.Fatalf("outputs not started: %+v", out)
	}
	if !strings.HasPrefix(out.websocket.Addr(), "127.0.0.1:") {
		t.Errorf("websocket listening on %q", out.websocket.Addr())
	}

	h.Publish(&frontend.Frame{HopIndex: 1, BPM: 120})

	buf := make([]byte, 1024)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadFrom(buf); err != nil {
		t.Errorf("no UDP packet received: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestStartOutputsNone(t *testing.T) {
	prev := applog.GetLevel()
	applog.SetLevel(applog.LevelInfo)
	t.Cleanup(func() { applog.SetLevel(prev) })

	out, err := startOutputs(config.Default(), frontend.NewHandoff())
	if err != nil {
		t.Fatal(err)
	}
	if out.udp != nil || out.websocket != nil || out.forwarder != nil {
		t.Errorf("default configuration started outputs: %+v", out)
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestVersionFlag(t *testing.T) {
	out, err := runCommand(t, "--version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "commit") {
		t.Errorf("--version printed %q", out)
	}
}
