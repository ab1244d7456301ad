package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledaudio/internal/audio"
	"ledaudio/internal/config"
	"ledaudio/internal/frontend"
	applog "ledaudio/internal/log"
	"ledaudio/internal/transport"
	"ledaudio/internal/transport/udp"
	"ledaudio/internal/tui"
)

// logEvery is the number of forwarded frames between debug summaries.
const logEvery = 60

// outputs are the consumers of the live frame stream.
type outputs struct {
	udp       *udp.UDPPublisher
	forwarder *transport.Forwarder
	websocket *transport.WebSocketTransport
}

// startOutputs starts every enabled consumer of source.
func startOutputs(cfg *config.Config, source transport.FrameSource) (*outputs, error) {
	out := &outputs{}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, source)
		if err != nil {
			sender.Close()
			return nil, err
		}
		pub.Start()
		out.udp = pub
	}

	var sinks []transport.Transport
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err := ws.Start(); err != nil {
			out.Close()
			return nil, err
		}
		out.websocket = ws
		sinks = append(sinks, ws)
	}
	if applog.Enabled(applog.LevelDebug) {
		sinks = append(sinks, transport.NewLoggingTransport(logEvery))
	}

	if len(sinks) > 0 {
		fwd, err := transport.NewForwarder(source, cfg.Transport.UDPSendInterval, sinks...)
		if err != nil {
			out.Close()
			return nil, err
		}
		fwd.Start()
		out.forwarder = fwd
	}
	return out, nil
}

// Close stops every consumer.
func (o *outputs) Close() error {
	var errs []error
	if o.forwarder != nil {
		errs = append(errs, o.forwarder.Close())
	} else if o.websocket != nil {
		errs = append(errs, o.websocket.Close())
	}
	if o.udp != nil {
		errs = append(errs, o.udp.Close())
	}
	return errors.Join(errs...)
}

// runLive captures from the configured device until interrupted or until
// the monitor exits.
func runLive(cfg *config.Config, opts *options) error {
	feCfg, err := cfg.FrontEndConfig()
	if err != nil {
		return err
	}
	fe, err := frontend.New(feCfg)
	if err != nil {
		return err
	}
	handoff := frontend.NewHandoff()

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			log.Warnf("%v", err)
		}
	}()

	engine, err := audio.NewEngine(cfg, fe, handoff)
	if err != nil {
		return err
	}

	out, err := startOutputs(cfg, handoff)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Errorf("closing outputs: %v", err)
		}
	}()

	if err := engine.StartInputStream(); err != nil {
		return err
	}

	var recordingPath string
	if cfg.Recording.Enabled {
		recordingPath = opts.output
		if recordingPath == "" {
			if recordingPath, err = audio.RecordingPath(cfg.Recording.OutputDir, time.Now()); err != nil {
				engine.Close()
				return err
			}
		}
		if err := engine.StartRecording(recordingPath); err != nil {
			engine.Close()
			return err
		}
	}

	if opts.monitor {
		// Log lines would tear the alternate screen.
		applog.SetOutput(io.Discard)
		err = tui.StartMonitorUI(handoff, fe.Stats)
		applog.SetOutput(nil)
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		log.Infof("capturing, press Ctrl+C to stop")
		<-ctx.Done()
		stop()
	}

	if cerr := engine.Close(); cerr != nil {
		log.Errorf("closing audio engine: %v", cerr)
	}
	if recordingPath != "" {
		fmt.Printf("\nRecording saved to: %s\n", recordingPath)
	}
	return err
}
