package transport

import "sync/atomic"

// LoggingTransport implements the Transport interface by logging a summary
// of every n-th frame at debug level.
type LoggingTransport struct {
	every uint64
	count atomic.Uint64
}

// NewLoggingTransport creates a LoggingTransport that logs one frame in
// every (a value below one logs all frames).
func NewLoggingTransport(every int) *LoggingTransport {
	log.Infof("using LoggingTransport (every %d frames)", max(1, every))
	return &LoggingTransport{every: uint64(max(1, every))}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.count.Add(1)
	if (n-1)%lt.every != 0 {
		return nil
	}

	frame, ok := frameOf(data)
	if !ok {
		log.Debugf("log transport: received (%T): %+v", data, data)
		return nil // Logging transport never fails to "send"
	}
	log.Debugf("hop %d t=%.3fs energy=%.3f novelty=%.3f bpm=%.0f phase=%.2f conf=%.2f locked=%v tick=%v key=%.2f stab=%.2f levels=%v/%v",
		frame.HopIndex, frame.Seconds(), frame.RhythmEnergy, frame.RhythmNovelty,
		frame.BPM, frame.BeatPhase, frame.TempoConfidence, frame.TempoLocked, frame.BeatTick,
		frame.KeyClarity, frame.ChromaStability, frame.RhythmLevel, frame.HarmonyLevel)
	return nil
}

// Count returns the number of Send calls.
func (lt *LoggingTransport) Count() uint64 { return lt.count.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("log transport: close called after %d frames", lt.Count())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
