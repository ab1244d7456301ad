package log

import (
	"bytes"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		ok       bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"loud", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %v, %v, expected %v, %v", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debugf("hidden %d", 1)
	Infof("hidden %d", 2)
	Warnf("shown %d", 3)
	Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level were written: %q", out)
	}
	if !strings.Contains(out, "[WARN]  shown 3") || !strings.Contains(out, "[ERROR] shown 4") {
		t.Errorf("expected warn and error lines, got %q", out)
	}
}

func TestNamedLogger(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelDebug)

	Named("engine").Infof("hop %d", 42)
	Named("udp").Debugf("sent")

	out := buf.String()
	if !strings.Contains(out, "[INFO]  engine: hop 42") {
		t.Errorf("component prefix missing: %q", out)
	}
	if !strings.Contains(out, "[DEBUG] udp: sent") {
		t.Errorf("debug line missing: %q", out)
	}
}

func TestSubComponentLogger(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelInfo)

	Named("udp").Named("sender").Warnf("refused")
	if out := buf.String(); !strings.Contains(out, "[WARN]  udp/sender: refused") {
		t.Errorf("nested prefix missing: %q", out)
	}
}

func TestEnabled(t *testing.T) {
	prev := GetLevel()
	t.Cleanup(func() { SetLevel(prev) })

	SetLevel(LevelError)
	if Enabled(LevelWarn) || !Enabled(LevelError) || !Enabled(LevelFatal) {
		t.Error("Enabled does not follow the global level")
	}
	if LogLevel(9).String() != "UNKNOWN" {
		t.Errorf("LogLevel(9).String() = %q", LogLevel(9).String())
	}
}
