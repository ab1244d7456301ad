// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"ledaudio/internal/config"
)

var errHost = errors.New("host unavailable")

// fakeHost replaces the PortAudio entry points with an in-memory host for
// the duration of the test.
func fakeHost(t *testing.T, infos []*portaudio.DeviceInfo, defaultInput int) {
	t.Helper()
	origInit, origTerm := paLibInitialize, paLibTerminate
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibInitialize, paLibTerminate = origInit, origTerm
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})

	paLibInitialize = func() error { return nil }
	paLibTerminate = func() error { return nil }
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if defaultInput < 0 {
			return nil, errHost
		}
		return infos[defaultInput], nil
	}
}

func testInfos() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{
			Name:                    "Speakers",
			MaxOutputChannels:       2,
			DefaultSampleRate:       48000,
			DefaultLowOutputLatency: 10 * time.Millisecond,
		},
		{
			Name:                    "Line In",
			MaxInputChannels:        2,
			DefaultSampleRate:       44100,
			DefaultLowInputLatency:  5 * time.Millisecond,
			DefaultHighInputLatency: 20 * time.Millisecond,
		},
		{
			Name:              "USB Mic",
			MaxInputChannels:  1,
			MaxOutputChannels: 1,
			DefaultSampleRate: 16000,
		},
	}
}

func TestInputDevice(t *testing.T) {
	fakeHost(t, testInfos(), 2)

	tests := []struct {
		name    string
		id      int
		want    string
		wantErr string
	}{
		{"default", config.MinDeviceID, "USB Mic", ""},
		{"input device", 1, "Line In", ""},
		{"duplex device", 2, "USB Mic", ""},
		{"output only", 0, "", "does not support input"},
		{"below default", -2, "", "invalid device ID"},
		{"past the end", 3, "", "invalid device ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := InputDevice(tt.id)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("InputDevice(%d) error = %v, expected %q", tt.id, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("InputDevice(%d): %v", tt.id, err)
			}
			if dev.Name != tt.want {
				t.Errorf("InputDevice(%d) = %q, expected %q", tt.id, dev.Name, tt.want)
			}
		})
	}
}

func TestInputDeviceHostErrors(t *testing.T) {
	t.Run("no default device", func(t *testing.T) {
		fakeHost(t, testInfos(), -1)
		if _, err := InputDevice(config.MinDeviceID); !errors.Is(err, errHost) {
			t.Errorf("error = %v, expected %v", err, errHost)
		}
	})

	t.Run("device enumeration", func(t *testing.T) {
		fakeHost(t, testInfos(), 1)
		paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return nil, errHost }
		if _, err := InputDevice(1); !errors.Is(err, errHost) {
			t.Errorf("InputDevice error = %v, expected %v", err, errHost)
		}
		if _, err := HostDevices(); !errors.Is(err, errHost) {
			t.Errorf("HostDevices error = %v, expected %v", err, errHost)
		}
	})
}

func TestHostDevices(t *testing.T) {
	fakeHost(t, testInfos(), 1)

	devices, err := HostDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, expected 3", len(devices))
	}

	want := Device{
		ID:                1,
		Name:              "Line In",
		MaxInputChannels:  2,
		DefaultSampleRate: 44100,
		LowInputLatency:   5 * time.Millisecond,
		HighInputLatency:  20 * time.Millisecond,
	}
	if devices[1] != want {
		t.Errorf("devices[1] = %+v, expected %+v", devices[1], want)
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("device %q has ID %d, expected %d", d.Name, d.ID, i)
		}
	}
}

func TestHostDevicesEmpty(t *testing.T) {
	fakeHost(t, nil, -1)

	devices, err := HostDevices()
	if err != nil {
		t.Fatal(err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("HostDevices() = %#v, expected an empty non-nil slice", devices)
	}

	var out bytes.Buffer
	if err := ListDevices(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No audio devices") {
		t.Errorf("ListDevices() = %q", out.String())
	}
}

func TestListDevices(t *testing.T) {
	fakeHost(t, testInfos(), 1)

	var out bytes.Buffer
	if err := ListDevices(&out); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{
		"[0] Speakers (Output)",
		"[1] Line In (Input)",
		"[2] USB Mic (Input/Output)",
		"Capture latency: 5.00-20.00 ms",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output is missing %q:\n%s", want, text)
		}
	}
	if strings.Count(text, "Capture latency") != 2 {
		t.Errorf("expected capture latency for the two input devices only:\n%s", text)
	}
}

func TestGetDevices(t *testing.T) {
	fakeHost(t, testInfos(), 1)
	var calls []string
	paLibInitialize = func() error { calls = append(calls, "init"); return nil }
	paLibTerminate = func() error { calls = append(calls, "term"); return nil }

	devices, err := GetDevices()
	if err != nil || len(devices) != 3 {
		t.Fatalf("GetDevices() = %d devices, %v", len(devices), err)
	}
	if strings.Join(calls, ",") != "init,term" {
		t.Errorf("PortAudio calls = %v, expected init then term", calls)
	}

	paLibInitialize = func() error { return errHost }
	if _, err := GetDevices(); !errors.Is(err, errHost) {
		t.Errorf("GetDevices error = %v, expected %v", err, errHost)
	}
	if err := Terminate(); err != nil {
		t.Errorf("Terminate: %v", err)
	}
}

func TestDeviceType(t *testing.T) {
	tests := []struct {
		in, out int
		want    string
	}{
		{2, 2, "Input/Output"},
		{1, 0, "Input"},
		{0, 2, "Output"},
		{0, 0, "None"},
	}
	for _, tt := range tests {
		d := Device{MaxInputChannels: tt.in, MaxOutputChannels: tt.out}
		if got := d.Type(); got != tt.want {
			t.Errorf("Type(%d in, %d out) = %q, expected %q", tt.in, tt.out, got, tt.want)
		}
	}
}
