package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ledaudio/internal/audio"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000},
	{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{ID: 2, Name: "USB Interface", MaxInputChannels: 16, MaxOutputChannels: 2, DefaultSampleRate: 44100},
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func loadedPicker(t *testing.T) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return testDevices, nil })

	msg := m.Init()()
	if _, ok := msg.(devicesMsg); !ok {
		t.Fatalf("Init() produced %T, expected devicesMsg", msg)
	}

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	model, _ = model.Update(msg)
	return model.(DeviceListModel)
}

func TestDeviceListShowsInputDevices(t *testing.T) {
	m := loadedPicker(t)

	if len(m.devices) != 2 {
		t.Fatalf("listed %d devices, expected 2 input devices", len(m.devices))
	}
	view := m.View()
	for _, want := range []string{"Built-in Microphone", "USB Interface", "Input Devices"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() is missing %q", want)
		}
	}
	if strings.Contains(view, "Speakers") {
		t.Error("View() lists an output-only device")
	}
}

func TestDeviceListSelection(t *testing.T) {
	var model tea.Model = loadedPicker(t)

	for _, k := range []string{"down", "down", "enter"} {
		model, _ = model.Update(keyPress(k))
	}
	m := model.(DeviceListModel)
	if m.activeScreen != ConfigScreen {
		t.Fatal("enter did not open the configuration screen")
	}
	if got := len(m.channelOptions); got != 8 {
		t.Errorf("channel options = %d, expected 8 (capped)", got)
	}
	if !strings.Contains(m.View(), "16000 Hz") {
		t.Error("configuration screen does not show the capture rate")
	}

	model, _ = model.Update(keyPress("down"))
	model, cmd := model.Update(keyPress("enter"))
	if !isQuit(cmd) {
		t.Error("confirming a device did not quit the picker")
	}

	got := model.(DeviceListModel).Selection()
	want := Selection{DeviceID: 2, Channels: 2, Chosen: true}
	if got != want {
		t.Errorf("Selection() = %+v, expected %+v", got, want)
	}
}

func TestDeviceListBackAndQuit(t *testing.T) {
	var model tea.Model = loadedPicker(t)

	model, _ = model.Update(keyPress("enter"))
	model, _ = model.Update(keyPress("esc"))
	if model.(DeviceListModel).activeScreen != ListScreen {
		t.Error("esc did not return to the device list")
	}

	model, cmd := model.Update(keyPress("q"))
	if !isQuit(cmd) {
		t.Error("q did not quit")
	}
	if model.(DeviceListModel).Selection().Chosen {
		t.Error("quitting reported a chosen device")
	}
}

func TestDeviceListError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host api") })

	var model tea.Model = m
	model, _ = model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, _ = model.Update(m.Init()())

	if view := model.View(); !strings.Contains(view, "no host api") {
		t.Errorf("View() = %q, expected the fetch error", view)
	}
}
