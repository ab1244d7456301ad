// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ledaudio/internal/analysis"
	"ledaudio/internal/frontend"
	"ledaudio/internal/transport"
)

// DefaultRefresh is the monitor redraw period.
const DefaultRefresh = 50 * time.Millisecond

// beatHold is the number of redraws a beat tick stays visible.
const beatHold = 3

var noteNames = [analysis.PitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var sparkRunes = []rune(" ▁▂▃▄▅▆▇█")

var (
	labelStyle = lipgloss.NewStyle().Width(9).Bold(true)
	beatStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")).Bold(true)

	keyPause = key.NewBinding(key.WithKeys("p", " "))
)

type tickMsg time.Time

// MonitorModel shows the newest feature frame of a running pipeline.
type MonitorModel struct {
	source  transport.FrameSource
	stats   func() frontend.Stats
	refresh time.Duration

	frame  frontend.Frame
	seq    uint64
	beat   int // Redraws left with the beat indicator lit.
	paused bool
}

// NewMonitorModel creates a monitor over source. stats may be nil.
func NewMonitorModel(source transport.FrameSource, stats func() frontend.Stats, refresh time.Duration) MonitorModel {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return MonitorModel{source: source, stats: stats, refresh: refresh}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the redraw timer.
func (m MonitorModel) Init() tea.Cmd {
	return m.tick()
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keyQuit):
			return m, tea.Quit
		case key.Matches(msg, keyPause):
			m.paused = !m.paused
		}
		return m, nil

	case tickMsg:
		m.poll()
		return m, m.tick()
	}
	return m, nil
}

// poll pulls the newest frame from the source.
func (m *MonitorModel) poll() {
	if m.beat > 0 {
		m.beat--
	}
	if m.paused {
		return
	}
	frame, seq := m.source.Latest()
	if seq == 0 || seq == m.seq {
		return
	}
	// Ticks last one hop, so most are never seen by a redraw; a phase wrap
	// since the last redraw counts as well.
	if frame.BeatTick || (frame.TempoLocked && frame.BeatPhase < m.frame.BeatPhase) {
		m.beat = beatHold
	}
	m.frame, m.seq = frame, seq
}

// Frame returns the frame currently displayed.
func (m MonitorModel) Frame() (frontend.Frame, uint64) { return m.frame, m.seq }

func (m MonitorModel) View() string {
	var sb strings.Builder
	f := &m.frame

	title := titleStyle.Render("ledaudio monitor")
	if m.paused {
		title += " " + warnStyle.Render("PAUSED")
	}
	sb.WriteString(title)
	sb.WriteString("\n\n")

	if m.seq == 0 {
		sb.WriteString("Waiting for audio...\n\n")
		sb.WriteString(infoStyle.Render("q: Quit"))
		return sb.String()
	}

	fmt.Fprintf(&sb, "%s t=%.3fs  hop %d\n\n", labelStyle.Render("Stream"), f.Seconds(), f.HopIndex)

	fmt.Fprintf(&sb, "%s %s  energy %.2f  novelty %.2f  %s\n",
		labelStyle.Render("Rhythm"), Sparkline(f.RhythmBins[:]), f.RhythmEnergy, f.RhythmNovelty, f.RhythmLevel)
	fmt.Fprintf(&sb, "%s %s  %s\n",
		labelStyle.Render("Harmony"), Sparkline(f.HarmonyBins[:]), f.HarmonyLevel)
	fmt.Fprintf(&sb, "%s clarity %.2f  stability %.2f\n", labelStyle.Render("Key"), f.KeyClarity, f.ChromaStability)
	for i, v := range f.Chroma12 {
		fmt.Fprintf(&sb, "  %-2s %s\n", noteNames[i], Bar(v, 24))
	}
	sb.WriteString("\n")

	lock := dimStyle.Render("searching")
	if f.TempoLocked {
		lock = highlightStyle.Render("LOCKED")
	}
	beat := dimStyle.Render("○")
	if m.beat > 0 {
		beat = beatStyle.Render("●")
	}
	fmt.Fprintf(&sb, "%s %.0f BPM  %s  phase %s  confidence %s %.2f  %s\n",
		labelStyle.Render("Tempo"), f.BPM, beat, Bar(f.BeatPhase, 10), Bar(f.TempoConfidence, 10), f.TempoConfidence, lock)

	if flags := flagNames(f); flags != "" {
		fmt.Fprintf(&sb, "%s %s\n", labelStyle.Render("Flags"), warnStyle.Render(flags))
	}
	if m.stats != nil {
		s := m.stats()
		fmt.Fprintf(&sb, "%s hops %d  harmony %d  skipped %d  overruns %d\n",
			labelStyle.Render("Stats"), s.Hops, s.HarmonyTicks, s.HarmonySkipped, s.Overruns)
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("p: Pause • q: Quit"))
	return sb.String()
}

func flagNames(f *frontend.Frame) string {
	var names []string
	if f.IsClipping {
		names = append(names, "CLIP")
	}
	if f.IsSilence {
		names = append(names, "SILENCE")
	}
	if f.Overload {
		names = append(names, "OVERLOAD")
	}
	return strings.Join(names, " ")
}

// Sparkline draws one block character per value in [0, 1].
func Sparkline(values []float32) string {
	out := make([]rune, len(values))
	top := len(sparkRunes) - 1
	for i, v := range values {
		out[i] = sparkRunes[int(math.Round(float64(clamp01(v))*float64(top)))]
	}
	return string(out)
}

// Bar draws a horizontal bar of width cells filled to v in [0, 1].
func Bar(v float32, width int) string {
	n := int(math.Round(float64(clamp01(v)) * float64(width)))
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func clamp01(v float32) float32 {
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	return min(v, 1)
}

// StartMonitorUI runs the monitor until the user quits.
func StartMonitorUI(source transport.FrameSource, stats func() frontend.Stats) error {
	p := tea.NewProgram(NewMonitorModel(source, stats, DefaultRefresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
