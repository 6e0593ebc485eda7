// Package tui implements the terminal control panel
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/oisee/freqengine/pkg/config"
	"github.com/oisee/freqengine/pkg/preset"
	"github.com/oisee/freqengine/pkg/session"
	"github.com/oisee/freqengine/pkg/synth"
)

const (
	fineStep   = 1.0
	coarseStep = 10.0
	ampStep    = 0.05
	beatStep   = 0.5
)

// Model is the main TUI model. It only ever touches the engine's control path.
type Model struct {
	Engine  *synth.Engine
	Session *session.Timer

	// View state
	Width    int
	Height   int
	ShowHelp bool

	// Preset browser
	Category int
	Preset   int // index within the category, -1 when the frequency is custom
	Beat     int

	Octave int // Current input octave

	// Saved templates, empty TemplateFile disables them
	TemplateFile string
	Template     int

	// Status message
	StatusMsg string
}

// NewModel creates a new TUI model. timer may be nil for unlimited play.
func NewModel(engine *synth.Engine, timer *session.Timer) Model {
	return Model{
		Engine:  engine,
		Session: timer,
		Octave:  4,
		Width:   80,
		Height:  24,
		Preset:  -1,
		Beat:    -1,

		TemplateFile: config.DefaultTemplateFile,
		Template:     -1,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(),
	)
}

// tickMsg is sent periodically for session accounting
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tickMsg:
		if m.Session != nil && !m.Session.Done() && m.Session.Tick(time.Time(msg)) {
			m.StatusMsg = "Session complete"
		}
		return m, tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.Engine

	switch msg.String() {
	case "ctrl+c", "q", "esc":
		e.Stop()
		return m, tea.Quit

	case "f1":
		m.ShowHelp = !m.ShowHelp

	// Transport
	case " ":
		if m.Session != nil && m.Session.Done() {
			m.Session.Restart()
		}
		e.Toggle()
		m.StatusMsg = ""

	case "enter":
		e.Stop()

	// Frequency
	case "up":
		m.nudgeFrequency(fineStep)
	case "down":
		m.nudgeFrequency(-fineStep)
	case "shift+up":
		m.nudgeFrequency(coarseStep)
	case "shift+down":
		m.nudgeFrequency(-coarseStep)
	case "pgup":
		m.setFrequency(e.Frequency() * 2)
	case "pgdown":
		m.setFrequency(e.Frequency() / 2)

	// Amplitude
	case "+", "=":
		e.SetAmplitude(e.Amplitude() + ampStep)
	case "-", "_":
		e.SetAmplitude(e.Amplitude() - ampStep)

	// Waveform
	case "f2":
		e.SetWaveform(e.Waveform().Next())

	// Presets
	case "tab":
		m.Category = (m.Category + 1) % len(preset.Categories)
		m.Preset = -1
	case "shift+tab":
		m.Category--
		if m.Category < 0 {
			m.Category = len(preset.Categories) - 1
		}
		m.Preset = -1
	case "right":
		m.selectPreset(m.Preset + 1)
	case "left":
		m.selectPreset(m.Preset - 1)

	// Binaural
	case "f3":
		on, beat := e.Binaural()
		e.SetBinaural(!on, beat)
	case "f4":
		m.Beat = (m.Beat + 1) % len(preset.Beats)
		e.SetBinaural(true, preset.Beats[m.Beat].Hz)
	case "]":
		on, beat := e.Binaural()
		e.SetBinaural(on, beat+beatStep)
		m.Beat = -1
	case "[":
		on, beat := e.Binaural()
		e.SetBinaural(on, beat-beatStep)
		m.Beat = -1

	// Session length
	case "f5":
		m.cycleSession()

	// Templates
	case "f6":
		m.saveTemplate()
	case "f7":
		m.nextTemplate()

	// Octave
	case "*":
		if m.Octave < 7 {
			m.Octave++
		}
	case "/":
		if m.Octave > 0 {
			m.Octave--
		}

	default:
		// Check for note input
		if note := keyToNote(msg.String(), m.Octave); note >= 0 {
			m.setFrequency(preset.NoteToFreq(note))
			m.StatusMsg = "Note " + preset.NoteToString(note)
		}
	}

	return m, nil
}

// cycleSession steps a single-frequency session through the duration presets,
// creating one if the panel started unlimited
func (m *Model) cycleSession() {
	if m.Session == nil {
		m.Session = session.New(context.Background(), m.Engine, session.DefaultDuration)
	} else if len(m.Session.Segments()) > 0 {
		m.StatusMsg = "Sequence length is set by its segments"
		return
	} else {
		m.Session.SetDuration(session.NextDuration(m.Session.Duration()))
	}
	m.StatusMsg = "Session " + m.Session.Duration().String()
}

// saveTemplate stores the current sound under a name derived from it
func (m *Model) saveTemplate() {
	if m.TemplateFile == "" {
		return
	}
	e := m.Engine
	name := fmt.Sprintf("%.2f Hz %s", e.Frequency(), e.Waveform())
	if on, beat := e.Binaural(); on {
		name += fmt.Sprintf(" +%.1f", beat)
	}
	if _, err := config.SaveTemplate(context.Background(), m.TemplateFile, config.Capture(e, name, "")); err != nil {
		m.StatusMsg = "Save failed: " + err.Error()
		return
	}
	m.StatusMsg = "Saved template " + name
}

// nextTemplate applies the next saved template
func (m *Model) nextTemplate() {
	if m.TemplateFile == "" {
		return
	}
	list, err := config.LoadTemplates(m.TemplateFile)
	if err != nil {
		m.StatusMsg = "Load failed: " + err.Error()
		return
	}
	if len(list) == 0 {
		m.StatusMsg = "No saved templates"
		return
	}
	m.Template = (m.Template + 1) % len(list)
	list[m.Template].Apply(m.Engine)
	m.Preset, m.Beat = -1, -1
	m.StatusMsg = "Template " + list[m.Template].Name
}

func (m *Model) setFrequency(hz float64) {
	m.Engine.SetFrequency(hz)
	m.Preset = -1
}

func (m *Model) nudgeFrequency(delta float64) {
	m.setFrequency(m.Engine.Frequency() + delta)
}

func (m *Model) selectPreset(i int) {
	list := preset.ByCategory(preset.Categories[m.Category])
	if len(list) == 0 {
		return
	}
	if i < 0 {
		i = len(list) - 1
	}
	i %= len(list)
	m.Engine.SetFrequency(list[i].Hz)
	m.Preset = i
	m.StatusMsg = fmt.Sprintf("Preset %s %s", list[i].Label, list[i].Description)
}

// keyToNote converts keyboard key to note number
func keyToNote(key string, octave int) int8 {
	// Piano-style keyboard layout:
	// Lower row: Z S X D C V G B H N J M (white + black keys)
	// Upper row: 2 W 3 E R 5 T 6 Y 7 U
	notes := map[string]int{
		// Lower octave
		"z": 0, "s": 1, "x": 2, "d": 3, "c": 4, "v": 5,
		"g": 6, "b": 7, "h": 8, "n": 9, "j": 10, "m": 11,
		// Upper octave
		"2": 13, "w": 14, "3": 15, "e": 16, "r": 17,
		"5": 18, "t": 19, "6": 20, "y": 21, "7": 22, "u": 23,
		"i": 24, "9": 25, "o": 26, "0": 27, "p": 28,
	}

	if n, ok := notes[key]; ok {
		note := octave*12 + n
		if note > 95 {
			return -1
		}
		return int8(note)
	}
	return -1
}

// nearestNote returns the note closest to hz, clamped to the tracker range
func nearestNote(hz float64) int8 {
	n := math.Round(57 + 12*math.Log2(hz/440))
	return int8(max(0, min(95, n)))
}

// View implements tea.Model
func (m Model) View() string {
	if m.ShowHelp {
		return m.helpView()
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")
	b.WriteString(m.controlsView())
	b.WriteString("\n")
	b.WriteString(m.presetView())
	b.WriteString("\n")
	if m.Session != nil {
		b.WriteString(m.sessionView())
		b.WriteString("\n")
	}
	if m.StatusMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render(m.StatusMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.footerView())
	return b.String()
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(11)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
)

func (m Model) headerView() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("14")).
		Render("FREQENGINE")

	state := m.Engine.State()
	color := lipgloss.Color("8")
	switch state {
	case synth.Playing:
		color = lipgloss.Color("10")
	case synth.Paused:
		color = lipgloss.Color("11")
	}
	status := lipgloss.NewStyle().Foreground(color).Render(state.String())

	info := fmt.Sprintf(" │ %d Hz │ Oct:%d │ ", m.Engine.SampleRate(), m.Octave)
	return title + info + status
}

func bar(frac float64, width int) string {
	frac = max(0, min(1, frac))
	filled := int(math.Round(frac * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func (m Model) controlsView() string {
	e := m.Engine
	freq := e.Frequency()
	on, beat := e.Binaural()

	binaural := "off"
	if on {
		binaural = fmt.Sprintf("+%.1f Hz (R %.2f Hz)", beat, freq+beat)
		if m.Beat >= 0 {
			binaural += " " + preset.Beats[m.Beat].Label
		}
	}

	rows := [][2]string{
		{"Frequency", fmt.Sprintf("%.2f Hz  ~%s", freq, preset.NoteToString(nearestNote(freq)))},
		{"Amplitude", fmt.Sprintf("%s %3.0f%%", bar(e.Amplitude(), 20), e.Amplitude()*100)},
		{"Waveform", e.Waveform().String()},
		{"Binaural", binaural},
	}

	var lines []string
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+valueStyle.Render(r[1]))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) presetView() string {
	var tabs []string
	for i, c := range preset.Categories {
		style := lipgloss.NewStyle().Padding(0, 1)
		if i == m.Category {
			style = style.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
		} else {
			style = style.Foreground(lipgloss.Color("8"))
		}
		tabs = append(tabs, style.Render(strings.ToUpper(string(c))))
	}

	var items []string
	for i, f := range preset.ByCategory(preset.Categories[m.Category]) {
		style := lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("13"))
		if i == m.Preset {
			style = style.Background(lipgloss.Color("4")).Bold(true)
		}
		items = append(items, style.Render(f.Label))
	}

	return strings.Join(tabs, "") + "\n" + strings.Join(items, "") + "\n"
}

func (m Model) sessionView() string {
	s := m.Session
	if s.Duration() <= 0 {
		return labelStyle.Render("Session") + valueStyle.Render("unlimited, "+s.Elapsed().Truncate(time.Second).String())
	}
	line := labelStyle.Render("Session") +
		valueStyle.Render(fmt.Sprintf("%s %s left", bar(s.Progress(), 20), s.Remaining().Truncate(time.Second)))
	if i, seg, ok := s.Segment(); ok {
		line += "\n" + labelStyle.Render("Segment") +
			valueStyle.Render(fmt.Sprintf("%d/%d %s (%.2f Hz, %s)", i+1, len(s.Segments()), seg.Label, seg.Hz, seg.Duration))
	}
	return line
}

func (m Model) footerView() string {
	keys := " [Space]Play/Pause [Enter]Stop [↑↓]Freq [+-]Amp [F2]Wave [←→]Preset [F3]Binaural [F1]Help [Q]Quit"
	return lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(keys)
}

func (m Model) helpView() string {
	help := `
╔══════════════════════════════════════════════════════════════════╗
║                    FREQENGINE HELP                               ║
╠══════════════════════════════════════════════════════════════════╣
║ TRANSPORT                                                        ║
║   Space       Play / Pause / Resume                              ║
║   Enter       Stop                                               ║
║                                                                  ║
║ FREQUENCY                                                        ║
║   ↑↓          ±1 Hz          Shift+↑↓  ±10 Hz                    ║
║   PgUp/PgDn   Octave up/down                                     ║
║   Tab         Next preset group   ←→  Previous/next preset       ║
║                                                                  ║
║ NOTE INPUT (piano keyboard)                                      ║
║   Z S X D C V G B H N J M  - Lower octave (C to B)               ║
║   2 W 3 E R 5 T 6 Y 7 U    - Upper octave                        ║
║   * /         Octave up/down                                     ║
║                                                                  ║
║ SOUND                                                            ║
║   + -         Amplitude                                          ║
║   F2          Next waveform                                      ║
║   F3          Binaural on/off    F4  Next brainwave beat         ║
║   [ ]         Beat -/+ 0.5 Hz                                    ║
║                                                                  ║
║ SESSION                                                          ║
║   F5          Session length 1m / 3m / 5m / 10m                  ║
║   F6          Save template      F7  Load next template          ║
║                                                                  ║
║                              [F1] Close help                     ║
╚══════════════════════════════════════════════════════════════════╝
`
	return lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Render(help)
}
