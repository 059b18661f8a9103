package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"imgpilot/internal/processor"
)

// Model renders live batch progress from a processor event stream. It quits
// when the stream closes.
type Model struct {
	events      <-chan processor.ProgressEvent
	started     time.Time
	width       int
	total       int
	completed   int
	failed      int
	bytesBefore int64
	bytesAfter  int64
	last        string
	quitting    bool
}

type doneMsg struct{}

type eventMsg processor.ProgressEvent

func NewModel(events <-chan processor.ProgressEvent, total int) Model {
	return Model{events: events, total: total, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.completed = msg.Completed
		m.total = msg.Total
		res := msg.Last
		if res.Status == processor.StatusSuccess {
			m.bytesBefore += res.OriginalSize
			m.bytesAfter += res.OutputSize
		} else {
			m.failed++
		}
		m.last = fmt.Sprintf("%s → %s", filepath.Base(res.Source), res.Target)
		return m, listenForEvents(m.events)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.completed) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}

	bar := renderBar(barWidth, ratio)
	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render("imgpilot"),
		labelStyle.Render(fmt.Sprintf("Outputs: %d/%d", m.completed, m.total)) + dimStyle.Render(fmt.Sprintf("  failed:%d", m.failed)),
		labelStyle.Render(fmt.Sprintf("Size: %s → %s", FormatBytes(m.bytesBefore), FormatBytes(m.bytesAfter))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(bar),
	}
	if m.last != "" {
		lines = append(lines, dimStyle.Render(m.last))
	}

	return strings.Join(lines, "\n")
}

func listenForEvents(events <-chan processor.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}
