package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"relic/internal/kernel"
)

// FrameEvent reports workload progress into the monitor.
type FrameEvent struct {
	Done  int
	Total int
}

type monitorModel struct {
	title   string
	k       *kernel.Kernel
	events  <-chan FrameEvent
	spinner spinner.Model
	prog    progress.Model
	snap    kernel.Snapshot
	frames  FrameEvent
	width   int
	done    bool
}

type frameMsg FrameEvent
type doneMsg struct{}
type snapMsg kernel.Snapshot

// NewMonitor returns a Bubble Tea model that renders a live view of the
// kernel (threads, queues, timers) alongside workload progress. The
// model quits when events closes.
func NewMonitor(title string, k *kernel.Kernel, events <-chan FrameEvent) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	return &monitorModel{
		title:   title,
		k:       k,
		events:  events,
		spinner: sp,
		prog:    prog,
		snap:    k.Snapshot(),
		width:   80,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent(), m.pollSnapshot())
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frames = FrameEvent(msg)
		var cmd tea.Cmd
		if m.frames.Total > 0 {
			cmd = m.prog.SetPercent(float64(m.frames.Done) / float64(m.frames.Total))
		}
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		m.snap = m.k.Snapshot()
		return m, tea.Quit
	case snapMsg:
		if m.done {
			return m, nil
		}
		m.snap = kernel.Snapshot(msg)
		return m, m.pollSnapshot()
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		model, cmd := m.prog.Update(msg)
		m.prog = model.(progress.Model)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *monitorModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := m.width - 28
	if nameWidth < 12 {
		nameWidth = 12
	}
	for _, th := range m.snap.Threads {
		marker := " "
		if th.ID == m.snap.Running {
			marker = ">"
		}
		line := fmt.Sprintf("  %s %-*s pri %3d  %s",
			marker, nameWidth, truncate(th.Name, nameWidth), th.Priority,
			styleState(th.State.String()).Render(fmt.Sprintf("%-8s", th.State)))
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.snap.Threads) > 0 {
		b.WriteString("\n")
	}

	for _, q := range m.snap.Queues {
		line := fmt.Sprintf("  %-*s %s %d/%d", nameWidth, truncate(q.Name, nameWidth),
			depthBar(q.Len, q.Cap), q.Len, q.Cap)
		if q.Senders+q.Receivers > 0 {
			line += fmt.Sprintf("  (%d tx / %d rx waiting)", q.Senders, q.Receivers)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.snap.ArmedTimers > 0 {
		fmt.Fprintf(&b, "\n  armed timers: %d\n", m.snap.ArmedTimers)
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *monitorModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return frameMsg(ev)
	}
}

func (m *monitorModel) pollSnapshot() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return snapMsg(m.k.Snapshot())
	})
}

func depthBar(n, capacity int) string {
	const cells = 10
	filled := 0
	if capacity > 0 {
		filled = n * cells / capacity
	}
	if filled > cells {
		filled = cells
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", cells-filled) + "]"
}

func styleState(state string) lipgloss.Style {
	switch state {
	case "running":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "waiting":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "runnable":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
