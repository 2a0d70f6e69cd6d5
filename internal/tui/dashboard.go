// Package tui implements the "pm watch" live dashboard: a Bubbletea model
// that polls a running daemon's control socket and renders area pool load.
//
// Grounded on the teacher's src/internal/tui (App's screen-stack Update/View
// shape, ServersScreen's poll-tick Init/Update pattern) generalized from a
// single flat screen, since "pm watch" has nothing to push onto a stack.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ghabrous/fgc-pm/internal/ctlsock"
	"github.com/ghabrous/fgc-pm/internal/pool"
)

const pollInterval = 2 * time.Second

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#2F71F2", Dark: "#4A90FF"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FFA500"}
	colorError   = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#FF4672"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"}

	styleTitle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).MarginBottom(1)
	stylePaused = lipgloss.NewStyle().Foreground(colorWarning)
	styleDrain  = lipgloss.NewStyle().Foreground(colorWarning)
	styleErr    = lipgloss.NewStyle().Foreground(colorError)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
)

// statusLoadedMsg carries the result of one control-socket poll.
type statusLoadedMsg struct {
	statuses []pool.Status
	err      error
}

type pollTickMsg struct{}

type keyMap struct {
	Quit key.Binding
	Help key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit, k.Help} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Quit, k.Help}} }

// Dashboard is the "pm watch" screen model.
type Dashboard struct {
	socketPath string
	keys       keyMap
	help       help.Model

	statuses  []pool.Status
	err       error
	lastPoll  time.Time
	width     int
}

// NewDashboard builds a Dashboard that polls the daemon listening on
// socketPath.
func NewDashboard(socketPath string) Dashboard {
	return Dashboard{
		socketPath: socketPath,
		keys: keyMap{
			Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
			Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		},
		help: help.New(),
	}
}

func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.poll(), pollTick())
}

func (m Dashboard) poll() tea.Cmd {
	socketPath := m.socketPath
	return func() tea.Msg {
		resp, err := ctlsock.Call(socketPath, ctlsock.Request{Type: ctlsock.TypeStatus})
		if err != nil {
			return statusLoadedMsg{err: err}
		}
		if resp.Type == ctlsock.TypeError {
			return statusLoadedMsg{err: fmt.Errorf("%s", resp.Error)}
		}
		return statusLoadedMsg{statuses: resp.Status}
	}
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(_ time.Time) tea.Msg { return pollTickMsg{} })
}

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case statusLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.statuses = msg.statuses
			m.lastPoll = time.Now()
		}
		return m, nil

	case pollTickMsg:
		return m, tea.Batch(m.poll(), pollTick())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

func (m Dashboard) View() string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("Program Manager — area pools"))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(styleErr.Render(fmt.Sprintf("  %s", m.err)))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	if len(m.statuses) == 0 {
		b.WriteString(styleDim.Render("  waiting for first poll..."))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	sorted := make([]pool.Status, len(m.statuses))
	copy(sorted, m.statuses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Area < sorted[j].Area })

	fmt.Fprintf(&b, "  %-20s %-10s %-10s %s\n", "AREA", "QUEUED", "IN-FLIGHT", "STATE")
	for _, s := range sorted {
		state := "running"
		line := fmt.Sprintf("  %-20s %-10d %-10d %s", s.Area, s.Queued, s.InFlight, state)
		switch {
		case s.Draining:
			line = styleDrain.Render(fmt.Sprintf("  %-20s %-10d %-10d %s", s.Area, s.Queued, s.InFlight, "draining"))
		case s.Paused:
			line = stylePaused.Render(fmt.Sprintf("  %-20s %-10d %-10d %s", s.Area, s.Queued, s.InFlight, "paused"))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styleDim.Render(fmt.Sprintf("  last updated %s", m.lastPoll.Format("15:04:05"))))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
