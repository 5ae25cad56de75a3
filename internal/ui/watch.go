package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxEvents is how many registration events the watch view keeps.
const maxEvents = 8

// DiscoveryMsg carries one discovery poll result into the watch view.
type DiscoveryMsg struct {
	OK        bool
	Endpoints []string
	At        time.Time
}

// RegistrationMsg carries a register, renew or deregister outcome.
type RegistrationMsg struct {
	Action   string
	Endpoint string
	OK       bool
	At       time.Time
}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Rescan key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Rescan, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Rescan, k.Quit}}
}

// WatchModel is a live view of discovery polls and registration events.
type WatchModel struct {
	Params    map[string]string
	Endpoints []string
	LastOK    bool
	LastPoll  time.Time
	Polls     int
	Events    []RegistrationMsg
	Waiting   bool

	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    watchKeyMap

	rescan func() bool
}

// NewWatchModel creates the watch view. rescan is called when the user asks
// for an immediate poll; it may be nil.
func NewWatchModel(params map[string]string, rescan func() bool) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WatchModel{
		Params:  params,
		Waiting: true,
		Width:   GetTerminalWidth(),
		Spinner: s,
		Help:    help.New(),
		Keys: watchKeyMap{
			Rescan: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "rescan"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		rescan: rescan,
	}
}

// Init starts the spinner
func (m WatchModel) Init() tea.Cmd {
	return m.Spinner.Tick
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Rescan):
			if m.rescan != nil && m.rescan() {
				m.Waiting = true
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case DiscoveryMsg:
		m.Waiting = false
		m.Polls++
		m.LastOK = msg.OK
		m.LastPoll = msg.At
		if msg.OK {
			m.Endpoints = append([]string(nil), msg.Endpoints...)
			sort.Strings(m.Endpoints)
		}

	case RegistrationMsg:
		m.Events = append(m.Events, msg)
		if len(m.Events) > maxEvents {
			m.Events = m.Events[len(m.Events)-maxEvents:]
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the watch screen
func (m WatchModel) View() string {
	width := clampWidth(m.Width)

	sections := []string{
		NewHeader("E1.33 SLP Watch", "e133-slp watch", m.Params).SetWidth(width).Render(),
		"",
		m.renderStatus(),
		"",
		RenderEndpointList(m.Endpoints),
	}

	if len(m.Events) > 0 {
		sections = append(sections, "", MutedStyle.Render("Registrations"))
		for _, e := range m.Events {
			sections = append(sections, renderEvent(e))
		}
	}

	sections = append(sections, "", MutedStyle.Render(m.Help.View(m.Keys)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m WatchModel) renderStatus() string {
	if m.Waiting {
		return "  " + m.Spinner.View() + " Discovering..."
	}

	status := SuccessTitleStyle.Render(SuccessMarker + " last poll ok")
	if !m.LastOK {
		status = ErrorTitleStyle.Render(FailureMarker + " last poll failed")
	}
	return fmt.Sprintf("  %s  %s", status,
		MutedStyle.Render(fmt.Sprintf("poll #%d at %s", m.Polls, m.LastPoll.Format("15:04:05"))))
}

func renderEvent(e RegistrationMsg) string {
	marker := SuccessTitleStyle.Render(SuccessMarker)
	if !e.OK {
		marker = ErrorTitleStyle.Render(FailureMarker)
	}
	return fmt.Sprintf("  %s %s %-10s %s", marker, e.At.Format("15:04:05"), e.Action, strings.TrimSpace(e.Endpoint))
}
