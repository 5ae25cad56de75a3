// Package ui provides terminal UI components for the e133-slp CLI.
//
// This package uses Bubble Tea and Lipgloss to render terminal output for
// the discover, register and watch commands. Most components follow a "run
// once and exit" pattern; WatchModel is the one interactive view.
//
// # Architecture
//
//   - Header: Command banner showing operation name and parameters
//   - Result: Success/failure boxes with styled details
//   - EndpointList: Discovered endpoints, one per line
//   - WatchModel: Live view fed by SLP thread callbacks
//
// # Feeding the Watch View
//
// SLP thread callbacks run on the caller's reactor goroutine, never on the
// Bubble Tea goroutine. Forward them with tea.Program.Send:
//
//	p := tea.NewProgram(ui.NewWatchModel(params, thread.TriggerDiscovery))
//	onDiscovery := func(ok bool, endpoints []string) {
//	    p.Send(ui.DiscoveryMsg{OK: ok, Endpoints: endpoints, At: time.Now()})
//	}
//
// # Logging Integration
//
// This package expects logging to be controlled via the E133SLP_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly.
package ui
