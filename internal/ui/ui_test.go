package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestHeader_Render(t *testing.T) {
	h := NewHeader("SLP Discovery", "e133-slp discover", map[string]string{
		"Service": "service:e133.esta",
		"Backend": "mdns",
	}).SetWidth(80)

	out := h.Render()
	for _, want := range []string{"SLP DISCOVERY", "e133-slp discover", "Backend:", "mdns", "service:e133.esta"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q", want)
		}
	}

	// Keys are sorted
	if strings.Index(out, "Backend:") > strings.Index(out, "Service:") {
		t.Error("Render() should list parameters in key order")
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Registered", Detail{Key: "Lifetime", Value: "120s"}),
			want:   []string{"SUCCESS", "Registered", "Lifetime:", "120s"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Discovery failed", errors.New("timed out"), DiscoveryTroubleshooting),
			want:   []string{"FAILED", "Discovery failed", "Error: timed out", "Troubleshooting:"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Lifetime raised").AddDetail("Lifetime", "120s"),
			want:   []string{"WARNING", "Lifetime raised", "120s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q", want)
				}
			}
		})
	}
}

func TestRenderEndpointList(t *testing.T) {
	out := RenderEndpointList([]string{"10.0.0.2:5568", "10.0.0.1:5568"})
	if !strings.Contains(out, "2 endpoint(s)") {
		t.Errorf("RenderEndpointList() missing count: %q", out)
	}
	if strings.Index(out, "10.0.0.1:5568") > strings.Index(out, "10.0.0.2:5568") {
		t.Error("RenderEndpointList() should sort endpoints")
	}

	empty := RenderEndpointList(nil)
	if !strings.Contains(empty, "No E1.33 endpoints found") {
		t.Errorf("RenderEndpointList(nil) = %q", empty)
	}
}

func TestClampWidth(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{10, MinTerminalWidth},
		{80, 80},
		{500, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWatchModel_Discovery(t *testing.T) {
	m := NewWatchModel(nil, nil)
	if !m.Waiting {
		t.Error("new WatchModel should be waiting for the first poll")
	}

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	updated, _ := m.Update(DiscoveryMsg{OK: true, Endpoints: []string{"b", "a"}, At: at})
	m = updated.(WatchModel)

	if m.Waiting {
		t.Error("Waiting should be false after a poll")
	}
	if m.Polls != 1 {
		t.Errorf("Polls = %v, want 1", m.Polls)
	}
	if strings.Join(m.Endpoints, ",") != "a,b" {
		t.Errorf("Endpoints = %v, want [a b]", m.Endpoints)
	}

	// A failed poll keeps the last known endpoints
	updated, _ = m.Update(DiscoveryMsg{OK: false, At: at})
	m = updated.(WatchModel)
	if m.LastOK {
		t.Error("LastOK should be false after a failed poll")
	}
	if len(m.Endpoints) != 2 {
		t.Errorf("Endpoints = %v, failed poll should not clear them", m.Endpoints)
	}

	view := m.View()
	if !strings.Contains(view, "last poll failed") || !strings.Contains(view, "poll #2") {
		t.Errorf("View() missing poll status:\n%s", view)
	}
}

func TestWatchModel_Events(t *testing.T) {
	m := NewWatchModel(nil, nil)
	for i := 0; i < maxEvents+3; i++ {
		updated, _ := m.Update(RegistrationMsg{Action: "renew", Endpoint: "foo", OK: i%2 == 0, At: time.Now()})
		m = updated.(WatchModel)
	}

	if len(m.Events) != maxEvents {
		t.Errorf("len(Events) = %v, want %v", len(m.Events), maxEvents)
	}
	if !strings.Contains(m.View(), "renew") {
		t.Error("View() should list registration events")
	}
}

func TestWatchModel_Keys(t *testing.T) {
	calls := 0
	m := NewWatchModel(nil, func() bool {
		calls++
		return true
	})
	m.Waiting = false

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = updated.(WatchModel)
	if calls != 1 {
		t.Errorf("rescan calls = %v, want 1", calls)
	}
	if !m.Waiting {
		t.Error("Waiting should be true after a rescan")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
