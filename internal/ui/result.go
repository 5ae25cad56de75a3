package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/e133slp/internal/urls"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Detail is one key-value line of a result box.
type Detail struct {
	Key   string
	Value string
}

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType // Success, failure, or warning
	Title           string     // e.g., "Registered 10.0.0.1:5568"
	Details         []Detail   // Shown in order
	Error           error      // Error (for failure results)
	Troubleshooting []string   // Troubleshooting tips (for failure results)
	Width           int        // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Detail) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details ...Detail) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Detail{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	var (
		title  string
		color  lipgloss.Color
		styled lipgloss.Style
	)
	switch r.Type {
	case ResultFailure:
		title, color, styled = fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title), ErrorColor, ErrorTitleStyle
	case ResultWarning:
		title, color, styled = fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, r.Title), WarningColor, WarningTitleStyle
	default:
		title, color, styled = fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title), SuccessColor, SuccessTitleStyle
	}

	lines := []string{"", styled.Render(title), ""}

	for _, d := range r.Details {
		keyStyled := ResultKeyStyle.Render(fmt.Sprintf("   %s:", d.Key))
		lines = append(lines, keyStyled+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshootingBox(width), "")
	}

	return resultBoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

// renderTroubleshootingBox renders the inner troubleshooting box
func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}
	return TroubleshootingBoxStyle(width).MarginLeft(1).Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// DiscoveryTroubleshooting lists the usual causes of an empty or failed
// discovery.
var DiscoveryTroubleshooting = []string{
	"Ensure E1.33 components are powered on and on this network segment",
	"Check that the firewall allows mDNS (UDP port 5353)",
	"Pick the right interface with mdns.interface in the config file",
	"Increase mdns.browse_timeout for slow networks",
	"Service records follow DNS-SD: " + urls.DNSServiceDiscovery,
}
