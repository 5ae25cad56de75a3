package ui

import (
	"fmt"
	"sort"
	"strings"
)

// RenderEndpointList renders endpoints one per line, sorted. An empty list
// renders a warning line instead.
func RenderEndpointList(endpoints []string) string {
	if len(endpoints) == 0 {
		return WarningTitleStyle.Render("  " + WarningMarker + " No E1.33 endpoints found")
	}

	sorted := append([]string(nil), endpoints...)
	sort.Strings(sorted)

	lines := make([]string, 0, len(sorted)+1)
	lines = append(lines, MutedStyle.Render(fmt.Sprintf("%d endpoint(s)", len(sorted))))
	for _, endpoint := range sorted {
		lines = append(lines, EndpointStyle.Render(EndpointMarker+" "+endpoint))
	}
	return strings.Join(lines, "\n")
}
