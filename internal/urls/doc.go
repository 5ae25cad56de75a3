// Package urls provides centralized constants for the reference documents
// quoted in help text and troubleshooting output.
//
// Usage:
//
//	import "github.com/muurk/e133slp/internal/urls"
//
//	fmt.Printf("For more information, see: %s\n", urls.SLPv2)
package urls
