package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// These variables can be set at build time via ldflags:
//
//	go build -ldflags="-X github.com/muurk/e133slp/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/e133slp/internal/version.Commit=abc123"
//
// If not set, they are derived from the VCS stamp in the build info, or fall
// back to "dev" with a timestamp.
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromSettings(info.Settings)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}

	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromSettings derives a dev version and a short commit from the VCS build
// settings. Either result is empty when the information is missing.
func fromSettings(settings []debug.BuildSetting) (version, commit string) {
	var revision, modified, vcsTime string
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if revision != "" {
		commit = revision
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if modified == "true" {
			commit += "-dirty"
		}
	}

	// Build info carries no tags, so the commit date stands in
	if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
		version = fmt.Sprintf("dev-%s", t.Format("20060102"))
	}
	return version, commit
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Detailed returns Full plus the Go toolchain and platform, for the version
// command.
func Detailed() string {
	return fmt.Sprintf("e133slp %s\n  go: %s\n  platform: %s/%s",
		Full(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
