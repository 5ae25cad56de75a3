package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	tests := []struct {
		name        string
		settings    []debug.BuildSetting
		wantVersion string
		wantCommit  string
	}{
		{
			name: "clean checkout",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2024-03-05T10:00:00Z"},
				{Key: "vcs.modified", Value: "false"},
			},
			wantVersion: "dev-20240305",
			wantCommit:  "0123456",
		},
		{
			name: "dirty tree",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "true"},
			},
			wantVersion: "",
			wantCommit:  "0123456-dirty",
		},
		{
			name: "short revision",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc"},
			},
			wantCommit: "abc",
		},
		{
			name:     "no vcs info",
			settings: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, commit := fromSettings(tt.settings)
			if version != tt.wantVersion {
				t.Errorf("version = %v, want %v", version, tt.wantVersion)
			}
			if commit != tt.wantCommit {
				t.Errorf("commit = %v, want %v", commit, tt.wantCommit)
			}
		})
	}
}

func TestFull(t *testing.T) {
	if Version == "" || Commit == "" {
		t.Fatalf("Version = %q, Commit = %q; init should populate both", Version, Commit)
	}
	if got := Full(); !strings.Contains(got, Version) || !strings.Contains(got, Commit) {
		t.Errorf("Full() = %v, should contain version and commit", got)
	}
	if got := Detailed(); !strings.HasPrefix(got, "e133slp ") {
		t.Errorf("Detailed() = %v, should start with program name", got)
	}
}
