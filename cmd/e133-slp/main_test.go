package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/muurk/e133slp/internal/config"
)

// withFlags sets the global flags for one test and restores them after.
func withFlags(t *testing.T, path, backendFlag, ifaceFlag string) {
	t.Helper()
	oldPath, oldBackend, oldIface := configPath, backend, iface
	configPath, backend, iface = path, backendFlag, ifaceFlag
	t.Cleanup(func() {
		configPath, backend, iface = oldPath, oldBackend, oldIface
	})
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.NewDefault()
	cfg.AddAdvertisement("10.0.0.1:5568", 60)
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	withFlags(t, path, config.BackendMemory, "eth7")

	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if loaded.Backend != config.BackendMemory {
		t.Errorf("Backend = %q, want %q", loaded.Backend, config.BackendMemory)
	}
	if loaded.MDNS.Interface != "eth7" {
		t.Errorf("MDNS.Interface = %q, want eth7", loaded.MDNS.Interface)
	}
	if len(loaded.Advertisements) != 1 {
		t.Errorf("Advertisements = %v, want one entry", loaded.Advertisements)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	withFlags(t, filepath.Join(t.TempDir(), "missing.yaml"), "carrier-pigeon", "")

	_, err := loadConfig()
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("loadConfig() error = %v, want invalid configuration", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	withFlags(t, "/tmp/explicit.yaml", "", "")

	path, err := resolveConfigPath()
	if err != nil {
		t.Fatalf("resolveConfigPath() error = %v", err)
	}
	if path != "/tmp/explicit.yaml" {
		t.Errorf("resolveConfigPath() = %q, want the --config value", path)
	}
}

func TestHeaderParams(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		iface   string
		want    map[string]string
	}{
		{
			name:    "mdns on all interfaces",
			backend: config.BackendMDNS,
			want:    map[string]string{"Backend": "mdns", "Service": "service:rdmnet-device", "Interface": "all"},
		},
		{
			name:    "mdns on one interface",
			backend: config.BackendMDNS,
			iface:   "eth0",
			want:    map[string]string{"Backend": "mdns", "Service": "service:rdmnet-device", "Interface": "eth0"},
		},
		{
			name:    "memory",
			backend: config.BackendMemory,
			want:    map[string]string{"Backend": "memory", "Service": "service:rdmnet-device"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefault()
			cfg.Backend = tt.backend
			cfg.MDNS.Interface = tt.iface
			cfg.SLP.ServiceName = "service:rdmnet-device"

			got := headerParams(cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("headerParams() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("headerParams()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
