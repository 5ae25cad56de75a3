package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "e133slp"
	configFile = "config.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/e133slp or $HOME/.config/e133slp
//   - macOS: $HOME/.config/e133slp (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\e133slp
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			// Fallback to USERPROFILE\AppData\Local if LOCALAPPDATA not set
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load loads the configuration from the default path.
// If the file doesn't exist, returns NewDefault().
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFile(configPath)
}

// LoadFile loads the configuration from path. Fields missing from the file
// keep their defaults. If the file doesn't exist, returns NewDefault().
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDefault(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := NewDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return c.SaveFile(configPath)
}

// SaveFile saves the configuration to path.
// Performs an atomic write to prevent corruption on crash.
func (c *Config) SaveFile(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	// Create directory with user-only permissions (0700)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# e133slp Configuration File
# SLP timings are in seconds. Lifetimes below twice aging_time are raised.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Clean up temp file on error
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}

	switch c.Backend {
	case BackendMDNS, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (expected %s or %s)", c.Backend, BackendMDNS, BackendMemory)
	}

	if !strings.HasPrefix(c.SLP.ServiceName, "service:") {
		return fmt.Errorf("slp.service_name %q must start with \"service:\"", c.SLP.ServiceName)
	}
	if c.SLP.MinLifetime == 0 {
		return fmt.Errorf("slp.min_lifetime must be positive")
	}
	if c.SLP.AgingTime == 0 {
		return fmt.Errorf("slp.aging_time must be positive")
	}
	if uint32(c.SLP.AgingTime)*2 > 0xffff {
		return fmt.Errorf("slp.aging_time %d is too large", c.SLP.AgingTime)
	}
	if c.SLP.RefreshTime == 0 {
		return fmt.Errorf("slp.refresh_time must be positive")
	}

	if c.Backend == BackendMDNS && c.MDNS.BrowseTimeout <= 0 {
		return fmt.Errorf("mdns.browse_timeout must be positive")
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return fmt.Errorf("invalid metrics.listen %q: %w", c.Metrics.Listen, err)
		}
	}

	seen := make(map[string]bool)
	for i, a := range c.Advertisements {
		if a.Endpoint == "" {
			return fmt.Errorf("advertisements[%d]: endpoint is required", i)
		}
		if strings.Contains(a.Endpoint, "://") {
			return fmt.Errorf("advertisements[%d]: endpoint %q must not include a service type", i, a.Endpoint)
		}
		if seen[a.Endpoint] {
			return fmt.Errorf("advertisements[%d]: duplicate endpoint %q", i, a.Endpoint)
		}
		seen[a.Endpoint] = true
	}

	return nil
}
