package config

import (
	"time"

	"github.com/muurk/e133slp/internal/e133"
	"github.com/muurk/e133slp/internal/slp"
)

// CurrentVersion is the only supported configuration file version.
const CurrentVersion = 1

// Agent backends.
const (
	BackendMDNS   = "mdns"
	BackendMemory = "memory"
)

// Config represents the entire configuration file.
type Config struct {
	Version        int             `yaml:"version"`
	LogLevel       string          `yaml:"log_level,omitempty"` // debug, info, warn or error; empty is silent
	Backend        string          `yaml:"backend"`             // mdns or memory
	SLP            SLPConfig       `yaml:"slp"`
	MDNS           MDNSConfig      `yaml:"mdns"`
	Metrics        MetricsConfig   `yaml:"metrics"`
	Advertisements []Advertisement `yaml:"advertisements,omitempty"`
}

// SLPConfig holds the registration and discovery timing, in seconds.
type SLPConfig struct {
	ServiceName string `yaml:"service_name"`
	MinLifetime uint16 `yaml:"min_lifetime"` // Shortest lifetime sent to the agent
	AgingTime   uint16 `yaml:"aging_time"`   // Server aging interval
	RefreshTime uint16 `yaml:"refresh_time"` // Longest interval between discovery polls
}

// MDNSConfig configures the mDNS backend.
type MDNSConfig struct {
	Interface     string        `yaml:"interface,omitempty"` // Empty means all interfaces
	BrowseTimeout time.Duration `yaml:"browse_timeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"` // host:port, empty disables /metrics
}

// Advertisement is an endpoint the daemon keeps registered.
type Advertisement struct {
	Endpoint string `yaml:"endpoint"`           // host:port of the E1.33 component
	Lifetime uint16 `yaml:"lifetime,omitempty"` // Seconds; raised to the protocol minimum
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	defaults := e133.DefaultConfig()
	return &Config{
		Version: CurrentVersion,
		Backend: BackendMDNS,
		SLP: SLPConfig{
			ServiceName: defaults.ServiceName,
			MinLifetime: defaults.MinLifetime,
			AgingTime:   defaults.AgingTime,
			RefreshTime: defaults.RefreshTime,
		},
		MDNS: MDNSConfig{
			BrowseTimeout: 3 * time.Second,
		},
	}
}

// ThreadConfig returns the SLP thread settings.
func (c *Config) ThreadConfig() e133.Config {
	return e133.Config{
		ServiceName: c.SLP.ServiceName,
		MinLifetime: c.SLP.MinLifetime,
		AgingTime:   c.SLP.AgingTime,
		RefreshTime: c.SLP.RefreshTime,
	}
}

// AddAdvertisement adds or updates an advertised endpoint.
func (c *Config) AddAdvertisement(endpoint string, lifetime uint16) {
	for i := range c.Advertisements {
		if c.Advertisements[i].Endpoint == endpoint {
			c.Advertisements[i].Lifetime = lifetime
			return
		}
	}
	c.Advertisements = append(c.Advertisements, Advertisement{Endpoint: endpoint, Lifetime: lifetime})
}

// RemoveAdvertisement removes an advertised endpoint. Returns false if it was
// not configured.
func (c *Config) RemoveAdvertisement(endpoint string) bool {
	for i := range c.Advertisements {
		if c.Advertisements[i].Endpoint == endpoint {
			c.Advertisements = append(c.Advertisements[:i], c.Advertisements[i+1:]...)
			return true
		}
	}
	return false
}

// EffectiveLifetime is the lifetime a registration of a will end up with,
// after the minimums the SLP thread applies.
func (c *Config) EffectiveLifetime(a Advertisement) uint16 {
	lifetime := uint32(a.Lifetime)
	if minimum := 2 * uint32(c.SLP.AgingTime); lifetime < minimum {
		lifetime = minimum
	}
	if lifetime < uint32(c.SLP.MinLifetime) {
		lifetime = uint32(c.SLP.MinLifetime)
	}
	if lifetime > 0xffff {
		lifetime = 0xffff
	}
	return uint16(lifetime)
}

// ServiceURL returns the service URL an advertisement is registered under.
func (c *Config) ServiceURL(a Advertisement) string {
	return slp.ServiceURLFor(c.SLP.ServiceName, a.Endpoint)
}
