// Package config provides the daemon configuration for e133slp.
//
// The configuration is a YAML file holding the SLP timing knobs, the agent
// backend, the endpoints to advertise and the metrics listener. It follows
// OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/e133slp/config.yaml or $HOME/.config/e133slp/config.yaml
//   - macOS: $HOME/.config/e133slp/config.yaml
//   - Windows: %LOCALAPPDATA%\e133slp\config.yaml
//
// A missing file is not an error: Load returns NewDefault().
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	thread := e133.NewSLPThread(ss, agent, onDiscovery, cfg.ThreadConfig())
//
// # Thread Safety
//
// Config values are not synchronized. File writes are serialized by a
// package mutex and are atomic (write to a temporary file, then rename).
package config
