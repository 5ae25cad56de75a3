package daemon

import (
	"fmt"

	"github.com/muurk/e133slp/internal/config"
	"github.com/muurk/e133slp/internal/slp"
	"github.com/muurk/e133slp/internal/slp/mdns"
)

// NewAgent creates the SLP agent selected by cfg.Backend.
func NewAgent(cfg *config.Config) (slp.Agent, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return slp.NewMemoryAgent(), nil
	case config.BackendMDNS, "":
		agent, err := mdns.NewAgentForInterface(cfg.MDNS.Interface)
		if err != nil {
			return nil, err
		}
		if cfg.MDNS.BrowseTimeout > 0 {
			agent.BrowseTimeout = cfg.MDNS.BrowseTimeout
		}
		return agent, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
