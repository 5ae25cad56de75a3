// E133-slp advertises and discovers E1.33 (RDMnet) components over SLP.
//
// It keeps configured endpoints registered with the directory, re-registering
// them before their lifetime runs out, and polls for other components at an
// interval driven by the lifetimes the directory reports.
//
// Usage:
//
//	e133-slp daemon [flags]
//	e133-slp discover
//	e133-slp watch
//
// See 'e133-slp --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/e133slp/internal/config"
	"github.com/muurk/e133slp/internal/logging"
	"github.com/muurk/e133slp/internal/urls"
	"github.com/muurk/e133slp/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "e133-slp",
	Short: "E1.33 SLP registration and discovery bridge",
	Long: `Advertise and discover E1.33 (RDMnet) components.

Endpoints listed in the configuration file are registered with the directory
and renewed before their lifetime expires. Discovery runs continuously, polling
again as soon as the shortest advertised lifetime is about to run out.

The directory backend is mDNS by default. The in-memory backend is useful for
trying the tool without a network.

References:
  E1.33:  ` + urls.E133Standard + `
  SLPv2:  ` + urls.SLPv2 + `
  mDNS:   ` + urls.MulticastDNS,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

// Global flags
var (
	configPath string
	logLevel   string
	backend    string
	iface      string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: OS config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty is silent")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Directory backend (mdns, memory); overrides the config file")
	rootCmd.PersistentFlags().StringVar(&iface, "interface", "", "Network interface for mDNS; overrides the config file")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if backend != "" {
		cfg.Backend = backend
	}
	if iface != "" {
		cfg.MDNS.Interface = iface
	}

	// The file's log level applies only when neither the flag nor the
	// environment picked one
	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" && cfg.LogLevel != "" {
		if err := logging.Initialize(cfg.LogLevel); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Detailed())
	},
}
