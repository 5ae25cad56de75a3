package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/e133slp/internal/config"
	"github.com/muurk/e133slp/internal/ui"
)

var forceInit bool

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	configAdvertiseCmd.Flags().Uint16Var(&lifetime, "lifetime", 0, "Lifetime in seconds (0 = protocol minimum)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configAdvertiseCmd)
	configCmd.AddCommand(configWithdrawCmd)
}

// resolveConfigPath returns --config or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Create, inspect and edit the configuration file.

The file lives in the OS configuration directory unless --config is given:
  Linux:   $XDG_CONFIG_HOME/e133slp/config.yaml (or ~/.config/e133slp)
  macOS:   ~/Library/Application Support/e133slp/config.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cannot access config file: %w", err)
		}

		if err := config.NewDefault().SaveFile(path); err != nil {
			return err
		}
		ui.NewPrinter(os.Stdout).PrintResult(ui.NewSuccessResult("Config Created",
			ui.Detail{Key: "Path", Value: path}))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configAdvertiseCmd = &cobra.Command{
	Use:   "advertise <host:port>",
	Short: "Add an endpoint for the daemon to keep registered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		ad := config.Advertisement{Endpoint: args[0], Lifetime: lifetime}
		if err := saveAdvertisement(ad); err != nil {
			return err
		}

		ui.NewPrinter(os.Stdout).PrintResult(ui.NewSuccessResult("Advertisement Saved",
			ui.Detail{Key: "Endpoint", Value: ad.Endpoint},
			ui.Detail{Key: "Service URL", Value: cfg.ServiceURL(ad)},
			ui.Detail{Key: "Lifetime", Value: fmt.Sprintf("%ds", cfg.EffectiveLifetime(ad))},
		))
		return nil
	},
}

var configWithdrawCmd = &cobra.Command{
	Use:   "withdraw <host:port>",
	Short: "Remove an endpoint from the advertisements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		if !cfg.RemoveAdvertisement(args[0]) {
			return fmt.Errorf("%s is not advertised in %s", args[0], path)
		}
		if err := cfg.SaveFile(path); err != nil {
			return err
		}

		ui.NewPrinter(os.Stdout).PrintResult(ui.NewSuccessResult("Advertisement Removed",
			ui.Detail{Key: "Endpoint", Value: args[0]}))
		return nil
	},
}
