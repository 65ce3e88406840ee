package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/ringq/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set ringq configuration values.

Without arguments, lists all configuration keys.
With one argument, shows the value of that key.
With two arguments, sets the key to the value.

Configuration is stored in ~/.config/ringq/config.yaml (XDG compliant)
unless --config points elsewhere.

Keys are in the format: section.key
Sections: storage, queue, log

storage.backend memory is for library use only. It keeps nothing between
ringq commands, so the command line refuses to run with it.

Examples:
  ringq config                         # List all keys
  ringq config queue.name              # Get queue.name value
  ringq config queue.name jobs         # Operate on the "jobs" queue
  ringq config queue.evict_overwritten true`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func configFile() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPaths().ConfigFile()
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := configFile()
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch len(args) {
	case 0:
		return listConfig(cmd, cfg, path)
	case 1:
		return getConfig(cmd, cfg, args[0])
	case 2:
		return setConfig(cmd, cfg, path, args[0], args[1])
	}

	return nil
}

func listConfig(cmd *cobra.Command, cfg *config.Config, path string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Configuration Keys"))
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintln(out)

	var failedKeys []string
	for _, key := range config.ListKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			failedKeys = append(failedKeys, key)
			continue
		}

		displayValue := value
		if displayValue == "" {
			displayValue = dimStyle.Render("(not set)")
		}

		fmt.Fprintf(out, "  %s = %s\n", keyStyle.Render(key), displayValue)
	}

	if len(failedKeys) > 0 {
		fmt.Fprintf(out, "\n%s Failed to retrieve keys: %s\n", warnStyle.Render("Warning:"), strings.Join(failedKeys, ", "))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Config file: %s\n", path)

	return nil
}

func getConfig(cmd *cobra.Command, cfg *config.Config, key string) error {
	value, err := cfg.Get(key)
	if err != nil {
		return err
	}

	if value == "" {
		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("(not set)"))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}

	return nil
}

func setConfig(cmd *cobra.Command, cfg *config.Config, path, key, value string) error {
	if err := cfg.Set(key, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.SaveToFile(path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s = %s\n", keyStyle.Render(key), value)
	fmt.Fprintf(out, "Saved to: %s\n", path)

	return nil
}
