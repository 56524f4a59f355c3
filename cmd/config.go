package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"convtrack/cli/internal/config"
	"convtrack/cli/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the CLI configuration",
}

// configShowCmd prints the effective configuration as YAML, secrets masked.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if p, err := config.Path(); err == nil {
			pterm.Println(pterm.Gray("# " + p))
		}
		fmt.Print(logging.Mask(string(out)))
		return nil
	},
}

// configSaveCmd writes the effective configuration to the config file.
var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the effective configuration, including flag overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(cfg); err != nil {
			return err
		}
		p, _ := config.Path()
		pterm.Success.Printf("Configuration saved to %s\n", p)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSaveCmd)
}
