package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:               "config",
	Short:             "Inspect the effective configuration",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return bootstrap(cmd) },
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

// RegisterConfig adds the config command group to root.
func RegisterConfig(root *cobra.Command) { root.AddCommand(configCmd) }
