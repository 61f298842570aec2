package main

import (
	"github.com/spf13/cobra"

	"github.com/musher-dev/capcon/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long:  `View the effective capcon configuration after defaults, config file and environment are merged.`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long:  `Display every configuration setting and its effective value.`,
		Example: `  capcon config list
  capcon config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := configFrom(cmd.Context())

			return out.PrintSettings(flattenSettings("", cfg.All()))
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the effective value of a single configuration key.`,
		Example: `  capcon config get console.workers`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := args[0]

			value := configFrom(cmd.Context()).Get(key)
			if value == nil {
				out.Info("%s is not set", key)
				return nil
			}

			return out.PrintSettings(map[string]any{key: value})
		},
	}
}

// flattenSettings turns nested viper settings into dotted keys.
func flattenSettings(prefix string, settings map[string]any) map[string]any {
	flat := make(map[string]any, len(settings))

	for key, value := range settings {
		if prefix != "" {
			key = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenSettings(key, nested) {
				flat[k] = v
			}

			continue
		}

		flat[key] = value
	}

	return flat
}
