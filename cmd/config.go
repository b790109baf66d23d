package cmd

import (
	"fmt"

	"oauthcheck/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCmd creates the command that prints the effective configuration.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration a run would use, after applying the config file
(--config) and OAUTHCHECK_* environment variables, and the callback URL the
backend must be configured with.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(cmd)

			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}

			data, err := config.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, string(data))
			fmt.Fprintf(out, "# callback_url: %s\n", cfg.CallbackURL())
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "# invalid: %v\n", err)
			}
			return nil
		},
	}
}
