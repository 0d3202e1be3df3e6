package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/validation/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "validatord",
	Short: "Warden conflict validation worker",
	Long: `validatord consumes entitlement validation jobs, evaluates the
conflict-of-interest predicate against the catalog and the subject's current
grants, and publishes the outcome for the entitlement service to apply.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
