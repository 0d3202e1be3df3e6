package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/entitlement/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "entitlementd",
	Short: "Warden user entitlement service",
	Long: `entitlementd owns user entitlements and their lifecycle. It accepts new
requests, enqueues them for conflict validation, applies validation results,
and serves permission lookups.`,
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
