package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/gateway/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "gatewayd",
	Short: "Warden public gateway",
	Long: `gatewayd is the client-facing facade. It forwards entitlement and catalog
calls to the owning services and aggregates a few cross-service reads. It
holds no state of its own.`,
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
