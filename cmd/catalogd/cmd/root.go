package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/catalog/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "catalogd",
	Short: "Warden access catalog service",
	Long: `catalogd owns the access catalog: resources, accesses, groups, and the
conflict-of-interest matrix. It serves catalog lookups to the other Warden
services and the admin write surface that maintains them.`,
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
