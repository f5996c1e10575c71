package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the MasterApi CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "masterapi",
		Short: "MasterApi - game platform master server",
		Long: `MasterApi is the master server backing the game platform: accounts,
token-based authentication, device linking, and the live server directory.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
