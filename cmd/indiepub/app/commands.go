// Package app provides the entry point for the indiepub command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/indiepub/indiepub/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "indiepub",
	DisableAutoGenTag: true,
	Short:             "indiepub is a Micropub server for IndieWeb sites",
	Long: `indiepub is a Micropub server for IndieWeb sites.

It accepts posts from any Micropub client, verifies bearer tokens against
an IndieAuth token endpoint, and stores posts and media on the local
filesystem, optionally committing every change to git.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the indiepub CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("failed to bind debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
