// Package cmd defines the omni command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "omni",
	Short: "OMNI - AI chat workspace server",
	Long: `OMNI is the backend for the PATOOWORLD AI chat workspace: multi-session
conversations, image generation and editing, text actions, and per-user
durable history.

Run "omni serve" to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
