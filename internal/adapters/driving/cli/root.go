// Package cli implements the askrichie command line.
package cli

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "askrichie",
	Short: "Ask Richie answers property-investment questions from a private corpus",
	Long: `Ask Richie retrieves passages from a curated document corpus and
answers questions in Richie's voice with numbered citations.

Run "askrichie serve" to host the API and "askrichie chat" to talk to it.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
