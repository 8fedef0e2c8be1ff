package cli

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of askrichie.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("askrichie %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
