package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the signalbot CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("signalbot version %s\n", version)
		fmt.Println("An LLM-driven trading signal bot with deterministic replay")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
