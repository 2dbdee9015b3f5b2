package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the futbridge CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("futbridge version %s\n", version)
		fmt.Println("Futures trading gateway bridge")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
