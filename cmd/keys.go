package cmd

import "github.com/spf13/cobra"

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage issued login keys",
	Long:  `Commands for inspecting and revoking login keys on a running server.`,
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
