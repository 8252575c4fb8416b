package cmd

import "github.com/spf13/cobra"

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
