package cmd

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/catalyst/userkey/internal/config"
)

// debugConfigCmd dumps the effective configuration after defaulting
// and validation, with the API secret redacted.
var debugConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Dump the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.APISecret != "" {
			cfg.APISecret = "(redacted)"
		}
		spew.Dump(cfg)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugConfigCmd)
}
