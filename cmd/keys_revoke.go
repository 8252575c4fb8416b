package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <subject-id>",
	Short: "Revoke all login keys for a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		if _, err := cli.RevokeKeys(cmd.Context(), args[0]); err != nil {
			return err
		}

		log.Info().Str("subject", args[0]).Msg("Keys revoked")
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysRevokeCmd)
}
