package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// keysPurgeCmd triggers housekeeping for expired keys. Expired keys
// are otherwise only discarded lazily on redemption attempts.
var keysPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired login keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		deleted, _, err := cli.PurgeExpiredKeys(cmd.Context())
		if err != nil {
			return err
		}

		log.Info().Int64("deleted", deleted).Msg("Expired keys purged")
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysPurgeCmd)
}
