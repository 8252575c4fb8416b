package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently live login keys",
	Long: `Retrieves all currently live (non-expired) login keys from the server.
Key values are redacted server-side; only metadata is shown.

This command requires a token with the userkey:admin capability.`,
	Example: `  userkey keys list --server http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching live keys...")
		keys, _, err := cli.ListActiveKeys(cmd.Context())
		if err != nil {
			return err
		}

		if len(keys) == 0 {
			log.Info().Msg("No live keys found")
			return nil
		}
		log.Debug().Msgf("Retrieved %d live key(s)", len(keys))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Issued", "Expires", "Subject", "IP Restriction",
		})

		for _, k := range keys {
			timeLeft := time.Until(k.ValidUntil).Round(time.Second)

			restriction := k.IPRestriction
			if restriction == "" {
				restriction = faint("(none)")
			}
			t.AppendRow(table.Row{
				k.IssuedAt.Format(time.RFC3339),
				fmt.Sprintf("%s (%s)", k.ValidUntil.Format("15:04:05"), faint(timeLeft.String())),
				bold(truncate(k.SubjectID, 64)),
				restriction,
			})
		}

		s := table.StyleRounded
		s.Format.Header = text.FormatDefault
		t.SetStyle(s)
		t.Render()
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd)
}
