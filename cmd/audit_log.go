package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/catalyst/userkey/pkg/client"
)

var auditLogOpts client.ListAuditsOpts

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "List recent audit entries",
	Long: `Retrieves recent audit entries (login URL requests, key redemptions,
logouts) from the server, optionally filtered by correlation ID, subject
or key fingerprint.

This command requires a token with the userkey:admin capability.`,
	Example: `  userkey audit log --limit 20
  userkey audit log --subject 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		entries, _, err := cli.ListAudits(cmd.Context(), auditLogOpts)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			log.Info().Msg("No audit entries found")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "Subject", "Remote", "Result", "Correlation",
		})

		for _, e := range entries {
			result := "ok"
			if !e.Success {
				result = e.Error
			}
			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Action,
				bold(truncate(e.SubjectID, 32)),
				e.RemoteAddr,
				result,
				faint(e.ID),
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
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().UintVar(&auditLogOpts.Limit, "limit", 50, "Maximum number of entries")
	auditLogCmd.Flags().StringVar(&auditLogOpts.CorrelationID, "correlation", "", "Filter by correlation ID")
	auditLogCmd.Flags().StringVar(&auditLogOpts.SubjectID, "subject", "", "Filter by subject ID")
	auditLogCmd.Flags().StringVar(&auditLogOpts.Fingerprint, "fingerprint", "", "Filter by key fingerprint")
}
