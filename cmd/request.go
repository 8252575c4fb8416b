package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/catalyst/userkey/internal/core"
)

var requestPayload core.UserPayload

// requestCmd asks a running server for a login URL, the same way the
// external system would.
var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request a login URL for a user",
	Long: `Requests a single-use login URL from the server, exactly as the
external system would through the web service API.

This command requires a token with the userkey:generatekey capability.`,
	Example: `  userkey request --email jane@example.com
  userkey request --email jane@example.com --firstname Jane --lastname Doe`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		loginURL, correlation, err := cli.RequestLoginURL(cmd.Context(), requestPayload)
		if err != nil {
			return logError(err, correlation, "failed to request login url")
		}

		fmt.Println(loginURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	bindPayloadFlags(requestCmd.Flags(), &requestPayload)
}

func bindPayloadFlags(flags *pflag.FlagSet, p *core.UserPayload) {
	flags.StringVar(&p.Username, "username", "", "Username of the user")
	flags.StringVar(&p.Email, "email", "", "Email of the user")
	flags.StringVar(&p.IDNumber, "idnumber", "", "ID number of the user")
	flags.StringVar(&p.FirstName, "firstname", "", "First name (for provisioning)")
	flags.StringVar(&p.LastName, "lastname", "", "Last name (for provisioning)")
	flags.StringVar(&p.IP, "ip", "", "Pin the key to this client address")
}
