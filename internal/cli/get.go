package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/sessiongate/internal/app"
)

func newGetCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authorized GET to the backend and print the JSON reply",
		Long: `Send an authorized GET to the backend. The access token is renewed before
the call when needed, and once more if the backend answers 401.

Examples:
  sessionctl get /api/user-roles/me`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			return withApp(cmd, open, func(a *app.Application) error {
				var body json.RawMessage
				if err := a.API().GetJSON(cmd.Context(), path, &body); err != nil {
					return err
				}

				out, err := json.MarshalIndent(body, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
}
