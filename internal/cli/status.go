package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/sessiongate/internal/app"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
)

func newStatusCommand(open opener) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.Application) error {
				snap := a.Session().Snapshot()
				out := cmd.OutOrStdout()

				if asJSON {
					snap.AccessToken = ""
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(snap)
				}

				fmt.Fprintf(out, "State:         %s\n", snap.State)
				fmt.Fprintf(out, "Authenticated: %t\n", snap.IsAuthenticated)
				if snap.Subject != "" {
					fmt.Fprintf(out, "Subject:       %s\n", snap.Subject)
				}
				if minutes, ok := jwtx.TimeUntilExpiry(snap.AccessToken); ok {
					fmt.Fprintf(out, "Expires in:    %dm\n", minutes)
				}
				if snap.Error != "" {
					fmt.Fprintf(out, "Error:         %s\n", snap.Error)
				}
				fmt.Fprintf(out, "Roles:         %d\n", len(snap.Roles))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON, without the token")
	return cmd
}

func newRolesCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the cached role assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.Application) error {
				if !a.Session().IsAuthenticated() {
					return errNotSignedIn
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROLE\tSCOPE\tSCOPE ID")
				for _, ra := range a.Session().Roles() {
					scopeID := "-"
					if ra.Scope != authz.ScopeGlobal {
						scopeID = fmt.Sprint(ra.ScopeID)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", ra.Role.Name, ra.Scope, scopeID)
				}
				return tw.Flush()
			})
		},
	}
}

func newTokenCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a usable access token, renewing it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.Application) error {
				token, err := a.Session().EnsureFreshToken(cmd.Context())
				if err != nil {
					return fmt.Errorf("%w: %w", errNotSignedIn, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}
