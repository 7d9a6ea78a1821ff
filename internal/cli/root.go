package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/sessiongate/internal/app"
)

// NewRootCommand builds the sessionctl command tree.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Hold and inspect a session against the collaboration backend",
		Long: `sessionctl keeps one user's session for the collaboration backend.

The access token, cached roles and refresh cookie are sealed into a local
SQLite file, so the session survives between invocations and is renewed
transparently when the access token expires.

Configuration comes from --config (YAML) and SESSION_* environment variables.

Examples:
  sessionctl login --username dana
  sessionctl status
  sessionctl can department-manager:1
  sessionctl get /api/departments/1/projects
  sessionctl logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	open := func(cmd *cobra.Command) (*app.Application, error) {
		cfg, err := app.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		a, err := app.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize: %w", err)
		}
		if err := a.Bootstrap(cmd.Context()); err != nil {
			// A failed renewal already left the session signed out.
			a.Logger().Debug("bootstrap did not settle a session", "err", err)
		}
		return a, nil
	}

	root.AddCommand(
		newLoginCommand(open),
		newLogoutCommand(open),
		newStatusCommand(open),
		newRolesCommand(open),
		newTokenCommand(open),
		newCanCommand(open),
		newGetCommand(open),
	)
	return root
}

type opener func(cmd *cobra.Command) (*app.Application, error)

// withApp runs fn against a bootstrapped application and closes it after.
func withApp(cmd *cobra.Command, open opener, fn func(a *app.Application) error) (err error) {
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

// ExecuteContext runs the command tree with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
