package authsession_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/stretchr/testify/require"
)

func TestGuardEnter(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := newFixture(t)
		err := authsession.NewGuard(f.session).Enter(context.Background())
		require.ErrorIs(t, err, authsession.ErrUnauthenticated)
	})

	t.Run("refresh failure is unauthenticated", func(t *testing.T) {
		f := newFixture(t)
		f.jar.SetRefreshCredential("rt")
		f.refresher.err = errBackend

		err := authsession.NewGuard(f.session).Enter(context.Background())
		require.ErrorIs(t, err, authsession.ErrUnauthenticated)
		require.ErrorIs(t, err, authsession.ErrRefreshFailed)
	})

	t.Run("authenticated without requirements", func(t *testing.T) {
		f := newFixture(t)
		f.session.SetAccessToken(freshToken(t, "42"))
		require.NoError(t, authsession.NewGuard(f.session).Enter(context.Background()))
	})

	t.Run("requirements wait for role confirmation", func(t *testing.T) {
		f := newFixture(t)
		f.roles.roles = []authz.RoleAssignment{{Role: authz.Role{Name: "Department Manager"}, Scope: authz.ScopeDepartment, ScopeID: 5}}
		f.session.SetAccessToken(freshToken(t, "42"))

		g := authsession.NewGuard(f.session)
		require.NoError(t, g.Enter(context.Background(), authz.RequireDepartmentManager(5)))

		err := g.Enter(context.Background(), authz.RequireGlobalManager())
		require.ErrorIs(t, err, authsession.ErrForbidden)
		require.Contains(t, err.Error(), "global-manager")
	})

	t.Run("failed confirmation is unauthenticated", func(t *testing.T) {
		f := newFixture(t)
		f.roles.err = errBackend
		f.session.SetAccessToken(freshToken(t, "42"))

		err := authsession.NewGuard(f.session).Enter(context.Background(), authz.RequireManager())
		require.ErrorIs(t, err, authsession.ErrUnauthenticated)
	})
}
