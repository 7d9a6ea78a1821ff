package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

func TestParseRequirement(t *testing.T) {
	deptManager := authz.NewPolicy([]authz.RoleAssignment{
		{Role: authz.Role{Name: "Department Manager"}, Scope: authz.ScopeDepartment, ScopeID: 3},
	})

	tests := []struct {
		in      string
		name    string
		allowed bool
	}{
		{"role:manager", "role:manager", true},
		{"manager", "manager", true},
		{"global-manager", "global-manager", false},
		{"department-manager:3", "department-manager:3", true},
		{"department-manager:4", "department-manager:4", false},
		{"department-access:7", "department-access:7", true},
		{" department-projects:3 ", "department-projects:3", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRequirement(tt.in, 7)
			require.NoError(t, err)
			require.Equal(t, tt.name, r.Name)
			require.Equal(t, tt.allowed, r.Allows(deptManager))
		})
	}

	for _, bad := range []string{"", "role:", "department-manager", "department-access:x", "owner"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := ParseRequirement(bad, 0)
			require.ErrorIs(t, err, errBadRequirement)
		})
	}
}

func TestHomeDepartment(t *testing.T) {
	require.Zero(t, homeDepartment(""))
	require.Zero(t, homeDepartment("not.a.token"))
}

func TestCommandTree(t *testing.T) {
	root := NewRootCommand()

	want := map[string]bool{"login": false, "logout": false, "status": false, "roles": false, "token": false, "can": false, "get": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		require.True(t, found, "subcommand %q not registered", name)
	}

	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}
