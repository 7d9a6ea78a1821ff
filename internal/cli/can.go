package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/sessiongate/internal/app"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
)

var (
	errNotSignedIn    = errors.New("not signed in")
	errBadRequirement = errors.New("invalid requirement")
)

// ParseRequirement turns a requirement name, as printed in forbidden
// errors, back into a requirement. userDeptID is the caller's home
// department, used by department-access.
//
//	role:<tag>
//	manager
//	global-manager
//	department-manager:<id>
//	department-access:<id>
//	department-projects:<id>
func ParseRequirement(s string, userDeptID int64) (authz.Requirement, error) {
	kind, arg, hasArg := strings.Cut(strings.TrimSpace(s), ":")

	id := func() (int64, error) {
		n, err := strconv.ParseInt(arg, 10, 64)
		if !hasArg || err != nil {
			return 0, fmt.Errorf("%w: %q needs a numeric id", errBadRequirement, s)
		}
		return n, nil
	}

	switch kind {
	case "role":
		if arg == "" {
			return authz.Requirement{}, fmt.Errorf("%w: %q needs a role tag", errBadRequirement, s)
		}
		return authz.RequireRole(arg), nil
	case "manager":
		return authz.RequireManager(), nil
	case "global-manager":
		return authz.RequireGlobalManager(), nil
	case "department-manager":
		n, err := id()
		if err != nil {
			return authz.Requirement{}, err
		}
		return authz.RequireDepartmentManager(n), nil
	case "department-access":
		n, err := id()
		if err != nil {
			return authz.Requirement{}, err
		}
		return authz.RequireDepartmentAccess(n, userDeptID), nil
	case "department-projects":
		n, err := id()
		if err != nil {
			return authz.Requirement{}, err
		}
		return authz.RequireAllProjectsInDepartment(n), nil
	}
	return authz.Requirement{}, fmt.Errorf("%w: unknown kind %q", errBadRequirement, kind)
}

// homeDepartment reads the departmentId claim of token, 0 when absent.
func homeDepartment(token string) int64 {
	p, ok := jwtx.Decode(token)
	if !ok {
		return 0
	}
	if v, ok := p.Claims["departmentId"].(float64); ok {
		return int64(v)
	}
	return 0
}

func newCanCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "can <requirement>...",
		Short: "Check requirements against the session's roles",
		Long: `Check requirements against the session's roles, as a route guard would.
Exits non-zero naming the first requirement that does not hold.

Requirements:
  role:<tag>  manager  global-manager
  department-manager:<id>  department-access:<id>  department-projects:<id>

Examples:
  sessionctl can manager
  sessionctl can department-access:3 department-projects:3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(a *app.Application) error {
				userDept := homeDepartment(a.Session().AccessToken())

				reqs := make([]authz.Requirement, 0, len(args))
				for _, s := range args {
					r, err := ParseRequirement(s, userDept)
					if err != nil {
						return err
					}
					reqs = append(reqs, r)
				}

				if err := a.Guard().Enter(cmd.Context(), reqs...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "allowed: %s\n", authz.Names(reqs...))
				return nil
			})
		},
	}
}
