package authz

import (
	"fmt"
	"strings"
)

// Requirement is a named check against a Policy, used by route guards.
type Requirement struct {
	Name  string
	Check func(Policy) bool
}

// Allows reports whether p satisfies the requirement. A requirement without a
// check never passes.
func (r Requirement) Allows(p Policy) bool {
	if r.Check == nil {
		return false
	}
	return r.Check(p)
}

func (r Requirement) String() string { return r.Name }

func RequireRole(tag string) Requirement {
	return Requirement{
		Name:  fmt.Sprintf("role:%s", tag),
		Check: func(p Policy) bool { return p.HasRole(tag) },
	}
}

func RequireManager() Requirement {
	return Requirement{Name: "manager", Check: Policy.IsManager}
}

func RequireGlobalManager() Requirement {
	return Requirement{Name: "global-manager", Check: Policy.IsGlobalManager}
}

func RequireDepartmentManager(deptID int64) Requirement {
	return Requirement{
		Name:  fmt.Sprintf("department-manager:%d", deptID),
		Check: func(p Policy) bool { return p.IsDepartmentManager(deptID) },
	}
}

func RequireDepartmentAccess(deptID, userDeptID int64) Requirement {
	return Requirement{
		Name:  fmt.Sprintf("department-access:%d", deptID),
		Check: func(p Policy) bool { return p.CanAccessDepartment(deptID, userDeptID) },
	}
}

func RequireAllProjectsInDepartment(deptID int64) Requirement {
	return Requirement{
		Name:  fmt.Sprintf("department-projects:%d", deptID),
		Check: func(p Policy) bool { return p.CanAccessAllProjectsInDepartment(deptID) },
	}
}

// Evaluate checks every requirement in order and returns the first one that
// fails, if any.
func Evaluate(p Policy, reqs ...Requirement) (Requirement, bool) {
	for _, r := range reqs {
		if !r.Allows(p) {
			return r, false
		}
	}
	return Requirement{}, true
}

// Names joins requirement names for logs and error messages.
func Names(reqs ...Requirement) string {
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ",")
}
