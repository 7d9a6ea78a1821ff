package authz

import (
	"strings"
	"time"
)

// Scope is the breadth of a role grant.
type Scope string

const (
	ScopeGlobal     Scope = "GLOBAL"
	ScopeDepartment Scope = "DEPARTMENT"
	ScopeProject    Scope = "PROJECT"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeDepartment, ScopeProject:
		return true
	}
	return false
}

// ParseScope normalises a scope name. Unknown names are returned as-is and
// fail Valid, so they never satisfy a scoped check.
func ParseScope(v string) Scope {
	return Scope(strings.ToUpper(strings.TrimSpace(v)))
}

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoleAssignment is one grant of a role to the current user at a scope.
// ScopeID names the department or project; it is ignored for GLOBAL grants.
type RoleAssignment struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Scope     Scope     `json:"scope"`
	ScopeID   int64     `json:"scopeId"`
	GrantedAt time.Time `json:"grantedAt"`
}
