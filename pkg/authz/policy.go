package authz

// Role tags the manager predicates look for.
const (
	TagManager = "manager"
	TagAdmin   = "admin"
	TagLead    = "lead"
)

// Policy evaluates the scope hierarchy GLOBAL > DEPARTMENT > PROJECT > self
// over a fixed set of role assignments. The zero value has no grants and
// denies everything except the self-department fallback.
type Policy struct {
	assignments []RoleAssignment
	match       Matcher
}

type Option func(*Policy)

// WithMatcher replaces the default substring matcher.
func WithMatcher(m Matcher) Option {
	return func(p *Policy) {
		if m != nil {
			p.match = m
		}
	}
}

// NewPolicy snapshots assignments; later changes to the slice are not seen.
func NewPolicy(assignments []RoleAssignment, opts ...Option) Policy {
	p := Policy{
		assignments: append([]RoleAssignment(nil), assignments...),
		match:       MatchSubstring,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Assignments returns a copy of the grants the policy evaluates.
func (p Policy) Assignments() []RoleAssignment {
	return append([]RoleAssignment(nil), p.assignments...)
}

func (p Policy) matches(name, tag string) bool {
	if p.match == nil {
		return MatchSubstring(name, tag)
	}
	return p.match(name, tag)
}

// HasRole reports whether any assignment's role name matches tag, at any scope.
func (p Policy) HasRole(tag string) bool {
	for _, a := range p.assignments {
		if p.matches(a.Role.Name, tag) {
			return true
		}
	}
	return false
}

// IsManager reports a manager, admin or lead grant at any scope.
func (p Policy) IsManager() bool {
	return p.HasRole(TagManager) || p.HasRole(TagAdmin) || p.HasRole(TagLead)
}

// IsGlobalManager reports a manager grant at GLOBAL scope. The scope id of a
// global grant is not consulted.
func (p Policy) IsGlobalManager() bool {
	for _, a := range p.assignments {
		if a.Scope == ScopeGlobal && p.matches(a.Role.Name, TagManager) {
			return true
		}
	}
	return false
}

// IsDepartmentManager reports whether the user manages deptID. A deptID of
// zero or less asks about any department. Global managers manage every
// department.
func (p Policy) IsDepartmentManager(deptID int64) bool {
	if p.IsGlobalManager() {
		return true
	}
	for _, a := range p.assignments {
		if a.Scope != ScopeDepartment || !p.matches(a.Role.Name, TagManager) {
			continue
		}
		if deptID <= 0 || a.ScopeID == deptID {
			return true
		}
	}
	return false
}

// CanAccessDepartment reports whether the user may act inside deptID, either
// through a manager grant or because deptID is their own department. A
// userDeptID of zero or less means the user has no home department.
func (p Policy) CanAccessDepartment(deptID, userDeptID int64) bool {
	if p.IsGlobalManager() || p.IsDepartmentManager(deptID) {
		return true
	}
	return userDeptID > 0 && userDeptID == deptID
}

// CanAccessAllProjectsInDepartment reports whether the user sees every
// project of deptID rather than only those they belong to.
func (p Policy) CanAccessAllProjectsInDepartment(deptID int64) bool {
	return p.IsGlobalManager() || p.IsDepartmentManager(deptID)
}
