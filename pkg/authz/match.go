package authz

import "strings"

// Matcher decides whether a role name satisfies a tag.
type Matcher func(roleName, tag string) bool

// MatchSubstring is the default matcher: case-insensitive containment, so a
// role called "Department Manager" satisfies "manager".
//
// A role named "NotAManager" also satisfies "manager". Use MatchExact where
// role names are controlled.
func MatchSubstring(roleName, tag string) bool {
	if tag == "" {
		return false
	}
	return strings.Contains(strings.ToLower(roleName), strings.ToLower(tag))
}

// MatchExact compares whole role names, ignoring case and surrounding space.
func MatchExact(roleName, tag string) bool {
	if tag == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(roleName), strings.TrimSpace(tag))
}
