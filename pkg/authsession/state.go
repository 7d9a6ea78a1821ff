package authsession

import "github.com/aussiebroadwan/sessiongate/pkg/authz"

type State int

const (
	StateInit State = iota
	StateUnauthenticated
	StateAuthenticating
	StateAuthenticatedUnverified
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticatedUnverified:
		return "AUTHENTICATED_UNVERIFIED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets State appear by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a consistent copy of the session's public fields.
type Snapshot struct {
	AccessToken     string `json:"accessToken,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
	State           State  `json:"state"`
	Subject         string `json:"subject,omitempty"`

	Roles []authz.RoleAssignment `json:"roles,omitempty"`
}
