package domain

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

// SessionRecord is the persisted client session under a namespaced key.
type SessionRecord struct {
	Key         string
	SealedToken []byte
	Roles       []authz.RoleAssignment
	UpdatedAt   time.Time
}

// StoredCookie is a persistent cookie of one origin. Session cookies are
// never stored.
type StoredCookie struct {
	Origin      string
	Name        string
	SealedValue []byte
	Path        string
	Domain      string
	ExpiresAt   time.Time
	Secure      bool
	HttpOnly    bool
	SameSite    http.SameSite
}
