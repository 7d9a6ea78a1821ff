package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// The client side uses Sessions and Cookies; the development backend uses
// the rest.
type Store interface {
	Users() Users
	Roles() Roles
	RefreshTokens() RefreshTokens
	Sessions() Sessions
	Cookies() Cookies

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername matches case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists for a taken username.
	CreateUser(ctx context.Context, u domain.User) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Roles interface {
	// EnsureRole returns the role called name, creating it if needed.
	EnsureRole(ctx context.Context, name, description string) (authz.Role, error)

	// GrantRole assigns a role at a scope. Granting the same assignment
	// twice is a no-op and returns the existing assignment.
	GrantRole(ctx context.Context, userID string, a authz.RoleAssignment) (authz.RoleAssignment, error)

	// ListAssignments returns a user's grants, oldest first.
	ListAssignments(ctx context.Context, userID string) ([]authz.RoleAssignment, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)
	// RevokeRefreshToken revokes a live token. It returns ErrNotFound when
	// no unrevoked token has the hash.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeSession revokes every token of a login session, used on reuse
	// of a rotated token and on logout.
	RevokeSession(ctx context.Context, sessionID string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Sessions interface {
	GetSession(ctx context.Context, key string) (domain.SessionRecord, error)
	PutSession(ctx context.Context, rec domain.SessionRecord) error
	DeleteSession(ctx context.Context, key string) error
}

type Cookies interface {
	ListCookies(ctx context.Context, origin string) ([]domain.StoredCookie, error)

	// ReplaceCookies swaps the whole cookie set of origin.
	ReplaceCookies(ctx context.Context, origin string, cookies []domain.StoredCookie) error
}
