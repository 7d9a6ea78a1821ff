package authsession

import (
	"context"

	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

// RefreshResult is what the refresh endpoint hands back. RefreshToken is
// empty when the server rotates the credential through Set-Cookie only.
type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Refresher exchanges the refresh credential for a new access token. The
// credential travels out of band, usually as a cookie.
type Refresher interface {
	Refresh(ctx context.Context) (RefreshResult, error)
}

// RoleFetcher loads the role assignments granted to the bearer of accessToken.
type RoleFetcher interface {
	FetchRoles(ctx context.Context, accessToken string) ([]authz.RoleAssignment, error)
}

// CredentialStore is the script-visible side of the cookie jar.
type CredentialStore interface {
	HasRefreshCredential() bool
	SetRefreshCredential(value string)
	ClearRefreshCredential()
}

// PersistedState is the part of the session kept across process restarts.
type PersistedState struct {
	AccessToken string                 `json:"accessToken"`
	Roles       []authz.RoleAssignment `json:"roles"`
}

// StateStore keeps PersistedState in durable storage. Load reports false
// when nothing was saved.
type StateStore interface {
	Load(ctx context.Context) (PersistedState, bool, error)
	Save(ctx context.Context, st PersistedState) error
	Clear(ctx context.Context) error
}

// Outcome labels reported to an Observer.
const (
	OutcomeAuthenticated   = "authenticated"
	OutcomeUnverified      = "unverified"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeFailed          = "failed"
	OutcomeSuccess         = "success"
	OutcomeDiscarded       = "discarded"
)

// Observer receives session events, typically for metrics.
type Observer interface {
	CheckCompleted(outcome string)
	RefreshCompleted(outcome string, shared bool)
	RolesFetched(outcome string)
	StateChanged(from, to State)
}

type nopObserver struct{}

func (nopObserver) CheckCompleted(string)         {}
func (nopObserver) RefreshCompleted(string, bool) {}
func (nopObserver) RolesFetched(string)           {}
func (nopObserver) StateChanged(State, State)     {}
