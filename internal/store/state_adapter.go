package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
)

// DefaultStateKey is the namespaced key the session is persisted under.
const DefaultStateKey = "auth-storage"

// StateStoreAdapter implements authsession.StateStore on top of a Store.
// The access token is sealed at rest; role assignments are stored as is.
type StateStoreAdapter struct {
	store  Store
	sealer *cryptox.Sealer
	key    string
	now    func() time.Time
}

var _ authsession.StateStore = (*StateStoreAdapter)(nil)

// NewStateStoreAdapter persists under key, or DefaultStateKey when empty.
func NewStateStoreAdapter(store Store, sealer *cryptox.Sealer, key string) *StateStoreAdapter {
	if key == "" {
		key = DefaultStateKey
	}
	return &StateStoreAdapter{store: store, sealer: sealer, key: key, now: time.Now}
}

// Load returns the saved state. A record that no longer unseals, for example
// after the master key changed, is discarded and reported as absent.
func (a *StateStoreAdapter) Load(ctx context.Context) (authsession.PersistedState, bool, error) {
	rec, err := a.store.Sessions().GetSession(ctx, a.key)
	if errors.Is(err, ErrNotFound) {
		return authsession.PersistedState{}, false, nil
	}
	if err != nil {
		return authsession.PersistedState{}, false, fmt.Errorf("store: load session: %w", err)
	}

	token, err := a.sealer.Open(rec.SealedToken)
	if err != nil {
		if derr := a.store.Sessions().DeleteSession(ctx, a.key); derr != nil {
			return authsession.PersistedState{}, false, fmt.Errorf("store: drop unreadable session: %w", derr)
		}
		return authsession.PersistedState{}, false, nil
	}

	return authsession.PersistedState{AccessToken: string(token), Roles: rec.Roles}, true, nil
}

func (a *StateStoreAdapter) Save(ctx context.Context, st authsession.PersistedState) error {
	sealed, err := a.sealer.Seal([]byte(st.AccessToken))
	if err != nil {
		return fmt.Errorf("store: seal session: %w", err)
	}

	return a.store.Sessions().PutSession(ctx, domain.SessionRecord{
		Key:         a.key,
		SealedToken: sealed,
		Roles:       st.Roles,
		UpdatedAt:   a.now().UTC(),
	})
}

func (a *StateStoreAdapter) Clear(ctx context.Context) error {
	return a.store.Sessions().DeleteSession(ctx, a.key)
}
