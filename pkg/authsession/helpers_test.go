package authsession_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/cookiex"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

func makeToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	enc := base64.RawURLEncoding.EncodeToString
	body, err := json.Marshal(map[string]any{"sub": sub, "iat": time.Now().Unix(), "exp": exp.Unix()})
	require.NoError(t, err)
	return enc([]byte(`{"alg":"EdDSA","typ":"JWT"}`)) + "." + enc(body) + "." + enc([]byte("sig"))
}

func freshToken(t *testing.T, sub string) string {
	return makeToken(t, sub, time.Now().Add(15*time.Minute))
}

type fakeRefresher struct {
	calls   atomic.Int32
	result  authsession.RefreshResult
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeRefresher) Refresh(ctx context.Context) (authsession.RefreshResult, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.result, f.err
}

type fakeRoles struct {
	calls atomic.Int32
	mu    sync.Mutex
	roles []authz.RoleAssignment
	err   error
	gate  chan struct{}
	seen  []string
}

func (f *fakeRoles) FetchRoles(ctx context.Context, token string) ([]authz.RoleAssignment, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, token)
	return f.roles, f.err
}

type memStore struct {
	mu    sync.Mutex
	state *authsession.PersistedState
}

func (m *memStore) Load(context.Context) (authsession.PersistedState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return authsession.PersistedState{}, false, nil
	}
	return *m.state, true, nil
}

func (m *memStore) Save(_ context.Context, st authsession.PersistedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &st
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}

func (m *memStore) current() *authsession.PersistedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func globalManager() []authz.RoleAssignment {
	return []authz.RoleAssignment{{ID: 1, Role: authz.Role{ID: 1, Name: "Manager"}, Scope: authz.ScopeGlobal}}
}

type fixture struct {
	session   *authsession.Session
	refresher *fakeRefresher
	roles     *fakeRoles
	jar       *cookiex.Jar
	store     *memStore
}

func newFixture(t *testing.T, opts ...authsession.Option) *fixture {
	t.Helper()

	f := &fixture{
		refresher: &fakeRefresher{},
		roles:     &fakeRoles{},
		jar:       cookiex.New(nil),
		store:     &memStore{},
	}
	opts = append([]authsession.Option{authsession.WithStateStore(f.store)}, opts...)
	f.session = authsession.New(f.refresher, f.roles, f.jar, opts...)
	t.Cleanup(f.session.Close)
	return f
}

func waitIdle(t *testing.T, s *authsession.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.WaitIdle(ctx))
}
