// Package authsession owns one user's session: the access token, whether it
// is trusted, the cached role assignments, and the single-flight renewal of
// the token through the refresh credential.
package authsession

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
)

type Option func(*Session)

// WithStateStore persists token and roles across restarts.
func WithStateStore(st StateStore) Option {
	return func(s *Session) { s.store = st }
}

func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.obs = o
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLeeway treats tokens expiring within d as already expired, so they are
// renewed before the server starts rejecting them.
func WithLeeway(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.leeway = d
		}
	}
}

// WithMatcher changes how role names are matched by the predicates.
func WithMatcher(m authz.Matcher) Option {
	return func(s *Session) { s.matcher = m }
}

// Session is safe for concurrent use. Mutations are serialised by mu and no
// network call is made while holding it.
type Session struct {
	flights   *RefreshOrchestrator
	roles     RoleFetcher
	creds     CredentialStore
	store     StateStore
	obs       Observer
	log       *slog.Logger
	now       func() time.Time
	leeway    time.Duration
	matcher   authz.Matcher

	// bg scopes background role confirmations; Close cancels it.
	bg     context.Context
	cancel context.CancelFunc

	persistMu sync.Mutex

	mu          sync.Mutex
	state       State
	token       string
	subject     string
	authed      bool
	errMsg      string
	assignments []authz.RoleAssignment
	generation  uint64 // bumped whenever the credential changes
	confirmGen  uint64 // generation whose background confirmation has started
	check       *checkCall
	busy        int
	idle        chan struct{}
	closed      bool
}

// New returns a session in INIT. Call Restore and then CheckAuthStatus.
func New(refresher Refresher, roles RoleFetcher, creds CredentialStore, opts ...Option) *Session {
	bg, cancel := context.WithCancel(context.Background())

	s := &Session{
		flights:   NewRefreshOrchestrator(refresher),
		roles:     roles,
		creds:     creds,
		obs:       nopObserver{},
		log:       slog.Default(),
		now:       time.Now,
		matcher:   authz.MatchSubstring,
		bg:        bg,
		cancel:    cancel,
		state:     StateInit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops background confirmations. Results that arrive afterwards are
// dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Snapshot returns the public fields read under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		AccessToken:     s.token,
		IsAuthenticated: s.authed,
		IsLoading:       s.isLoadingLocked(),
		Error:           s.errMsg,
		State:           s.state,
		Subject:         s.subject,
		Roles:           cloneAssignments(s.assignments),
	}
}

func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// IsLoading is true until the first check settles and while a check or a
// refresh is running. IsAuthenticated is not final while it is true.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoadingLocked()
}

// Err returns the user-facing error message, empty when there is none.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Roles returns a copy of the cached role assignments.
func (s *Session) Roles() []authz.RoleAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAssignments(s.assignments)
}

// Policy evaluates the cached roles. An unauthenticated session gets a
// policy with no grants.
func (s *Session) Policy() authz.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authed {
		return authz.NewPolicy(nil, authz.WithMatcher(s.matcher))
	}
	return authz.NewPolicy(s.assignments, authz.WithMatcher(s.matcher))
}

func (s *Session) HasRole(tag string) bool { return s.Policy().HasRole(tag) }
func (s *Session) IsManager() bool         { return s.Policy().IsManager() }
func (s *Session) IsGlobalManager() bool   { return s.Policy().IsGlobalManager() }

func (s *Session) IsDepartmentManager(deptID int64) bool {
	return s.Policy().IsDepartmentManager(deptID)
}

func (s *Session) CanAccessDepartment(deptID, userDeptID int64) bool {
	return s.Policy().CanAccessDepartment(deptID, userDeptID)
}

func (s *Session) CanAccessAllProjectsInDepartment(deptID int64) bool {
	return s.Policy().CanAccessAllProjectsInDepartment(deptID)
}

// SetAccessToken installs token as the session credential. An empty token
// signs the session out locally. Cached roles survive only when the new
// token names the same subject as the old one.
func (s *Session) SetAccessToken(token string) {
	s.mu.Lock()
	s.setTokenLocked(token)
	s.errMsg = ""
	switch {
	case token == "":
		s.setStateLocked(StateUnauthenticated)
	case len(s.assignments) > 0:
		s.setStateLocked(StateAuthenticated)
	default:
		s.setStateLocked(StateAuthenticatedUnverified)
	}
	s.mu.Unlock()

	s.persist(s.bg)
}

// ClearAuth drops the token, roles, flags and error, and the refresh
// credential cookie.
func (s *Session) ClearAuth() {
	s.mu.Lock()
	s.clearLocked("")
	s.mu.Unlock()

	s.creds.ClearRefreshCredential()
}

// Logout is ClearAuth plus removal of the persisted state.
func (s *Session) Logout(ctx context.Context) error {
	s.ClearAuth()

	if s.store == nil {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("authsession: clear persisted state: %w", err)
	}
	return nil
}

// Restore loads persisted state into a fresh session. The token stays
// untrusted until CheckAuthStatus has looked at it.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	st, ok, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("authsession: restore: %w", err)
	}
	if !ok || st.AccessToken == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit || s.token != "" {
		return nil
	}

	s.token = st.AccessToken
	s.subject = subjectOf(st.AccessToken)
	s.assignments = cloneAssignments(st.Roles)
	s.generation++

	s.log.Debug("session restored", "roles", len(s.assignments))
	return nil
}

// WaitIdle blocks until no check and no background confirmation is running.
func (s *Session) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	if s.busy == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) isLoadingLocked() bool {
	return s.check != nil || s.state == StateInit || s.state == StateAuthenticating
}

func (s *Session) usableLocked() bool {
	return jwtx.IsUsable(s.token, s.now(), s.leeway)
}

func (s *Session) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.obs.StateChanged(from, to)
	s.log.Debug("session state changed", "from", from.String(), "to", to.String())
}

func (s *Session) setTokenLocked(token string) {
	sub := subjectOf(token)
	if token == "" || sub == "" || sub != s.subject {
		s.assignments = nil
	}

	s.token = token
	s.subject = sub
	s.authed = token != ""
	s.generation++
}

// clearLocked resets the credential and everything derived from it.
func (s *Session) clearLocked(msg string) {
	s.token = ""
	s.subject = ""
	s.authed = false
	s.assignments = nil
	s.errMsg = msg
	s.generation++
	s.setStateLocked(StateUnauthenticated)
}

func (s *Session) beginWorkLocked() {
	if s.busy == 0 {
		s.idle = make(chan struct{})
	}
	s.busy++
}

func (s *Session) endWorkLocked() {
	s.busy--
	if s.busy == 0 {
		close(s.idle)
	}
}

// persist writes the current token and roles, or clears the store when there
// is no token. Failures are logged; persistence is a cache.
func (s *Session) persist(ctx context.Context) {
	if s.store == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	st := PersistedState{AccessToken: s.token, Roles: cloneAssignments(s.assignments)}
	s.mu.Unlock()

	var err error
	if st.AccessToken == "" {
		err = s.store.Clear(ctx)
	} else {
		err = s.store.Save(ctx, st)
	}
	if err != nil {
		s.log.Warn("failed to persist session state", "err", err)
	}
}

func subjectOf(token string) string {
	if token == "" {
		return ""
	}
	p, ok := jwtx.Decode(token)
	if !ok {
		return ""
	}
	return p.Subject
}

func cloneAssignments(in []authz.RoleAssignment) []authz.RoleAssignment {
	if len(in) == 0 {
		return nil
	}
	return append([]authz.RoleAssignment(nil), in...)
}
