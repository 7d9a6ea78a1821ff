package authsession

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/idx"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
)

// checkCall is one running CheckAuthStatus attempt. Concurrent callers wait
// on done and read err.
type checkCall struct {
	done chan struct{}
	err  error
}

// CheckAuthStatus settles the session. It is a no-op when the session is
// already authenticated with a usable token, or unauthenticated with nothing
// to renew from. Otherwise it runs one attempt, shared by every caller that
// arrives while it is running:
//
//   - no token and no refresh credential: UNAUTHENTICATED
//   - missing, malformed or expired token with a refresh credential: refresh,
//     then fetch roles; any failure clears the session
//   - expired or malformed token without a refresh credential: cleared
//   - usable token: AUTHENTICATED_UNVERIFIED at once, confirmed against the
//     role service in the background unless roles are already cached
//
// ctx bounds how long the caller waits. The attempt itself runs to the end.
// The returned error is non-nil only for refresh and role failures.
func (s *Session) CheckAuthStatus(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	call := s.check
	if call == nil {
		if s.settledLocked() {
			s.mu.Unlock()
			return nil
		}

		call = &checkCall{done: make(chan struct{})}
		s.check = call
		s.beginWorkLocked()
		go s.runCheck(context.WithoutCancel(ctx), call)
	}
	s.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) settledLocked() bool {
	switch s.state {
	case StateAuthenticated:
		return s.authed && s.usableLocked()
	case StateAuthenticatedUnverified:
		return s.authed && s.usableLocked() && s.confirmGen == s.generation
	case StateUnauthenticated:
		return s.token == "" && !s.creds.HasRefreshCredential()
	default:
		return false
	}
}

func (s *Session) runCheck(ctx context.Context, call *checkCall) {
	log := s.log.With("attempt_id", idx.New().String())

	outcome, err := s.evaluate(ctx, log)
	s.obs.CheckCompleted(outcome)
	log.Debug("auth status checked", "outcome", outcome)

	s.mu.Lock()
	s.check = nil
	s.endWorkLocked()
	s.mu.Unlock()

	call.err = err
	close(call.done)
}

func (s *Session) evaluate(ctx context.Context, log *slog.Logger) (string, error) {
	s.mu.Lock()
	token := s.token
	gen := s.generation
	hasCred := s.creds.HasRefreshCredential()
	s.mu.Unlock()

	if token != "" {
		reason := s.classify(token)
		if reason == nil {
			return s.acceptLocal(gen, token, log), nil
		}
		log.Debug("stored token rejected", "reason", reason)
	}

	if !hasCred {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return OutcomeDiscarded, nil
		}
		if token != "" {
			s.clearLocked(MsgSessionExpired)
		} else {
			s.setStateLocked(StateUnauthenticated)
		}
		s.mu.Unlock()

		if token != "" {
			s.persist(ctx)
		}
		return OutcomeUnauthenticated, nil
	}

	res, err := s.renew(ctx, token)
	if err != nil {
		log.Info("session refresh failed", "err", err)
		return OutcomeFailed, err
	}

	return s.confirmRoles(ctx, res.AccessToken, log)
}

// classify returns nil for a locally usable token, or why it is not.
func (s *Session) classify(token string) error {
	if !jwtx.IsStructurallyValid(token) {
		return ErrMalformedToken
	}
	if !jwtx.IsUsable(token, s.now(), s.leeway) {
		return ErrExpiredToken
	}
	return nil
}

// acceptLocal trusts a locally valid token straight away and, when there are
// no cached roles, starts the background confirmation.
func (s *Session) acceptLocal(gen uint64, token string, log *slog.Logger) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return OutcomeDiscarded
	}

	s.authed = true
	s.errMsg = ""
	if len(s.assignments) > 0 {
		s.setStateLocked(StateAuthenticated)
		return OutcomeAuthenticated
	}

	s.setStateLocked(StateAuthenticatedUnverified)
	s.confirmGen = gen
	s.beginWorkLocked()
	go func() {
		s.confirmAsync(gen, token, log)

		s.mu.Lock()
		s.endWorkLocked()
		s.mu.Unlock()
	}()

	return OutcomeUnverified
}

func (s *Session) confirmAsync(gen uint64, token string, log *slog.Logger) {
	roles, err := s.roles.FetchRoles(s.bg, token)

	s.mu.Lock()
	if s.closed || s.generation != gen {
		s.mu.Unlock()
		s.obs.RolesFetched(OutcomeDiscarded)
		return
	}
	if err != nil {
		s.clearLocked(MsgUnverifiable)
		s.mu.Unlock()

		s.obs.RolesFetched(OutcomeFailed)
		log.Info("session confirmation failed", "err", err)
		s.persist(s.bg)
		return
	}
	s.applyRolesLocked(roles)
	s.mu.Unlock()

	s.obs.RolesFetched(OutcomeSuccess)
	s.persist(s.bg)
}

// confirmRoles fetches roles for a freshly refreshed token before the check
// completes.
func (s *Session) confirmRoles(ctx context.Context, token string, log *slog.Logger) (string, error) {
	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		return OutcomeDiscarded, nil
	}
	gen := s.generation
	s.mu.Unlock()

	roles, err := s.roles.FetchRoles(ctx, token)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.obs.RolesFetched(OutcomeDiscarded)
		return OutcomeDiscarded, nil
	}
	if err != nil {
		s.clearLocked(MsgUnverifiable)
		s.mu.Unlock()

		s.obs.RolesFetched(OutcomeFailed)
		log.Info("role fetch after refresh failed", "err", err)
		s.persist(ctx)
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrRoleFetchFailed, err)
	}
	s.applyRolesLocked(roles)
	s.mu.Unlock()

	s.obs.RolesFetched(OutcomeSuccess)
	s.persist(ctx)
	return OutcomeAuthenticated, nil
}

func (s *Session) applyRolesLocked(roles []authz.RoleAssignment) {
	s.assignments = cloneAssignments(roles)
	s.authed = true
	s.errMsg = ""
	s.setStateLocked(StateAuthenticated)
}

// FetchUserRoles reloads the role cache for the current token. On failure
// the session is cleared, as for any unverifiable credential.
func (s *Session) FetchUserRoles(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	gen := s.generation
	s.mu.Unlock()

	if token == "" {
		return ErrUnauthenticated
	}

	roles, err := s.roles.FetchRoles(ctx, token)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.obs.RolesFetched(OutcomeDiscarded)
		return fmt.Errorf("%w: credential changed during fetch", ErrRoleFetchFailed)
	}
	if err != nil {
		s.clearLocked(MsgUnverifiable)
		s.mu.Unlock()

		s.obs.RolesFetched(OutcomeFailed)
		s.persist(ctx)
		return fmt.Errorf("%w: %w", ErrRoleFetchFailed, err)
	}
	s.applyRolesLocked(roles)
	s.mu.Unlock()

	s.obs.RolesFetched(OutcomeSuccess)
	s.persist(ctx)
	return nil
}
