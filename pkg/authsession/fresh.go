package authsession

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
)

// EnsureFreshToken returns a token that is usable right now, renewing it
// through the single refresh flight when needed. Every outbound call should
// await it before attaching the token.
func (s *Session) EnsureFreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	token := s.token
	if token != "" && s.usableLocked() {
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	return s.renewOrExpire(ctx, token)
}

// HandleUnauthorized is called by a client whose request carrying stale was
// rejected with 401. Concurrent callers share one refresh, and a caller
// whose stale token has already been replaced gets the replacement without
// another refresh.
func (s *Session) HandleUnauthorized(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	current := s.token
	if current != "" && current != stale && s.usableLocked() {
		s.mu.Unlock()
		return current, nil
	}
	s.mu.Unlock()

	return s.renewOrExpire(ctx, current)
}

func (s *Session) renewOrExpire(ctx context.Context, stale string) (string, error) {
	if !s.creds.HasRefreshCredential() {
		s.mu.Lock()
		expired := stale != "" && s.token == stale
		if expired {
			s.clearLocked(MsgSessionExpired)
		}
		s.mu.Unlock()

		if expired {
			s.persist(ctx)
		}
		return "", ErrMissingRefreshCredential
	}

	res, err := s.renew(ctx, stale)
	if err != nil {
		return "", err
	}
	return res.AccessToken, nil
}

// renew replaces stale through the refresh flight. If an earlier flight has
// already swapped stale for a usable token, that token is returned instead.
// The flight's outcome is applied to the session exactly once: success
// installs the new token and refresh credential, failure clears the session
// and drops the refresh credential.
func (s *Session) renew(ctx context.Context, stale string) (RefreshResult, error) {
	res, shared, err := s.flights.Do(ctx, func(ctx context.Context) (RefreshResult, error) {
		s.mu.Lock()
		if s.token != "" && s.token != stale && s.usableLocked() {
			current := s.token
			s.mu.Unlock()
			return RefreshResult{AccessToken: current}, nil
		}
		gen := s.generation
		s.setStateLocked(StateAuthenticating)
		s.mu.Unlock()

		res, err := s.flights.exchange(ctx)
		return s.applyRefresh(ctx, gen, res, err)
	})

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	s.obs.RefreshCompleted(outcome, shared)

	return res, err
}

func (s *Session) applyRefresh(ctx context.Context, gen uint64, res RefreshResult, err error) (RefreshResult, error) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return RefreshResult{}, ErrClosed
	}

	// Logout or SetAccessToken happened while the request was out.
	if s.generation != gen {
		current := s.token
		s.mu.Unlock()

		if current == "" {
			return RefreshResult{}, fmt.Errorf("%w: session changed during refresh", ErrRefreshFailed)
		}
		return RefreshResult{AccessToken: current}, nil
	}

	if err == nil {
		err = s.checkRefreshedLocked(res.AccessToken)
	}
	if err != nil {
		s.clearLocked(MsgSessionExpired)
		s.mu.Unlock()

		s.creds.ClearRefreshCredential()
		s.persist(ctx)
		return RefreshResult{}, err
	}

	s.setTokenLocked(res.AccessToken)
	s.errMsg = ""
	if len(s.assignments) > 0 {
		s.setStateLocked(StateAuthenticated)
	} else {
		s.setStateLocked(StateAuthenticatedUnverified)
	}
	s.mu.Unlock()

	if res.RefreshToken != "" {
		s.creds.SetRefreshCredential(res.RefreshToken)
	}
	s.persist(ctx)
	return res, nil
}

// checkRefreshedLocked applies the local structure and expiry checks to a
// token handed back by the refresh endpoint. Leeway is not applied.
func (s *Session) checkRefreshedLocked(token string) error {
	if !jwtx.IsStructurallyValid(token) {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, ErrMalformedToken)
	}
	if jwtx.IsExpiredAt(token, s.now()) {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, ErrExpiredToken)
	}
	return nil
}
