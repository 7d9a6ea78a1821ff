package authsession_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/stretchr/testify/require"
)

func TestEnsureFreshToken(t *testing.T) {
	t.Run("usable token is returned as is", func(t *testing.T) {
		f := newFixture(t)
		token := freshToken(t, "42")
		f.session.SetAccessToken(token)

		got, err := f.session.EnsureFreshToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, token, got)
		require.Zero(t, f.refresher.calls.Load())
	})

	t.Run("expired token is renewed", func(t *testing.T) {
		f := newFixture(t)
		f.jar.SetRefreshCredential("rt")
		renewed := freshToken(t, "42")
		f.refresher.result = authsession.RefreshResult{AccessToken: renewed}

		f.session.SetAccessToken(makeToken(t, "42", time.Now().Add(-time.Minute)))

		got, err := f.session.EnsureFreshToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, renewed, got)
		require.Equal(t, renewed, f.session.AccessToken())
	})

	t.Run("leeway renews tokens about to expire", func(t *testing.T) {
		f := newFixture(t, authsession.WithLeeway(time.Minute))
		f.jar.SetRefreshCredential("rt")
		renewed := freshToken(t, "42")
		f.refresher.result = authsession.RefreshResult{AccessToken: renewed}

		f.session.SetAccessToken(makeToken(t, "42", time.Now().Add(30*time.Second)))

		got, err := f.session.EnsureFreshToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, renewed, got)
	})

	t.Run("no refresh credential clears an expired session", func(t *testing.T) {
		f := newFixture(t)
		f.session.SetAccessToken(makeToken(t, "42", time.Unix(1, 0)))

		_, err := f.session.EnsureFreshToken(context.Background())
		require.ErrorIs(t, err, authsession.ErrMissingRefreshCredential)
		require.False(t, f.session.IsAuthenticated())
		require.Equal(t, authsession.MsgSessionExpired, f.session.Err())
	})
}

func TestRefreshedTokenMustBeUsable(t *testing.T) {
	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{"malformed", func(*testing.T) string { return "not-a-jwt" }, authsession.ErrMalformedToken},
		{"already expired", func(t *testing.T) string { return makeToken(t, "42", time.Unix(1, 0)) }, authsession.ErrExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.jar.SetRefreshCredential("rt")
			f.refresher.result = authsession.RefreshResult{AccessToken: tt.token(t), RefreshToken: "rt-2"}

			f.session.SetAccessToken(makeToken(t, "42", time.Now().Add(-time.Minute)))

			got, err := f.session.EnsureFreshToken(context.Background())
			require.ErrorIs(t, err, authsession.ErrRefreshFailed)
			require.ErrorIs(t, err, tt.wantErr)
			require.Empty(t, got)

			require.False(t, f.session.IsAuthenticated())
			require.Empty(t, f.session.AccessToken())
			require.Equal(t, authsession.StateUnauthenticated, f.session.State())
			require.Equal(t, authsession.MsgSessionExpired, f.session.Err())
			require.False(t, f.jar.HasRefreshCredential())
		})
	}

	t.Run("rejected after a 401", func(t *testing.T) {
		f := newFixture(t)
		f.jar.SetRefreshCredential("rt")
		f.refresher.result = authsession.RefreshResult{AccessToken: "not-a-jwt"}

		stale := freshToken(t, "42")
		f.session.SetAccessToken(stale)

		_, err := f.session.HandleUnauthorized(context.Background(), stale)
		require.ErrorIs(t, err, authsession.ErrMalformedToken)
		require.False(t, f.session.IsAuthenticated())
	})
}

func TestHandleUnauthorizedCollapsesIntoOneRefresh(t *testing.T) {
	f := newFixture(t)
	f.jar.SetRefreshCredential("rt")

	stale := freshToken(t, "42")
	renewed := makeToken(t, "42", time.Now().Add(time.Hour))
	f.session.SetAccessToken(stale)

	f.refresher.result = authsession.RefreshResult{AccessToken: renewed, RefreshToken: "rt-2"}
	f.refresher.gate = make(chan struct{})
	f.refresher.started = make(chan struct{}, 1)

	const callers = 8
	var wg sync.WaitGroup
	got := make([]string, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		got[0], errs[0] = f.session.HandleUnauthorized(context.Background(), stale)
	}()
	<-f.refresher.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = f.session.HandleUnauthorized(context.Background(), stale)
		}(i)
	}

	close(f.refresher.gate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, renewed, got[i])
	}
	require.Equal(t, int32(1), f.refresher.calls.Load())

	t.Run("late caller gets the replacement without a refresh", func(t *testing.T) {
		token, err := f.session.HandleUnauthorized(context.Background(), stale)
		require.NoError(t, err)
		require.Equal(t, renewed, token)
		require.Equal(t, int32(1), f.refresher.calls.Load())
	})

	t.Run("rejection of the current token refreshes again", func(t *testing.T) {
		f.refresher.gate = nil
		f.refresher.result = authsession.RefreshResult{AccessToken: freshToken(t, "42")}

		_, err := f.session.HandleUnauthorized(context.Background(), renewed)
		require.NoError(t, err)
		require.Equal(t, int32(2), f.refresher.calls.Load())
	})
}

func TestRefreshDuringLogoutIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.jar.SetRefreshCredential("rt")
	f.session.SetAccessToken(makeToken(t, "42", time.Unix(1, 0)))

	f.refresher.result = authsession.RefreshResult{AccessToken: freshToken(t, "42")}
	f.refresher.gate = make(chan struct{})
	f.refresher.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.session.EnsureFreshToken(context.Background())
		done <- err
	}()

	<-f.refresher.started
	require.NoError(t, f.session.Logout(context.Background()))
	close(f.refresher.gate)

	require.ErrorIs(t, <-done, authsession.ErrRefreshFailed)
	require.False(t, f.session.IsAuthenticated())
	require.Empty(t, f.session.AccessToken())
}
