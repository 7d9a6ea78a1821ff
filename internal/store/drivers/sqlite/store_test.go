package sqlite_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
	"github.com/aussiebroadwan/sessiongate/internal/store"
	"github.com/aussiebroadwan/sessiongate/internal/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrationsAreIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	empty, err := s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	now := time.UnixMilli(1_700_000_000_000).UTC()
	u := domain.User{ID: "u1", Username: "Alice", PasswordHash: "h", DepartmentID: 5, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u, got)

	dup := u
	dup.ID = "u2"
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	_, err = s.Users().GetUserByID(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Users().CreateUser(ctx, domain.User{ID: "u1", Username: "alice", PasswordHash: "h"}))

	role, err := s.Roles().EnsureRole(ctx, "Department Manager", "runs a department")
	require.NoError(t, err)
	again, err := s.Roles().EnsureRole(ctx, "Department Manager", "")
	require.NoError(t, err)
	require.Equal(t, role, again)

	grant := authz.RoleAssignment{Role: role, Scope: authz.ScopeDepartment, ScopeID: 5, GrantedAt: time.UnixMilli(1000).UTC()}
	a, err := s.Roles().GrantRole(ctx, "u1", grant)
	require.NoError(t, err)
	require.NotZero(t, a.ID)
	require.Equal(t, "Department Manager", a.Role.Name)

	b, err := s.Roles().GrantRole(ctx, "u1", grant)
	require.NoError(t, err)
	require.Equal(t, a, b)

	_, err = s.Roles().GrantRole(ctx, "u1", authz.RoleAssignment{Role: role, Scope: "TEAM"})
	require.Error(t, err)

	list, err := s.Roles().ListAssignments(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []authz.RoleAssignment{a}, list)

	none, err := s.Roles().ListAssignments(ctx, "u2")
	require.NoError(t, err)
	require.Empty(t, none)
	require.NotNil(t, none)
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Users().CreateUser(ctx, domain.User{ID: "u1", Username: "alice", PasswordHash: "h"}))

	now := time.UnixMilli(1_700_000_000_000).UTC()
	tok := domain.RefreshToken{
		ID: "t1", UserID: "u1", TokenHash: "hash1", SessionID: "s1",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, tok))

	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash1")
	require.NoError(t, err)
	require.Equal(t, tok, got)

	second := tok
	second.ID, second.TokenHash = "t2", "hash2"
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, second))

	t.Run("revoke only succeeds once", func(t *testing.T) {
		require.NoError(t, s.RefreshTokens().RevokeRefreshToken(ctx, "hash1"))
		require.ErrorIs(t, s.RefreshTokens().RevokeRefreshToken(ctx, "hash1"), store.ErrNotFound)
		require.ErrorIs(t, s.RefreshTokens().RevokeRefreshToken(ctx, "missing"), store.ErrNotFound)
	})

	require.NoError(t, s.RefreshTokens().RevokeSession(ctx, "s1"))
	for _, h := range []string{"hash1", "hash2"} {
		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, h)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	}

	n, err := s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Sessions().GetSession(ctx, "auth-storage")
	require.ErrorIs(t, err, store.ErrNotFound)

	rec := domain.SessionRecord{
		Key:         "auth-storage",
		SealedToken: []byte{1, 2, 3},
		Roles:       []authz.RoleAssignment{{ID: 1, Role: authz.Role{ID: 2, Name: "Manager"}, Scope: authz.ScopeGlobal, GrantedAt: time.UnixMilli(5).UTC()}},
		UpdatedAt:   time.UnixMilli(10).UTC(),
	}
	require.NoError(t, s.Sessions().PutSession(ctx, rec))

	rec.SealedToken = []byte{4}
	require.NoError(t, s.Sessions().PutSession(ctx, rec))

	got, err := s.Sessions().GetSession(ctx, "auth-storage")
	require.NoError(t, err)
	require.Equal(t, rec, got)

	require.NoError(t, s.Sessions().DeleteSession(ctx, "auth-storage"))
	_, err = s.Sessions().GetSession(ctx, "auth-storage")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCookiesReplaceInTx(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	const origin = "http://localhost:8080"

	first := []domain.StoredCookie{
		{Origin: origin, Name: "a", SealedValue: []byte("1"), Path: "/", ExpiresAt: time.UnixMilli(1000).UTC(), SameSite: http.SameSiteLaxMode},
		{Origin: origin, Name: "b", SealedValue: []byte("2"), Path: "/api", ExpiresAt: time.UnixMilli(2000).UTC(), Secure: true, HttpOnly: true},
	}
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Cookies().ReplaceCookies(ctx, origin, first)
	}))

	got, err := s.Cookies().ListCookies(ctx, origin)
	require.NoError(t, err)
	require.Equal(t, first, got)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Cookies().ReplaceCookies(ctx, origin, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err = s.Cookies().ListCookies(ctx, origin)
	require.NoError(t, err)
	require.Len(t, got, 2, "rolled back")

	other, err := s.Cookies().ListCookies(ctx, "http://elsewhere")
	require.NoError(t, err)
	require.Empty(t, other)
}
