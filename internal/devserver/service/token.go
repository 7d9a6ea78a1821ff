package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
	"github.com/aussiebroadwan/sessiongate/internal/metrics"
	"github.com/aussiebroadwan/sessiongate/internal/store"
	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
	"github.com/aussiebroadwan/sessiongate/pkg/idx"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// dummyHash keeps the cost of a login for an unknown user close to that of a
// wrong password.
var dummyHash, _ = cryptox.HashPassword("sessiongate-dummy")

type TokenService struct {
	Store      store.Store
	Signer     jwtx.Signer
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Metrics    *metrics.Server // optional
	Now        func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login checks a password and starts a new login session.
func (s *TokenService) Login(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		_ = cryptox.VerifyPassword(password, dummyHash)
		s.countLogin("invalid")
		return nil, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("login rejected", slog.String("user_id", u.ID))
		s.countLogin("invalid")
		return nil, ErrInvalidCredentials
	}

	pair, rt, err := s.issue(u, idx.New().String())
	if err != nil {
		return nil, err
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	s.countLogin("success")
	l.Info("login", slog.String("user_id", u.ID), slog.String("session_id", rt.SessionID))
	return pair, nil
}

// Refresh rotates a refresh credential. Presenting a credential that was
// already rotated revokes the whole login session.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	if refreshOpaque == "" {
		s.countRefresh("invalid")
		return nil, ErrInvalidRefresh
	}

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.countRefresh("invalid")
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	if rt.Revoked {
		return nil, s.reused(ctx, rt.SessionID)
	}
	if rt.Expired(now) {
		s.countRefresh("expired")
		return nil, ErrInvalidRefresh
	}

	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	pair, next, err := s.issue(u, rt.SessionID)
	if err != nil {
		return nil, err
	}

	// Atomically: revoke old token and create new one. Losing the revoke to
	// a concurrent rotation of the same token counts as reuse.
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.reused(ctx, rt.SessionID)
		}
		return nil, err
	}

	s.countRefresh("success")
	l.Debug("refresh rotated", slog.String("session_id", rt.SessionID))
	return pair, nil
}

// Logout revokes the login session the credential belongs to. Unknown
// credentials are ignored.
func (s *TokenService) Logout(ctx context.Context, refreshOpaque string) error {
	if s.Metrics != nil {
		s.Metrics.LogoutsTotal.Inc()
	}
	if refreshOpaque == "" {
		return nil
	}

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshOpaque))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Store.RefreshTokens().RevokeSession(ctx, rt.SessionID)
}

func (s *TokenService) issue(u domain.User, sessionID string) (*domain.TokenPair, domain.RefreshToken, error) {
	now := s.now()

	access, err := s.Signer.Sign(jwtx.NewAccessClaims(u.ID, u.Username, u.DepartmentID, s.AccessTTL, s.Issuer, now))
	if err != nil {
		return nil, domain.RefreshToken{}, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.RefreshTokenSize)
	if err != nil {
		return nil, domain.RefreshToken{}, err
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshOpaque,
		RefreshExpiresAt: rt.ExpiresAt,
	}, rt, nil
}

func (s *TokenService) countLogin(result string) {
	if s.Metrics != nil {
		s.Metrics.LoginsTotal.WithLabelValues(result).Inc()
	}
}

// reused revokes every token of the login session after a rotated token
// was presented again.
func (s *TokenService) reused(ctx context.Context, sessionID string) error {
	slogx.FromContext(ctx).Warn("rotated refresh token reused, revoking session", slog.String("session_id", sessionID))
	if s.Metrics != nil {
		s.Metrics.ReuseDetected.Inc()
	}
	if err := s.Store.RefreshTokens().RevokeSession(ctx, sessionID); err != nil {
		return err
	}
	s.countRefresh("reused")
	return ErrInvalidRefresh
}

func (s *TokenService) countRefresh(result string) {
	if s.Metrics != nil {
		s.Metrics.RefreshesTotal.WithLabelValues(result).Inc()
	}
}
