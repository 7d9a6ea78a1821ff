package store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
	"github.com/aussiebroadwan/sessiongate/pkg/cryptox"
)

// CookieSource is the part of cookiex.Jar the persister needs.
type CookieSource interface {
	Snapshot() []http.Cookie
	Restore(cookies []http.Cookie)
}

// CookiePersister keeps a jar's persistent cookies in the Store. Session
// cookies (no expiry) are never written. Values are sealed at rest.
type CookiePersister struct {
	store  Store
	sealer *cryptox.Sealer
	origin string
	now    func() time.Time
}

func NewCookiePersister(store Store, sealer *cryptox.Sealer, origin string) *CookiePersister {
	return &CookiePersister{store: store, sealer: sealer, origin: origin, now: time.Now}
}

// LoadInto restores saved cookies into jar. Cookies that fail to unseal or
// have expired are skipped.
func (p *CookiePersister) LoadInto(ctx context.Context, jar CookieSource) error {
	stored, err := p.store.Cookies().ListCookies(ctx, p.origin)
	if err != nil {
		return fmt.Errorf("store: load cookies: %w", err)
	}

	now := p.now()
	cookies := make([]http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.ExpiresAt.After(now) {
			continue
		}
		value, err := p.sealer.Open(c.SealedValue)
		if err != nil {
			continue
		}
		cookies = append(cookies, http.Cookie{
			Name:     c.Name,
			Value:    string(value),
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.ExpiresAt,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: c.SameSite,
		})
	}

	jar.Restore(cookies)
	return nil
}

// Save writes the jar's persistent cookies, replacing what was stored.
func (p *CookiePersister) Save(ctx context.Context, jar CookieSource) error {
	var stored []domain.StoredCookie
	for _, c := range jar.Snapshot() {
		if c.Expires.IsZero() {
			continue
		}
		sealed, err := p.sealer.Seal([]byte(c.Value))
		if err != nil {
			return fmt.Errorf("store: seal cookie %q: %w", c.Name, err)
		}
		stored = append(stored, domain.StoredCookie{
			Origin:      p.origin,
			Name:        c.Name,
			SealedValue: sealed,
			Path:        c.Path,
			Domain:      c.Domain,
			ExpiresAt:   c.Expires.UTC(),
			Secure:      c.Secure,
			HttpOnly:    c.HttpOnly,
			SameSite:    c.SameSite,
		})
	}

	return p.store.WithTx(ctx, func(tx Tx) error {
		return tx.Cookies().ReplaceCookies(ctx, p.origin, stored)
	})
}
