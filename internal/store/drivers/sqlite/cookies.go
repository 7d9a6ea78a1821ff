package sqlite

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
)

type cookiesRepo struct {
	db dbtx
}

func (r *cookiesRepo) ListCookies(ctx context.Context, origin string) ([]domain.StoredCookie, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, sealed_value, path, domain, expires_at, secure, http_only, same_site
		 FROM cookies WHERE origin = ? ORDER BY name`, origin,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StoredCookie
	for rows.Next() {
		var (
			c        = domain.StoredCookie{Origin: origin}
			expires  int64
			sameSite int
		)
		if err := rows.Scan(&c.Name, &c.SealedValue, &c.Path, &c.Domain, &expires, &c.Secure, &c.HttpOnly, &sameSite); err != nil {
			return nil, err
		}
		c.ExpiresAt = fromMillis(expires)
		c.SameSite = http.SameSite(sameSite)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceCookies is only atomic when called on a Tx.
func (r *cookiesRepo) ReplaceCookies(ctx context.Context, origin string, cookies []domain.StoredCookie) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cookies WHERE origin = ?`, origin); err != nil {
		return err
	}

	for _, c := range cookies {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO cookies (origin, name, sealed_value, path, domain, expires_at, secure, http_only, same_site)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			origin, c.Name, c.SealedValue, c.Path, c.Domain, toMillis(c.ExpiresAt),
			c.Secure, c.HttpOnly, int(c.SameSite),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
