package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/sessiongate/internal/domain"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) GetSession(ctx context.Context, key string) (domain.SessionRecord, error) {
	var (
		rec     = domain.SessionRecord{Key: key}
		roles   string
		updated int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT sealed_token, roles, updated_at FROM session_state WHERE key = ?`, key,
	).Scan(&rec.SealedToken, &roles, &updated)
	if err != nil {
		return domain.SessionRecord{}, mapNotFound(err)
	}

	if err := json.Unmarshal([]byte(roles), &rec.Roles); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("sqlite: decode roles: %w", err)
	}
	rec.UpdatedAt = fromMillis(updated)
	return rec, nil
}

func (r *sessionsRepo) PutSession(ctx context.Context, rec domain.SessionRecord) error {
	roles := rec.Roles
	if roles == nil {
		roles = []authz.RoleAssignment{}
	}
	encoded, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("sqlite: encode roles: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO session_state (key, sealed_token, roles, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   sealed_token = excluded.sealed_token,
		   roles = excluded.roles,
		   updated_at = excluded.updated_at`,
		rec.Key, rec.SealedToken, string(encoded), toMillis(rec.UpdatedAt),
	)
	return err
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, key)
	return err
}
