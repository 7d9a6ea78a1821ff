package sqlite

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/sessiongate/internal/store"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) EnsureRole(ctx context.Context, name, description string) (authz.Role, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (name, description) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, description,
	); err != nil {
		return authz.Role{}, err
	}

	var role authz.Role
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM roles WHERE name = ?`, name,
	).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return authz.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) GrantRole(ctx context.Context, userID string, a authz.RoleAssignment) (authz.RoleAssignment, error) {
	if !a.Scope.Valid() {
		return authz.RoleAssignment{}, errors.New("store: invalid scope")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO role_assignments (user_id, role_id, scope, scope_id, granted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, role_id, scope, scope_id) DO NOTHING`,
		userID, a.Role.ID, string(a.Scope), a.ScopeID, toMillis(a.GrantedAt),
	)
	if err != nil {
		return authz.RoleAssignment{}, err
	}

	rows, err := r.list(ctx,
		`WHERE ra.user_id = ? AND ra.role_id = ? AND ra.scope = ? AND ra.scope_id = ?`,
		userID, a.Role.ID, string(a.Scope), a.ScopeID,
	)
	if err != nil {
		return authz.RoleAssignment{}, err
	}
	if len(rows) == 0 {
		return authz.RoleAssignment{}, store.ErrNotFound
	}
	return rows[0], nil
}

func (r *rolesRepo) ListAssignments(ctx context.Context, userID string) ([]authz.RoleAssignment, error) {
	return r.list(ctx, `WHERE ra.user_id = ?`, userID)
}

func (r *rolesRepo) list(ctx context.Context, where string, args ...any) ([]authz.RoleAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ra.id, ro.id, ro.name, ro.description, ra.scope, ra.scope_id, ra.granted_at
		 FROM role_assignments ra JOIN roles ro ON ro.id = ra.role_id `+where+`
		 ORDER BY ra.granted_at, ra.id`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []authz.RoleAssignment{}
	for rows.Next() {
		var (
			a       authz.RoleAssignment
			scope   string
			granted int64
		)
		if err := rows.Scan(&a.ID, &a.Role.ID, &a.Role.Name, &a.Role.Description, &scope, &a.ScopeID, &granted); err != nil {
			return nil, err
		}
		a.Scope = authz.Scope(scope)
		a.GrantedAt = fromMillis(granted)
		out = append(out, a)
	}
	return out, rows.Err()
}
