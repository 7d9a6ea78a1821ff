package service

import (
	"context"

	"github.com/aussiebroadwan/sessiongate/internal/store"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

type RolesService struct {
	Store store.Store
}

// ListForUser returns every grant held by userID.
func (s *RolesService) ListForUser(ctx context.Context, userID string) ([]authz.RoleAssignment, error) {
	return s.Store.Roles().ListAssignments(ctx, userID)
}

// PolicyFor builds the authorization policy of userID.
func (s *RolesService) PolicyFor(ctx context.Context, userID string) (authz.Policy, error) {
	grants, err := s.ListForUser(ctx, userID)
	if err != nil {
		return authz.Policy{}, err
	}
	return authz.NewPolicy(grants), nil
}
