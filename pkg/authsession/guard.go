package authsession

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

// Guard gates entry to a protected operation on the session.
type Guard struct {
	session *Session
}

func NewGuard(s *Session) *Guard {
	return &Guard{session: s}
}

// Enter settles the session and evaluates reqs against its roles. It returns
// ErrUnauthenticated when there is no trusted session and ErrForbidden,
// naming the first failed requirement, when a requirement does not hold.
func (g *Guard) Enter(ctx context.Context, reqs ...authz.Requirement) error {
	if err := g.session.CheckAuthStatus(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	// A check that only just started background confirmation leaves the
	// session unverified; wait for it when roles are needed.
	if len(reqs) > 0 && g.session.State() == StateAuthenticatedUnverified {
		if err := g.session.WaitIdle(ctx); err != nil {
			return err
		}
	}

	if !g.session.IsAuthenticated() {
		return ErrUnauthenticated
	}

	if failed, ok := authz.Evaluate(g.session.Policy(), reqs...); !ok {
		return fmt.Errorf("%w: requires %s", ErrForbidden, failed.Name)
	}
	return nil
}
