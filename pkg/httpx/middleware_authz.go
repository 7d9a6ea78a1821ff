package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

// PolicyLookup builds the authorization policy of the caller of r.
type PolicyLookup func(r *http.Request) (authz.Policy, error)

// RequireAll lets the request through only if every requirement built for
// it holds. It must run after AuthnMiddleware.
func RequireAll(lookup PolicyLookup, build func(*http.Request) []authz.Requirement) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			policy, err := lookup(r)
			if err != nil {
				log.Error("policy lookup failed", "err", err)
				WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
				return
			}

			reqs := build(r)
			if failed, ok := authz.Evaluate(policy, reqs...); !ok {
				log.Info("request forbidden", "requirement", failed.Name)
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":   "forbidden",
					"message": "requires " + failed.Name,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
