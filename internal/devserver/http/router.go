package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aussiebroadwan/sessiongate/internal/devserver/service"
	"github.com/aussiebroadwan/sessiongate/internal/metrics"
	"github.com/aussiebroadwan/sessiongate/pkg/authsdk"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/httpx"
	"github.com/aussiebroadwan/sessiongate/pkg/jwtx"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	gatherer     prometheus.Gatherer

	Cookie       CookieOptions
	TokenService *service.TokenService
	RolesService *service.RolesService
	Directory    *service.Directory
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		gatherer:     gatherer,
		logger:       logger,
		Cookie:       DefaultCookieOptions(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerRoles()
	r.registerDepartments()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{TokenService: r.TokenService, Cookie: r.Cookie}

	// Login is limited per IP and username to slow down password guessing
	r.Mux.Handle("POST "+authsdk.PathLogin,
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.LoginLimit, "username"),
		),
	)
	r.Mux.Handle("POST "+authsdk.PathRefresh,
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.RefreshLimit),
		),
	)
	r.Mux.Handle("POST "+authsdk.PathLogout, http.HandlerFunc(h.HandleLogout))
}

func (r *Router) registerRoles() {
	h := &UserRolesHandler{RolesService: r.RolesService}

	r.Mux.Handle("GET "+authsdk.PathUserRoles,
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
		),
	)
}

func (r *Router) registerDepartments() {
	h := &DepartmentsHandler{Directory: r.Directory}

	r.Mux.Handle("GET /api/departments/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAll(r.policyLookup, func(req *http.Request) []authz.Requirement {
				id, _ := departmentID(req)
				claims, _ := httpx.ClaimsFromContext(req.Context())
				return []authz.Requirement{authz.RequireDepartmentAccess(id, claims.DepartmentID)}
			}),
		),
	)
	r.Mux.Handle("GET /api/departments/{id}/projects",
		httpx.Chain(http.HandlerFunc(h.HandleProjects),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAll(r.policyLookup, func(req *http.Request) []authz.Requirement {
				id, _ := departmentID(req)
				return []authz.Requirement{authz.RequireAllProjectsInDepartment(id)}
			}),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /metrics", metrics.Handler(r.gatherer))
}

func (r *Router) policyLookup(req *http.Request) (authz.Policy, error) {
	userID, _ := httpx.UserIDFromContext(req.Context())
	return r.RolesService.PolicyFor(req.Context(), userID)
}
