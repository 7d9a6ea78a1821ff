package authsdk

// Endpoint paths on the collaboration backend.
const (
	PathLogin     = "/api/auth/login"
	PathLogout    = "/api/auth/logout"
	PathRefresh   = "/api/auth/refresh"
	PathUserRoles = "/api/user-roles/me"
)

// LoginRequest is the body of a password login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and refresh. RefreshToken is only
// present when the server hands the credential back in the body as well as
// in Set-Cookie.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// ErrorResponse is the JSON error body returned by the backend.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by the development backend's /livez.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
