package app_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/sessiongate/internal/devserver/app"
	"github.com/aussiebroadwan/sessiongate/pkg/authsdk"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	a, err := app.New(app.Config{
		DatabaseFile:   filepath.Join(dir, "devauth.db"),
		SigningKeyFile: filepath.Join(dir, "signing.pem"),
	}, app.WithLogger(slogx.Discard()))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return srv
}

func post(t *testing.T, url string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatalf("no refreshToken cookie in response")
	return nil
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func login(t *testing.T, srv *httptest.Server, username string) (authsdk.TokenResponse, *http.Cookie) {
	t.Helper()

	resp := post(t, srv.URL+authsdk.PathLogin, authsdk.LoginRequest{Username: username, Password: "password"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[authsdk.TokenResponse](t, resp), refreshCookie(t, resp)
}

func TestLivez(t *testing.T) {
	srv := newServer(t)

	resp := get(t, srv.URL+"/livez", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(slogx.RequestIDHeader))

	health := decode[authsdk.HealthResponse](t, resp)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, app.BuildVersion, health.Version)
}

func TestLoginEndpoint(t *testing.T) {
	srv := newServer(t)

	t.Run("success sets a script-readable refresh cookie", func(t *testing.T) {
		tokens, cookie := login(t, srv, "dana")
		require.NotEmpty(t, tokens.AccessToken)
		require.Equal(t, tokens.RefreshToken, cookie.Value)
		require.False(t, cookie.HttpOnly)
		require.Equal(t, "/", cookie.Path)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := post(t, srv.URL+authsdk.PathLogin, authsdk.LoginRequest{Username: "dana", Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, authsdk.ErrorCodeInvalidCredentials, decode[authsdk.ErrorResponse](t, resp).Error)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := post(t, srv.URL+authsdk.PathLogin, authsdk.LoginRequest{Username: "dana"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, authsdk.ErrorCodeInvalidRequest, decode[authsdk.ErrorResponse](t, resp).Error)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newServer(t)

	t.Run("no cookie", func(t *testing.T) {
		resp := post(t, srv.URL+authsdk.PathRefresh, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, authsdk.ErrorCodeMissingCredential, decode[authsdk.ErrorResponse](t, resp).Error)
	})

	t.Run("rotation and reuse", func(t *testing.T) {
		_, first := login(t, srv, "eli")

		resp := post(t, srv.URL+authsdk.PathRefresh, nil, first)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		second := refreshCookie(t, resp)
		require.NotEqual(t, first.Value, second.Value)
		require.Equal(t, second.Value, decode[authsdk.TokenResponse](t, resp).RefreshToken)

		resp = post(t, srv.URL+authsdk.PathRefresh, nil, first)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, authsdk.ErrorCodeInvalidToken, decode[authsdk.ErrorResponse](t, resp).Error)
		require.Negative(t, refreshCookie(t, resp).MaxAge)

		// The whole login session went with the reused token.
		resp = post(t, srv.URL+authsdk.PathRefresh, nil, second)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	srv := newServer(t)
	_, cookie := login(t, srv, "admin")

	resp := post(t, srv.URL+authsdk.PathLogout, nil, cookie)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Negative(t, refreshCookie(t, resp).MaxAge)

	resp = post(t, srv.URL+authsdk.PathRefresh, nil, cookie)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logout without a cookie still succeeds.
	resp = post(t, srv.URL+authsdk.PathLogout, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestUserRolesEndpoint(t *testing.T) {
	srv := newServer(t)

	t.Run("requires a bearer token", func(t *testing.T) {
		resp := get(t, srv.URL+authsdk.PathUserRoles, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("returns the caller's grants", func(t *testing.T) {
		tokens, _ := login(t, srv, "admin")

		resp := get(t, srv.URL+authsdk.PathUserRoles, tokens.AccessToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		grants := decode[[]authz.RoleAssignment](t, resp)
		require.Len(t, grants, 1)
		require.Equal(t, "Global Manager", grants[0].Role.Name)
		require.Equal(t, authz.ScopeGlobal, grants[0].Scope)
	})
}

func TestDepartmentRoutes(t *testing.T) {
	srv := newServer(t)
	admin, _ := login(t, srv, "admin")
	dana, _ := login(t, srv, "dana")
	eli, _ := login(t, srv, "eli")

	tests := []struct {
		name   string
		token  string
		path   string
		status int
	}{
		{"member sees own department", eli.AccessToken, "/api/departments/1", http.StatusOK},
		{"member cannot list every project", eli.AccessToken, "/api/departments/1/projects", http.StatusForbidden},
		{"member cannot see other department", eli.AccessToken, "/api/departments/2", http.StatusForbidden},
		{"department manager lists projects", dana.AccessToken, "/api/departments/1/projects", http.StatusOK},
		{"department manager is scoped", dana.AccessToken, "/api/departments/2/projects", http.StatusForbidden},
		{"global manager sees everything", admin.AccessToken, "/api/departments/2/projects", http.StatusOK},
		{"unknown department", admin.AccessToken, "/api/departments/99", http.StatusNotFound},
		{"malformed id", admin.AccessToken, "/api/departments/abc", http.StatusBadRequest},
		{"anonymous", "", "/api/departments/1", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, srv.URL+tt.path, tt.token)
			require.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("forbidden names the failed requirement", func(t *testing.T) {
		resp := get(t, srv.URL+"/api/departments/1/projects", eli.AccessToken)
		body := decode[map[string]string](t, resp)
		require.Equal(t, "forbidden", body["error"])
		require.Equal(t, "requires department-projects:1", body["message"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t)
	login(t, srv, "dana")

	resp := get(t, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `sessiongate_devauth_logins_total{result="success"} 1`)
}

func TestSigningKeySurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := app.Config{
		DatabaseFile:   filepath.Join(dir, "devauth.db"),
		SigningKeyFile: filepath.Join(dir, "signing.pem"),
	}

	first, err := app.New(cfg, app.WithLogger(slogx.Discard()))
	require.NoError(t, err)
	srv := httptest.NewServer(first.Handler())
	tokens, _ := login(t, srv, "dana")
	srv.Close()
	require.NoError(t, first.Close())

	second, err := app.New(cfg, app.WithLogger(slogx.Discard()))
	require.NoError(t, err)
	srv = httptest.NewServer(second.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = second.Close()
	})

	resp := get(t, srv.URL+authsdk.PathUserRoles, tokens.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
