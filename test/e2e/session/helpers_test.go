package session_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	devapp "github.com/aussiebroadwan/sessiongate/internal/devserver/app"
	"github.com/aussiebroadwan/sessiongate/pkg/authsdk"
	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/aussiebroadwan/sessiongate/pkg/cookiex"
	"github.com/aussiebroadwan/sessiongate/pkg/slogx"
)

/*
 * End-to-end tests run the session engine against the development backend
 * served in-process, so every exchange goes over real HTTP with real
 * cookies.
 */

const password = "password"

type client struct {
	jar     *cookiex.Jar
	sdk     *authsdk.SDKClient
	session *authsession.Session
}

func setupBackend(t *testing.T) *httptest.Server {
	t.Helper()

	backend, err := devapp.New(devapp.Config{
		DatabaseFile: filepath.Join(t.TempDir(), "devauth.db"),
	}, devapp.WithLogger(slogx.Discard()))
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = backend.Close()
	})
	return srv
}

func newClient(t *testing.T, baseURL string) *client {
	t.Helper()

	origin, err := url.Parse(baseURL)
	require.NoError(t, err)

	jar := cookiex.New(origin)
	sdk := authsdk.NewSDKClient(baseURL, authsdk.WithCookieJar(jar))
	s := authsession.New(sdk, sdk, jar, authsession.WithLogger(slogx.Discard()))
	t.Cleanup(s.Close)

	return &client{jar: jar, sdk: sdk, session: s}
}

// login signs in the way a login form would: the cookie lands in the jar
// and the token goes straight into the session.
func (c *client) login(t *testing.T, username string) {
	t.Helper()

	resp, err := c.sdk.Login(t.Context(), username, password)
	require.NoError(t, err)
	require.True(t, c.jar.HasRefreshCredential())

	c.session.SetAccessToken(resp.AccessToken)
	require.NoError(t, c.session.FetchUserRoles(t.Context()))
}

func metricsBody(t *testing.T, baseURL string) string {
	t.Helper()

	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
