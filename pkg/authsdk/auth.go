package authsdk

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/sessiongate/pkg/authsession"
	"github.com/aussiebroadwan/sessiongate/pkg/authz"
)

var (
	_ authsession.Refresher   = (*SDKClient)(nil)
	_ authsession.RoleFetcher = (*SDKClient)(nil)
)

// Login exchanges a username and password for an access token. The server
// also sets the refresh cookie, which lands in the client's jar.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	body, err := encodeJSON(LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, PathLogin, body, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}

// Logout asks the server to revoke the refresh credential and expire its
// cookie. accessToken may be empty.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	var headers map[string]string
	if accessToken != "" {
		headers = map[string]string{"Authorization": "Bearer " + accessToken}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, PathLogout, nil, headers)
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}

// Refresh implements authsession.Refresher. The refresh credential is sent
// by the cookie jar; a rotated one comes back both as Set-Cookie and in the
// body.
func (c *SDKClient) Refresh(ctx context.Context) (authsession.RefreshResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, PathRefresh, nil, nil)
	if err != nil {
		return authsession.RefreshResult{}, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return authsession.RefreshResult{}, err
	}

	return authsession.RefreshResult{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}, nil
}

// FetchRoles implements authsession.RoleFetcher.
func (c *SDKClient) FetchRoles(ctx context.Context, accessToken string) ([]authz.RoleAssignment, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, PathUserRoles, nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var roles []authz.RoleAssignment
	if err := decodeJSON(resp, &roles, http.StatusOK); err != nil {
		return nil, err
	}

	return roles, nil
}
