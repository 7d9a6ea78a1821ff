package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

// TokenSource hands out access tokens. *authsession.Session implements it.
type TokenSource interface {
	EnsureFreshToken(ctx context.Context) (string, error)
	HandleUnauthorized(ctx context.Context, stale string) (string, error)
}

// AuthorizedClient sends requests with a bearer token from a TokenSource.
type AuthorizedClient struct {
	client *SDKClient
	tokens TokenSource
}

func (c *SDKClient) Authorized(tokens TokenSource) *AuthorizedClient {
	return &AuthorizedClient{client: c, tokens: tokens}
}

// Do awaits a fresh token, sends the request and, if the server answers 401,
// renews through the TokenSource and retries exactly once. body is resent on
// retry, so it is passed as bytes.
func (a *AuthorizedClient) Do(
	ctx context.Context,
	method, path string,
	body []byte,
	headers map[string]string,
) (*http.Response, error) {
	token, err := a.tokens.EnsureFreshToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("authsdk: obtain access token: %w", err)
	}

	resp, err := a.send(ctx, method, path, body, headers, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	resp.Body.Close()

	token, err = a.tokens.HandleUnauthorized(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("authsdk: renew access token: %w", err)
	}

	return a.send(ctx, method, path, body, headers, token)
}

// GetJSON performs an authorized GET and decodes a 200 response into target.
func (a *AuthorizedClient) GetJSON(ctx context.Context, path string, target any) error {
	resp, err := a.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}

func (a *AuthorizedClient) send(
	ctx context.Context,
	method, path string,
	body []byte,
	headers map[string]string,
	token string,
) (*http.Response, error) {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h["Authorization"] = "Bearer " + token

	return a.client.doRequest(ctx, method, path, body, h)
}
