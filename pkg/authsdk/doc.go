/*
Package authsdk is the HTTP client for the collaboration backend's session
endpoints.

# Endpoints

	POST /api/auth/login      password login, sets the refresh cookie
	POST /api/auth/refresh    exchanges the refresh cookie for an access token
	POST /api/auth/logout     revokes the refresh cookie
	GET  /api/user-roles/me   role assignments of the bearer

SDKClient implements authsession.Refresher and authsession.RoleFetcher, so
it plugs straight into a Session:

	jar := cookiex.New(baseURL)
	client := authsdk.NewSDKClient(baseURL.String(), authsdk.WithCookieJar(jar))
	session := authsession.New(client, client, jar)

# Authorized requests

Requests on behalf of the user go through AuthorizedClient, which awaits
Session.EnsureFreshToken before each call and, on a 401, renews once through
Session.HandleUnauthorized and retries:

	api := client.Authorized(session)
	var roles []authz.RoleAssignment
	err := api.GetJSON(ctx, authsdk.PathUserRoles, &roles)

Concurrent callers that all hit 401 share a single refresh.

# Errors

Non-2xx responses are returned as *APIError with the HTTP status, a short
machine-readable code and a message:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		// sign in again
	}
*/
package authsdk
