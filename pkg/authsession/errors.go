package authsession

import "errors"

var (
	// ErrMalformedToken and ErrExpiredToken never reach callers of
	// CheckAuthStatus; they trigger a refresh instead.
	ErrMalformedToken = errors.New("authsession: malformed access token")
	ErrExpiredToken   = errors.New("authsession: access token expired")

	ErrMissingRefreshCredential = errors.New("authsession: no refresh credential")
	ErrRefreshFailed            = errors.New("authsession: refresh failed")
	ErrRoleFetchFailed          = errors.New("authsession: role fetch failed")

	// Guard outcomes.
	ErrUnauthenticated = errors.New("authsession: not authenticated")
	ErrForbidden       = errors.New("authsession: forbidden")

	ErrClosed = errors.New("authsession: session closed")
)

// Messages surfaced through Snapshot.Error. Backend detail stays in logs.
const (
	MsgSessionExpired = "session expired, please sign in again"
	MsgUnverifiable   = "unable to verify session"
)
