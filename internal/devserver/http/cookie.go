package http

import (
	"net/http"
	"time"
)

// CookieOptions shape the refresh cookie the backend sets.
type CookieOptions struct {
	Name     string
	Path     string
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

// DefaultCookieOptions matches the collaboration backend: a script-readable
// cookie, so a client can tell whether it holds a refresh credential.
func DefaultCookieOptions() CookieOptions {
	return CookieOptions{
		Name:     "refreshToken",
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

func (o CookieOptions) set(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     o.Path,
		Expires:  expires,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	})
}

func (o CookieOptions) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     o.Path,
		MaxAge:   -1,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	})
}

func (o CookieOptions) read(r *http.Request) string {
	c, err := r.Cookie(o.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
