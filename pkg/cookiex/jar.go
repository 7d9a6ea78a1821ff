// Package cookiex is the host's cookie store for a single API origin. It
// plays the part of a browser document's cookie jar: script-style reads see
// only non-HttpOnly cookies, while the HTTP transport sees everything.
package cookiex

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultRefreshCookie is the cookie that carries the refresh credential.
const DefaultRefreshCookie = "refreshToken"

// DefaultLifetime is applied by DefaultOptions.
const DefaultLifetime = 7 * 24 * time.Hour

// Options are the attributes applied by Set and Delete.
type Options struct {
	// Lifetime until expiry. Zero makes a session cookie.
	Lifetime time.Duration
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// DefaultOptions returns a 7 day, site-wide, Lax cookie.
func DefaultOptions() Options {
	return Options{Lifetime: DefaultLifetime, Path: "/", SameSite: http.SameSiteLaxMode}
}

func (o Options) normalised() Options {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 || o.SameSite == http.SameSiteDefaultMode {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// Jar holds cookies for one origin. It is safe for concurrent use and
// implements http.CookieJar.
type Jar struct {
	mu       sync.Mutex
	origin   *url.URL
	cookies  map[string]*http.Cookie
	refresh  string
	now      func() time.Time
	onChange []func()
}

var _ http.CookieJar = (*Jar)(nil)

type Option func(*Jar)

// WithRefreshCookie renames the refresh credential cookie.
func WithRefreshCookie(name string) Option {
	return func(j *Jar) {
		if name != "" {
			j.refresh = name
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) { j.now = now }
}

// New returns an empty jar scoped to origin. A nil origin accepts cookies
// from any host.
func New(origin *url.URL, opts ...Option) *Jar {
	j := &Jar{
		origin:  origin,
		cookies: make(map[string]*http.Cookie),
		refresh: DefaultRefreshCookie,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// RefreshCookieName is the name HasRefreshCredential looks for.
func (j *Jar) RefreshCookieName() string { return j.refresh }

// OnChange registers fn to run after every mutation. Hooks run outside the
// jar's lock and may read the jar.
func (j *Jar) OnChange(fn func()) {
	j.mu.Lock()
	j.onChange = append(j.onChange, fn)
	j.mu.Unlock()
}

func (j *Jar) changed() {
	j.mu.Lock()
	hooks := append([]func(){}, j.onChange...)
	j.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// live returns the named cookie if present and unexpired. Expired cookies are
// dropped on the way. Caller holds mu.
func (j *Jar) live(name string) (*http.Cookie, bool) {
	c, ok := j.cookies[name]
	if !ok {
		return nil, false
	}
	if !c.Expires.IsZero() && !c.Expires.After(j.now()) {
		delete(j.cookies, name)
		return nil, false
	}
	return c, true
}

// Get returns a script-readable cookie value. HttpOnly cookies are reported
// as absent.
func (j *Jar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	c, ok := j.live(name)
	if !ok || c.HttpOnly {
		return "", false
	}
	return c.Value, true
}

// Set writes a script-readable cookie.
func (j *Jar) Set(name, value string, opts Options) {
	opts = opts.normalised()

	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		Domain:   opts.Domain,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
	if opts.Lifetime > 0 {
		c.Expires = j.now().Add(opts.Lifetime)
	}

	j.mu.Lock()
	j.cookies[name] = c
	j.mu.Unlock()

	j.changed()
}

// Delete removes a script-readable cookie. Like a document write, it cannot
// touch an HttpOnly cookie.
func (j *Jar) Delete(name string) {
	j.mu.Lock()
	c, ok := j.cookies[name]
	if ok && !c.HttpOnly {
		delete(j.cookies, name)
	}
	j.mu.Unlock()

	if ok {
		j.changed()
	}
}

// HasRefreshCredential reports whether the refresh cookie is present and
// script-readable. The value is never inspected.
func (j *Jar) HasRefreshCredential() bool {
	v, ok := j.Get(j.refresh)
	return ok && v != ""
}

// SetRefreshCredential stores a refresh credential handed back in a response
// body.
func (j *Jar) SetRefreshCredential(value string) {
	if value == "" {
		return
	}
	j.Set(j.refresh, value, DefaultOptions())
}

// ClearRefreshCredential drops the refresh cookie, HttpOnly or not. This is
// the logout path, which in a browser is the server's Set-Cookie.
func (j *Jar) ClearRefreshCredential() {
	j.mu.Lock()
	_, ok := j.cookies[j.refresh]
	delete(j.cookies, j.refresh)
	j.mu.Unlock()

	if ok {
		j.changed()
	}
}

func (j *Jar) sameOrigin(u *url.URL) bool {
	if j.origin == nil || u == nil {
		return true
	}
	return strings.EqualFold(j.origin.Hostname(), u.Hostname())
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !j.sameOrigin(u) || len(cookies) == 0 {
		return
	}

	now := j.now()

	j.mu.Lock()
	for _, in := range cookies {
		if in == nil || in.Name == "" {
			continue
		}

		c := *in
		if c.Path == "" {
			c.Path = "/"
		}
		switch {
		case c.MaxAge < 0:
			delete(j.cookies, c.Name)
			continue
		case c.MaxAge > 0:
			c.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
			c.MaxAge = 0
		}
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			delete(j.cookies, c.Name)
			continue
		}
		c.Raw, c.Unparsed = "", nil
		j.cookies[c.Name] = &c
	}
	j.mu.Unlock()

	j.changed()
}

// Cookies implements http.CookieJar. HttpOnly cookies are included; Secure
// cookies only go to https URLs.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if !j.sameOrigin(u) {
		return nil
	}

	path := "/"
	if u != nil && u.Path != "" {
		path = u.Path
	}
	https := u != nil && u.Scheme == "https"

	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*http.Cookie
	for _, name := range j.sortedNames() {
		c, ok := j.live(name)
		if !ok {
			continue
		}
		if c.Secure && !https {
			continue
		}
		if !strings.HasPrefix(path, c.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

func (j *Jar) sortedNames() []string {
	names := make([]string, 0, len(j.cookies))
	for name := range j.cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns every live cookie, HttpOnly included, for persistence.
func (j *Jar) Snapshot() []http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]http.Cookie, 0, len(j.cookies))
	for _, name := range j.sortedNames() {
		if c, ok := j.live(name); ok {
			out = append(out, *c)
		}
	}
	return out
}

// Restore replaces the jar's contents with cookies, skipping expired ones.
// Change hooks are not run.
func (j *Jar) Restore(cookies []http.Cookie) {
	now := j.now()

	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies = make(map[string]*http.Cookie, len(cookies))
	for i := range cookies {
		c := cookies[i]
		if c.Name == "" {
			continue
		}
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		j.cookies[c.Name] = &c
	}
}

// Clear removes every cookie.
func (j *Jar) Clear() {
	j.mu.Lock()
	n := len(j.cookies)
	j.cookies = make(map[string]*http.Cookie)
	j.mu.Unlock()

	if n > 0 {
		j.changed()
	}
}
